package resource

type NetworkResponse struct {
	Network Network `json:"network"`
}

type Network struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Subnets []string `json:"subnets"`
}
