package resource

type VolumeResponse struct {
	Volume Volume `json:"volume"`
}

type Volume struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Size   int    `json:"size"`
}
