package resource

import "sort"

type FlavorResponse struct {
	Flavor Flavor `json:"flavor"`
}

type Flavor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RAM       int    `json:"ram"`
	VCPUs     int    `json:"vcpus"`
	Disk      int    `json:"disk"`
	Ephemeral int    `json:"OS-FLV-EXT-DATA:ephemeral"`
}

type ServerResponse struct {
	Server Server `json:"server"`
}

type Server struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Status    string               `json:"status"`
	Addresses map[string][]Address `json:"addresses"`
}

type Address struct {
	Addr    string `json:"addr"`
	Version int    `json:"version"`
}

// IPs flattens the server addresses ordered by network name.
func (s Server) IPs() []string {
	names := make([]string, 0, len(s.Addresses))
	for name := range s.Addresses {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		for _, a := range s.Addresses[name] {
			out = append(out, a.Addr)
		}
	}

	return out
}

type ServerGroupResponse struct {
	ServerGroup ServerGroup `json:"server_group"`
}

type ServerGroup struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Policy  string   `json:"policy"`
	Members []string `json:"members"`
}
