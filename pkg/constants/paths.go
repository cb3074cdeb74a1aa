package constants

// Compute
const (
	ComputePath     = "v2.1/servers"
	FlavorPath      = "v2.1/flavors"
	ServerGroupPath = "v2.1/os-server-groups"
)

// Identity
const (
	ProjectPath = "v3/projects"
	TokenPath   = "v3/auth/tokens"
)

// Network
const (
	NetworksPath = "v2.0/networks"
)

// Block storage, the endpoint already carries the project id
const (
	VolumesPath = "volumes"
)
