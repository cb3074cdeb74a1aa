package request

type CreateServerRequest struct {
	Server         Server          `json:"server"`
	SchedulerHints *SchedulerHints `json:"os:scheduler_hints,omitempty"`
}

type Server struct {
	Name                 string                 `json:"name"`
	ImageRef             string                 `json:"imageRef"`
	FlavorRef            string                 `json:"flavorRef"`
	AvailabilityZone     string                 `json:"availability_zone,omitempty"`
	SecurityGroups       []SecurityGroups       `json:"security_groups,omitempty"`
	BlockDeviceMappingV2 []BlockDeviceMappingV2 `json:"block_device_mapping_v2,omitempty"`
	Networks             []Networks             `json:"networks"`
	UserData             string                 `json:"user_data,omitempty"`
	Metadata             map[string]string      `json:"metadata,omitempty"`
}

type BlockDeviceMappingV2 struct {
	BootIndex           int    `json:"boot_index"`
	UUID                string `json:"uuid"`
	SourceType          string `json:"source_type"`
	DestinationType     string `json:"destination_type"`
	DeleteOnTermination bool   `json:"delete_on_termination"`
	VolumeSize          int    `json:"volume_size,omitempty"`
}

type Networks struct {
	UUID string `json:"uuid"`
}

type SecurityGroups struct {
	Name string `json:"name"`
}

type SchedulerHints struct {
	Group string `json:"group"`
}

type CreateServerGroupRequest struct {
	ServerGroup ServerGroup `json:"server_group"`
}

type ServerGroup struct {
	Name   string `json:"name"`
	Policy string `json:"policy"`
}

type RebuildServerRequest struct {
	Rebuild Rebuild `json:"rebuild"`
}

type Rebuild struct {
	ImageRef string `json:"imageRef"`
}
