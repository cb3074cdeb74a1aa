package request

type CreateVolumeRequest struct {
	Volume Volume `json:"volume"`
}

type Volume struct {
	Name             string            `json:"name"`
	Size             int               `json:"size"`
	VolumeType       string            `json:"volume_type,omitempty"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
