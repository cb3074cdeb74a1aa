package request

import (
	"github.com/vmindtech/vdb/pkg/errs"
)

type CreateClusterRequest struct {
	Name               string                 `json:"name" validate:"required,max=255,resource_name"`
	Datastore          DatastoreRef           `json:"datastore" validate:"required"`
	Instances          []InstanceRequest      `json:"instances" validate:"required,min=1,dive"`
	Locality           string                 `json:"locality" validate:"omitempty,oneof=affinity anti-affinity"`
	ConfigurationID    string                 `json:"configuration"`
	ExtendedProperties map[string]interface{} `json:"extended_properties"`
}

type DatastoreRef struct {
	Type    string `json:"type" validate:"required"`
	Version string `json:"version"`
}

type InstanceRequest struct {
	Name             string        `json:"name" validate:"omitempty,max=255,resource_name"`
	FlavorRef        string        `json:"flavorRef" validate:"required"`
	Volume           *VolumeSizing `json:"volume"`
	Nics             []Nic         `json:"nics" validate:"omitempty,dive"`
	AvailabilityZone string        `json:"availability_zone"`
	Region           string        `json:"region_name"`
	Type             string        `json:"type"`
	RelatedTo        string        `json:"related_to"`
}

type VolumeSizing struct {
	Size int    `json:"size" validate:"gte=0"`
	Type string `json:"type"`
}

type Nic struct {
	NetID string `json:"net-id" validate:"required"`
}

type ShrinkTarget struct {
	ID string `json:"id" validate:"required"`
}

type UpgradeRequest struct {
	DatastoreVersion string `json:"datastore_version" validate:"required"`
}

type ConfigurationAttachRequest struct {
	ConfigurationID string `json:"configuration_id" validate:"required"`
	ApplyOnAll      bool   `json:"apply_on_all"`
}

type ResetStatusRequest struct {
	ForceDelete bool `json:"force_delete"`
}

type Empty struct{}

// ClusterActionRequest carries exactly one cluster action.
type ClusterActionRequest struct {
	Grow                []InstanceRequest           `json:"grow" validate:"omitempty,dive"`
	Shrink              []ShrinkTarget              `json:"shrink" validate:"omitempty,dive"`
	Restart             *Empty                      `json:"restart"`
	Upgrade             *UpgradeRequest             `json:"upgrade"`
	ConfigurationAttach *ConfigurationAttachRequest `json:"configuration_attach"`
	ConfigurationDetach *Empty                      `json:"configuration_detach"`
	ResetStatus         *ResetStatusRequest         `json:"reset-status"`
	AddShard            *Empty                      `json:"add_shard"`
}

// Action names the single action present in the body.
func (r ClusterActionRequest) Action() (string, error) {
	present := map[string]bool{
		"grow":                 r.Grow != nil,
		"shrink":               r.Shrink != nil,
		"restart":              r.Restart != nil,
		"upgrade":              r.Upgrade != nil,
		"configuration_attach": r.ConfigurationAttach != nil,
		"configuration_detach": r.ConfigurationDetach != nil,
		"reset-status":         r.ResetStatus != nil,
		"add_shard":            r.AddShard != nil,
	}

	action := ""
	for name, ok := range present {
		if !ok {
			continue
		}
		if action != "" {
			return "", errs.Validation(errs.ReasonInvalidAction, "exactly one action is allowed per request")
		}
		action = name
	}
	if action == "" {
		return "", errs.Validation(errs.ReasonInvalidAction, "request names no known action")
	}

	return action, nil
}
