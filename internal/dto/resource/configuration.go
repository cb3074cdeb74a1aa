package resource

import "time"

type ConfigurationResource struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description"`
	DatastoreVersionID string                 `json:"datastore_version_id"`
	Values             map[string]interface{} `json:"values"`
	RestartRequired    bool                   `json:"restart_required"`
	InstanceCount      int64                  `json:"instance_count"`
	Created            time.Time              `json:"created"`
	Updated            time.Time              `json:"updated"`
}

type ConfigurationListResource struct {
	Configurations []ConfigurationResource `json:"configurations"`
}
