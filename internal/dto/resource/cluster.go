package resource

import (
	"time"
)

type TaskResource struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type DatastoreResource struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

type FaultResource struct {
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	InstanceID string    `json:"instance_id,omitempty"`
	Created    time.Time `json:"created"`
}

type ClusterResource struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	TenantID        string                    `json:"tenant_id"`
	Datastore       DatastoreResource         `json:"datastore"`
	Task            TaskResource              `json:"task"`
	ConfigurationID string                    `json:"configuration,omitempty"`
	Instances       []ClusterInstanceResource `json:"instances"`
	Fault           *FaultResource            `json:"fault,omitempty"`
	Created         time.Time                 `json:"created"`
	Updated         time.Time                 `json:"updated"`
}

type ClusterInstanceResource struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	ShardID    string   `json:"shard_id,omitempty"`
	FlavorID   string   `json:"flavor_id"`
	VolumeSize int      `json:"volume_size"`
	IPs        []string `json:"ip,omitempty"`
	Status     string   `json:"status"`
}

type InstanceResource struct {
	ClusterInstanceResource
	ClusterID          string       `json:"cluster_id,omitempty"`
	DatastoreVersionID string       `json:"datastore_version_id"`
	ConfigurationID    string       `json:"configuration,omitempty"`
	Region             string       `json:"region,omitempty"`
	AvailabilityZone   string       `json:"availability_zone,omitempty"`
	Task               TaskResource `json:"task"`
	Created            time.Time    `json:"created"`
	Updated            time.Time    `json:"updated"`
}

type ClusterListResource struct {
	Clusters []ClusterResource `json:"clusters"`
}

type ActionResource struct {
	ClusterID string `json:"cluster_id"`
	Action    string `json:"action"`
}
