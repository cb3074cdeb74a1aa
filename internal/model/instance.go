package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/vmindtech/vdb/internal/task"
)

type Instance struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string         `json:"name" gorm:"type:varchar(255)"`
	TenantID           string         `json:"tenant_id" gorm:"type:varchar(36);index"`
	DatastoreVersionID string         `json:"datastore_version_id" gorm:"type:varchar(36)"`
	Type               *string        `json:"type" gorm:"type:varchar(64)"`
	FlavorID           string         `json:"flavor_id" gorm:"type:varchar(255)"`
	VolumeID           *string        `json:"volume_id" gorm:"type:varchar(36)"`
	VolumeSize         int            `json:"volume_size" gorm:"type:int(11)"`
	VolumeType         string         `json:"volume_type" gorm:"type:varchar(255)"`
	ComputeInstanceID  *string        `json:"compute_instance_id" gorm:"type:varchar(36)"`
	TaskID             int            `json:"task_id" gorm:"type:int(11)"`
	TaskDescription    string         `json:"task_description" gorm:"type:varchar(255)"`
	TaskStartTime      *time.Time     `json:"task_start_time" gorm:"type:datetime"`
	ServerStatus       string         `json:"server_status" gorm:"type:varchar(64)"`
	ClusterID          *string        `json:"cluster_id" gorm:"type:varchar(36);index"`
	ShardID            *string        `json:"shard_id" gorm:"type:varchar(36)"`
	ConfigurationID    *string        `json:"configuration_id" gorm:"type:varchar(36);index"`
	SlaveOfID          *string        `json:"slave_of_id" gorm:"type:varchar(36)"`
	RegionID           string         `json:"region_id" gorm:"type:varchar(255)"`
	AvailabilityZone   string         `json:"availability_zone" gorm:"type:varchar(255)"`
	NetworkID          string         `json:"network_id" gorm:"type:varchar(36)"`
	Addresses          datatypes.JSON `json:"addresses" gorm:"type:json"`
	GuestKeyHash       string         `json:"-" gorm:"type:varchar(64)"`
	Created            time.Time      `json:"created" gorm:"type:datetime"`
	Updated            time.Time      `json:"updated" gorm:"type:datetime"`
	Deleted            bool           `json:"deleted" gorm:"index"`
	DeletedAt          *time.Time     `json:"deleted_at" gorm:"type:datetime"`
}

func (Instance) TableName() string {
	return "instances"
}

func (i Instance) Task() task.Task {
	if t, ok := task.InstanceTaskFromCode(i.TaskID); ok {
		return t
	}

	return task.InstanceNone
}

func (i Instance) Role() string {
	return Deref(i.Type)
}

func (i Instance) Shard() string {
	return Deref(i.ShardID)
}

// IPs returns the addresses recorded for the instance, in the order the
// compute service reported them.
func (i Instance) IPs() []string {
	if len(i.Addresses) == 0 {
		return nil
	}

	var ips []string
	if err := json.Unmarshal(i.Addresses, &ips); err != nil {
		return nil
	}

	return ips
}

func (i Instance) PrimaryIP() string {
	if ips := i.IPs(); len(ips) > 0 {
		return ips[0]
	}

	return ""
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
