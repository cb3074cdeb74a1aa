package model

import (
	"time"

	"github.com/vmindtech/vdb/internal/task"
)

type Cluster struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string     `json:"name" gorm:"type:varchar(255)"`
	TenantID           string     `json:"tenant_id" gorm:"type:varchar(36);index"`
	DatastoreID        string     `json:"datastore_id" gorm:"type:varchar(36)"`
	DatastoreVersionID string     `json:"datastore_version_id" gorm:"type:varchar(36)"`
	TaskID             int        `json:"task_id" gorm:"type:int(11)"`
	ConfigurationID    *string    `json:"configuration_id" gorm:"type:varchar(36)"`
	Created            time.Time  `json:"created" gorm:"type:datetime"`
	Updated            time.Time  `json:"updated" gorm:"type:datetime"`
	Deleted            bool       `json:"deleted" gorm:"index"`
	DeletedAt          *time.Time `json:"deleted_at" gorm:"type:datetime"`
}

func (Cluster) TableName() string {
	return "clusters"
}

// Task resolves the persisted task code. An unknown code reads as NONE.
func (c Cluster) Task() task.Task {
	if t, ok := task.ClusterTaskFromCode(c.TaskID); ok {
		return t
	}

	return task.ClusterNone
}
