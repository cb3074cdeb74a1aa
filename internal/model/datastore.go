package model

import (
	"time"

	"gorm.io/datatypes"
)

type Datastore struct {
	ID               string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name             string `json:"name" gorm:"type:varchar(255);uniqueIndex"`
	DefaultVersionID string `json:"default_version_id" gorm:"type:varchar(36)"`
}

func (Datastore) TableName() string {
	return "datastores"
}

type DatastoreVersion struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DatastoreID string `json:"datastore_id" gorm:"type:varchar(36);index"`
	Name        string `json:"name" gorm:"type:varchar(255)"`
	Manager     string `json:"manager" gorm:"type:varchar(255)"`
	ImageID     string `json:"image_id" gorm:"type:varchar(36)"`
	Packages    string `json:"packages" gorm:"type:varchar(511)"`
	Active      bool   `json:"active"`
	// ClusterOptions holds the topology options of this version as JSON.
	ClusterOptions datatypes.JSON `json:"cluster_options" gorm:"type:json"`
}

func (DatastoreVersion) TableName() string {
	return "datastore_versions"
}

type DatastoreConfigurationParameter struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string     `json:"name" gorm:"type:varchar(128)"`
	DatastoreVersionID string     `json:"datastore_version_id" gorm:"type:varchar(36);index"`
	DataType           string     `json:"data_type" gorm:"type:varchar(128)"`
	MinSize            *float64   `json:"min_size"`
	MaxSize            *float64   `json:"max_size"`
	RestartRequired    bool       `json:"restart_required"`
	Deleted            bool       `json:"deleted"`
	DeletedAt          *time.Time `json:"deleted_at" gorm:"type:datetime"`
}

func (DatastoreConfigurationParameter) TableName() string {
	return "datastore_configuration_parameters"
}
