package model

import "time"

type Configuration struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string     `json:"name" gorm:"type:varchar(64)"`
	Description        string     `json:"description" gorm:"type:varchar(256)"`
	TenantID           string     `json:"tenant_id" gorm:"type:varchar(36);index"`
	DatastoreVersionID string     `json:"datastore_version_id" gorm:"type:varchar(36)"`
	Created            time.Time  `json:"created" gorm:"type:datetime"`
	Updated            time.Time  `json:"updated" gorm:"type:datetime"`
	Deleted            bool       `json:"deleted"`
	DeletedAt          *time.Time `json:"deleted_at" gorm:"type:datetime"`
}

func (Configuration) TableName() string {
	return "configurations"
}

type ConfigurationParameter struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConfigurationID    string     `json:"configuration_id" gorm:"type:varchar(36);index"`
	ConfigurationKey   string     `json:"configuration_key" gorm:"type:varchar(128)"`
	ConfigurationValue string     `json:"configuration_value" gorm:"type:varchar(128)"`
	Deleted            bool       `json:"deleted"`
	DeletedAt          *time.Time `json:"deleted_at" gorm:"type:datetime"`
}

func (ConfigurationParameter) TableName() string {
	return "configuration_parameters"
}
