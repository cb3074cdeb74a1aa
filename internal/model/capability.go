package model

type Capability struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string `json:"name" gorm:"type:varchar(255);uniqueIndex"`
	Description string `json:"description" gorm:"type:varchar(255)"`
	Enabled     bool   `json:"enabled"`
}

func (Capability) TableName() string {
	return "capabilities"
}

type CapabilityOverride struct {
	ID                 string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CapabilityID       string `json:"capability_id" gorm:"type:varchar(36);index"`
	DatastoreVersionID string `json:"datastore_version_id" gorm:"type:varchar(36);index"`
	Enabled            bool   `json:"enabled"`
}

func (CapabilityOverride) TableName() string {
	return "capability_overrides"
}
