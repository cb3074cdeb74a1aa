package model

type ClusterResource struct {
	ID           int64  `json:"-" gorm:"primaryKey;autoIncrement"`
	ClusterID    string `json:"cluster_id" gorm:"type:varchar(36);index"`
	ResourceType string `json:"resource_type" gorm:"type:varchar(30)"`
	ResourceID   string `json:"resource_id" gorm:"type:varchar(36)"`
}

func (ClusterResource) TableName() string {
	return "cluster_resources"
}
