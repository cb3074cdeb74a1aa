package model

import "time"

type Fault struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ClusterID  string    `json:"cluster_id" gorm:"type:varchar(36);index"`
	InstanceID string    `json:"instance_id" gorm:"type:varchar(36);index"`
	Message    string    `json:"message" gorm:"type:varchar(255);not null"`
	Details    string    `json:"details" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
}

func (Fault) TableName() string {
	return "faults"
}
