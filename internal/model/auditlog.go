package model

import (
	"time"

	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         int            `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	TenantID   string         `json:"tenant_id" gorm:"column:tenant_id;type:varchar(36);index"`
	ClusterID  string         `json:"cluster_id" gorm:"column:cluster_id;type:varchar(36);index"`
	EventType  string         `json:"event_type" gorm:"column:event_type;type:varchar(128)"`
	RequestID  string         `json:"request_id" gorm:"column:request_id;type:varchar(64)"`
	Payload    datatypes.JSON `json:"payload" gorm:"column:payload;type:json"`
	CreateDate time.Time      `json:"create_date" gorm:"column:create_date;type:datetime"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
