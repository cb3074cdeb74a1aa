package model

import "time"

type Quota struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(36);uniqueIndex:idx_quota_tenant_resource"`
	Resource  string    `json:"resource" gorm:"type:varchar(255);uniqueIndex:idx_quota_tenant_resource"`
	HardLimit int       `json:"hard_limit" gorm:"type:int(11)"`
	Created   time.Time `json:"created" gorm:"type:datetime"`
	Updated   time.Time `json:"updated" gorm:"type:datetime"`
}

func (Quota) TableName() string {
	return "quotas"
}

type QuotaUsage struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID string    `json:"tenant_id" gorm:"type:varchar(36);uniqueIndex:idx_usage_tenant_resource"`
	Resource string    `json:"resource" gorm:"type:varchar(255);uniqueIndex:idx_usage_tenant_resource"`
	InUse    int       `json:"in_use" gorm:"type:int(11)"`
	Reserved int       `json:"reserved" gorm:"type:int(11)"`
	Created  time.Time `json:"created" gorm:"type:datetime"`
	Updated  time.Time `json:"updated" gorm:"type:datetime"`
}

func (QuotaUsage) TableName() string {
	return "quota_usages"
}

type Reservation struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID string    `json:"tenant_id" gorm:"type:varchar(36);index"`
	UsageID  string    `json:"usage_id" gorm:"type:varchar(36)"`
	Resource string    `json:"resource" gorm:"type:varchar(255)"`
	Delta    int       `json:"delta" gorm:"type:int(11)"`
	Status   string    `json:"status" gorm:"type:varchar(36);index"`
	Created  time.Time `json:"created" gorm:"type:datetime"`
	Updated  time.Time `json:"updated" gorm:"type:datetime"`
}

func (Reservation) TableName() string {
	return "reservations"
}
