package model

import "time"

type AgentHeartbeat struct {
	ID                string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InstanceID        string    `json:"instance_id" gorm:"type:varchar(36);uniqueIndex"`
	GuestAgentVersion string    `json:"guest_agent_version" gorm:"type:varchar(255)"`
	ServiceStatus     string    `json:"service_status" gorm:"type:varchar(64)"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"type:datetime"`
	Deleted           bool      `json:"deleted"`
}

func (AgentHeartbeat) TableName() string {
	return "agent_heartbeats"
}

// IsFresh reports whether the heartbeat is newer than expiry at now.
func (h AgentHeartbeat) IsFresh(now time.Time, expiry time.Duration) bool {
	return !h.Deleted && now.Sub(h.UpdatedAt) <= expiry
}
