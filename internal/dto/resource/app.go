package resource

import (
	"time"
)

// AppResource answers GET / with build info and who the caller is.
type AppResource struct {
	App      string    `json:"app"`
	Env      string    `json:"env"`
	Version  string    `json:"version"`
	TenantID string    `json:"tenant_id"`
	Operator bool      `json:"operator"`
	Time     time.Time `json:"time"`
}
