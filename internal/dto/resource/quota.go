package resource

type QuotaUsageResource struct {
	Resource  string `json:"resource"`
	Limit     int    `json:"limit"`
	InUse     int    `json:"in_use"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}
