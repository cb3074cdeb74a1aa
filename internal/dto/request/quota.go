package request

type SetQuotaRequest struct {
	Resource string `json:"resource" validate:"required,oneof=instances volumes backups"`
	// Limit -1 lifts the limit.
	Limit int `json:"limit" validate:"gte=-1"`
}
