package request

type HeartbeatRequest struct {
	ServiceStatus     string `json:"service_status" validate:"required"`
	GuestAgentVersion string `json:"guest_agent_version" validate:"required"`
}
