package utils

// Context

const (
	RequestIDKey = "requestid"
	ValidatorKey = "validator"
	LocalizerKey = "localizer"
	TenantKey    = "tenant"
	OperatorKey  = "operator"
)

// HTTP Header
const (
	AuthTokenHeaderKey = "X-Auth-Token"
	ProjectIDHeaderKey = "X-Project-Id"
	GuestKeyHeaderKey  = "X-Guest-Key"
)
