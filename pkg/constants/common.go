package constants

// Instance roles inside a cluster
const (
	RoleMember       = "member"
	RoleQueryRouter  = "query_router"
	RoleConfigServer = "config_server"
)

// Guest reported datastore service status
const (
	ServiceStatusNew          = "NEW"
	ServiceStatusBuildPending = "BUILD_PENDING"
	ServiceStatusRunning      = "RUNNING"
	ServiceStatusShutdown     = "SHUTDOWN"
	ServiceStatusFailed       = "FAILED"
	ServiceStatusCrashed      = "CRASHED"
	ServiceStatusBlocked      = "BLOCKED"
	ServiceStatusUnknown      = "UNKNOWN"
)

// Compute server status
const (
	ServerStatusBuild   = "BUILD"
	ServerStatusActive  = "ACTIVE"
	ServerStatusError   = "ERROR"
	ServerStatusShutoff = "SHUTOFF"
	ServerStatusDeleted = "DELETED"
)

// Tenant facing instance status
const (
	InstanceStatusBuild           = "BUILD"
	InstanceStatusActive          = "ACTIVE"
	InstanceStatusError           = "ERROR"
	InstanceStatusShutdown        = "SHUTDOWN"
	InstanceStatusRestartRequired = "RESTART_REQUIRED"
	InstanceStatusUnknown         = "UNKNOWN"
)

// Quota resources
const (
	ResourceInstances = "instances"
	ResourceVolumes   = "volumes"
	ResourceBackups   = "backups"
)

// Reservation status
const (
	ReservationReserved   = "Reserved"
	ReservationCommitted  = "Committed"
	ReservationRolledBack = "RolledBack"
)

// Cluster owned IaaS resources
const (
	ResourceTypeServerGroup = "server_group"
)

// Server group policies
const (
	LocalityAffinity     = "affinity"
	LocalityAntiAffinity = "anti-affinity"
)

// Block storage volume status
const (
	VolumeStatusAvailable = "available"
	VolumeStatusError     = "error"
)
