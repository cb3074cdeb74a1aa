package constants

// Fault messages recorded against clusters and instances
const (
	ErrGuestKeyInvalid = "Guest key does not match the instance"

	// Cluster Errors
	ErrClusterCreateFailed   = "Cluster creation process failed"
	ErrClusterAssemblyFailed = "Cluster assembly did not complete"
	ErrClusterGrowFailed     = "Growing the cluster failed"
	ErrClusterShrinkFailed   = "Shrinking the cluster failed"
	ErrClusterRestartFailed  = "Rolling restart of the cluster failed"
	ErrClusterUpgradeFailed  = "Rolling upgrade of the cluster failed"
	ErrClusterConfigFailed   = "Updating the cluster configuration failed"
	ErrClusterDeleteFailed   = "Deleting the cluster failed"

	// Instance Errors
	ErrInstanceCreateFailed = "Failed to create instance resources"
	ErrInstanceBuildTimeout = "Instance did not become active before the usage timeout"
	ErrInstanceServerError  = "Compute server went into ERROR state"

	ErrDatabaseQueryFailed = "Database query execution failed"
)
