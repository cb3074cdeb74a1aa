package task

var (
	ClusterNone        = Task{Code: 0x01, Name: "NONE", Description: "No tasks for the cluster."}
	BuildingInitial    = Task{Code: 0x02, Name: "BUILDING_INITIAL", Description: "Building the initial cluster."}
	ClusterDeleting    = Task{Code: 0x03, Name: "DELETING", Description: "Deleting the cluster."}
	AddingShard        = Task{Code: 0x04, Name: "ADDING_SHARD", Description: "Adding a shard to the cluster."}
	GrowingCluster     = Task{Code: 0x05, Name: "GROWING_CLUSTER", Description: "Increasing the size of the cluster."}
	ShrinkingCluster   = Task{Code: 0x06, Name: "SHRINKING_CLUSTER", Description: "Decreasing the size of the cluster."}
	UpgradingCluster   = Task{Code: 0x07, Name: "UPGRADING_CLUSTER", Description: "Upgrading the cluster to a new version."}
	RestartingCluster  = Task{Code: 0x08, Name: "RESTARTING_CLUSTER", Description: "Restarting the cluster."}
	UpdatingCluster    = Task{Code: 0x09, Name: "UPDATING_CLUSTER", Description: "Updating cluster configuration."}
	clusterTaskCatalog = newRegistry("cluster",
		ClusterNone,
		BuildingInitial,
		ClusterDeleting,
		AddingShard,
		GrowingCluster,
		ShrinkingCluster,
		UpgradingCluster,
		RestartingCluster,
		UpdatingCluster,
	)
)

func ClusterTaskFromCode(code int) (Task, bool) {
	return clusterTaskCatalog.fromCode(code)
}

func ClusterTasks() []Task {
	return clusterTaskCatalog.all()
}
