package task

var (
	InstanceNone     = Task{Code: 0x01, Name: "NONE", Description: "No tasks for the instance."}
	InstanceDeleting = Task{Code: 0x02, Name: "DELETING", Description: "Deleting the instance."}
	Rebooting        = Task{Code: 0x03, Name: "REBOOTING", Description: "Rebooting the instance."}
	Building         = Task{Code: 0x05, Name: "BUILDING", Description: "The instance is building."}
	RestartRequired  = Task{Code: 0x07, Name: "RESTART_REQUIRED", Description: "Instance requires a restart."}
	Upgrading        = Task{Code: 0x0c, Name: "UPGRADING", Description: "Upgrading the instance datastore version."}
	Restarting       = Task{Code: 0x0d, Name: "RESTARTING", Description: "Restarting the datastore on the instance."}
	Updating         = Task{Code: 0x0e, Name: "UPDATING", Description: "Updating the instance configuration."}

	BuildingErrorServer    = Task{Code: 0x51, Name: "BUILDING_ERROR_SERVER", Description: "Build error: Server.", IsError: true}
	BuildingErrorVolume    = Task{Code: 0x52, Name: "BUILDING_ERROR_VOLUME", Description: "Build error: Volume.", IsError: true}
	BuildingErrorTimeoutGA = Task{Code: 0x54, Name: "BUILDING_ERROR_TIMEOUT_GA", Description: "Build error: guest agent timeout.", IsError: true}
	GrowingError           = Task{Code: 0x58, Name: "GROWING_ERROR", Description: "Growing cluster error.", IsError: true}
	ShrinkingError         = Task{Code: 0x59, Name: "SHRINKING_ERROR", Description: "Shrinking cluster error.", IsError: true}
	UpgradingError         = Task{Code: 0x5a, Name: "UPGRADING_ERROR", Description: "Upgrading instance error.", IsError: true}
	RestartingError        = Task{Code: 0x5b, Name: "RESTARTING_ERROR", Description: "Restarting instance error.", IsError: true}
	UpdatingError          = Task{Code: 0x5c, Name: "UPDATING_ERROR", Description: "Updating instance configuration error.", IsError: true}
	DeletingError          = Task{Code: 0x5d, Name: "DELETING_ERROR", Description: "Deleting instance error.", IsError: true}

	instanceTaskCatalog = newRegistry("instance",
		InstanceNone,
		InstanceDeleting,
		Rebooting,
		Building,
		RestartRequired,
		Upgrading,
		Restarting,
		Updating,
		BuildingErrorServer,
		BuildingErrorVolume,
		BuildingErrorTimeoutGA,
		GrowingError,
		ShrinkingError,
		UpgradingError,
		RestartingError,
		UpdatingError,
		DeletingError,
	)
)

func InstanceTaskFromCode(code int) (Task, bool) {
	return instanceTaskCatalog.fromCode(code)
}

func InstanceTasks() []Task {
	return instanceTaskCatalog.all()
}
