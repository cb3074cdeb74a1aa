package task

// Action describes one cluster action: the cluster tasks it may start from,
// the task it holds while running and what happens to the cluster task when
// the workflow fails.
type Action struct {
	Name  string
	Event string
	// Capability gates the action per datastore version; empty means always on.
	Capability string
	// Allowed is nil for actions that may start from any task.
	Allowed        []Task
	Working        Task
	ResetOnFailure bool
	InstanceError  Task
	// DeadlineError replaces InstanceError when the workflow ran out of time.
	DeadlineError Task
}

var (
	ActionCreate = Action{
		Name:          "create",
		Event:         "cluster_create",
		Working:       BuildingInitial,
		InstanceError: BuildingErrorServer,
		DeadlineError: BuildingErrorTimeoutGA,
	}
	ActionDelete = Action{
		Name:          "delete",
		Event:         "cluster_delete",
		Allowed:       []Task{ClusterNone, ClusterDeleting},
		Working:       ClusterDeleting,
		InstanceError: DeletingError,
	}
	ActionGrow = Action{
		Name:           "grow",
		Event:          "cluster_grow",
		Capability:     "cluster_grow",
		Allowed:        []Task{ClusterNone},
		Working:        GrowingCluster,
		ResetOnFailure: true,
		InstanceError:  GrowingError,
	}
	ActionAddShard = Action{
		Name:           "add_shard",
		Event:          "cluster_add_shard",
		Capability:     "cluster_add_shard",
		Allowed:        []Task{ClusterNone},
		Working:        AddingShard,
		ResetOnFailure: true,
		InstanceError:  GrowingError,
	}
	ActionShrink = Action{
		Name:           "shrink",
		Event:          "cluster_shrink",
		Capability:     "cluster_shrink",
		Allowed:        []Task{ClusterNone},
		Working:        ShrinkingCluster,
		ResetOnFailure: true,
		InstanceError:  ShrinkingError,
	}
	ActionUpgrade = Action{
		Name:           "upgrade",
		Event:          "cluster_upgrade",
		Capability:     "cluster_upgrade",
		Allowed:        []Task{ClusterNone},
		Working:        UpgradingCluster,
		ResetOnFailure: true,
		InstanceError:  UpgradingError,
	}
	ActionRestart = Action{
		Name:          "restart",
		Event:         "cluster_restart",
		Capability:    "cluster_restart",
		Allowed:       []Task{ClusterNone},
		Working:       RestartingCluster,
		InstanceError: RestartingError,
	}
	ActionConfigurationAttach = Action{
		Name:           "configuration_attach",
		Event:          "cluster_configuration_attach",
		Capability:     "cluster_configuration",
		Allowed:        []Task{ClusterNone},
		Working:        UpdatingCluster,
		ResetOnFailure: true,
		InstanceError:  UpdatingError,
	}
	ActionConfigurationDetach = Action{
		Name:           "configuration_detach",
		Event:          "cluster_configuration_detach",
		Capability:     "cluster_configuration",
		Allowed:        []Task{ClusterNone},
		Working:        UpdatingCluster,
		ResetOnFailure: true,
		InstanceError:  UpdatingError,
	}
	ActionResetStatus = Action{
		Name:    "reset-status",
		Event:   "cluster_reset_status",
		Working: ClusterNone,
	}
)

func (a Action) Permits(current Task) bool {
	if a.Allowed == nil {
		return true
	}

	for _, t := range a.Allowed {
		if t.Equal(current) {
			return true
		}
	}

	return false
}

// AllowedCodes returns the codes of the allowed pre-states, or nil when any
// state is accepted.
func (a Action) AllowedCodes() []int {
	if a.Allowed == nil {
		return nil
	}

	codes := make([]int, 0, len(a.Allowed))
	for _, t := range a.Allowed {
		codes = append(codes, t.Code)
	}

	return codes
}

// FailureTask is the cluster task left behind when the workflow fails.
func (a Action) FailureTask() Task {
	if a.ResetOnFailure {
		return ClusterNone
	}

	return a.Working
}
