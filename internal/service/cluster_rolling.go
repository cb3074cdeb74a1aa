package service

import (
	"context"
	"sort"
	"time"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// restart restarts the guests one by one in bootstrap order. A failure
// leaves the cluster in RESTARTING_CLUSTER.
func (s *clusterService) restart(ctx context.Context, cc *clusterContext) error {
	if err := s.prepare(ctx, cc, task.ActionRestart); err != nil {
		return err
	}

	nodes, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	span, err := s.beginAction(ctx, cc, task.ActionRestart, nil)
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionRestart,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterRestartFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			for i, n := range cc.strategy.BootstrapOrder(nodes) {
				if i > 0 {
					if err := pause(ctx, cc.options.NodeSyncDuration()); err != nil {
						return err
					}
				}

				w.focus(n.ID())
				if err := s.repository.Instance().SetTask(ctx, n.ID(), task.Restarting); err != nil {
					return err
				}
				if err := n.Guest.Restart(ctx); err != nil {
					return err
				}
				if err := w.WaitForRunning(ctx, n); err != nil {
					return err
				}
				if err := s.repository.Instance().SetTask(ctx, n.ID(), task.InstanceNone); err != nil {
					return err
				}

				w.Logger().WithField("instance_id", n.ID()).Info("instance restarted")
			}
			w.focus()

			return nil
		},
	})

	return nil
}

// upgrade rebuilds the members on another version of the same datastore,
// one at a time in the order the strategy asks for.
func (s *clusterService) upgrade(ctx context.Context, cc *clusterContext, req request.UpgradeRequest) error {
	if err := s.prepare(ctx, cc, task.ActionUpgrade); err != nil {
		return err
	}

	target, err := s.repository.Datastore().GetVersionByName(ctx, cc.datastore.ID, req.DatastoreVersion)
	if err != nil {
		return err
	}
	if !target.Active {
		return errs.NotFound("datastore version %s is not active", target.Name)
	}
	if target.ID == cc.version.ID {
		return errs.Validation(errs.ReasonInvalidAction, "cluster already runs datastore version %s", target.Name)
	}
	if target.Manager != cc.version.Manager {
		return errs.Validation(errs.ReasonActionNotSupported,
			"datastore version %s uses manager %s, cluster uses %s", target.Name, target.Manager, cc.version.Manager)
	}

	nodes, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}
	order := cc.strategy.UpgradeOrdering(nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return order(nodes[i]) < order(nodes[j])
	})

	span, err := s.beginAction(ctx, cc, task.ActionUpgrade, map[string]interface{}{
		"datastore_version": target.Name,
	})
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionUpgrade,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterUpgradeFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			for _, n := range nodes {
				w.focus(n.ID())
				if err := s.instances.Upgrade(ctx, n.Instance, target); err != nil {
					return err
				}
				if err := w.WaitForRunning(ctx, n); err != nil {
					return err
				}

				w.Logger().WithField("instance_id", n.ID()).Infof("instance upgraded to %s", target.Name)
			}
			w.focus()

			return s.repository.Cluster().SetDatastoreVersion(ctx, cc.cluster.ID, target.ID)
		},
	})

	return nil
}
