package service

import (
	"context"

	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/poll"
)

func (s *clusterService) DeleteCluster(ctx context.Context, tenantID, id string) error {
	cc, err := s.load(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return s.delete(ctx, cc)
}

// delete tears down every member, releases the server group and removes the
// cluster row once all members are gone.
func (s *clusterService) delete(ctx context.Context, cc *clusterContext) error {
	if err := permit(cc, task.ActionDelete); err != nil {
		return err
	}

	instances, err := s.repository.Instance().ListClusterInstances(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	span, err := s.beginAction(ctx, cc, task.ActionDelete, map[string]interface{}{
		"instance_count": len(instances),
	})
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionDelete,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterDeleteFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			for i := range instances {
				w.affect(instances[i].ID)
				if err := s.instances.Delete(ctx, &instances[i]); err != nil {
					return err
				}
			}

			if err := s.releaseServerGroups(ctx, cc.cluster.ID); err != nil {
				return err
			}

			gone := make(map[string]bool, len(instances))
			err := poll.Until(ctx, w.stateChange(0), func(ctx context.Context) (bool, error) {
				for i := range instances {
					if gone[instances[i].ID] {
						continue
					}
					done, err := s.instances.Reap(ctx, &instances[i])
					if err != nil {
						w.Logger().WithError(err).WithField("instance_id", instances[i].ID).Warn("instance not reaped yet")
						continue
					}
					gone[instances[i].ID] = done
				}

				return len(gone) == len(instances) && allTrue(gone), nil
			})
			if err != nil {
				return err
			}
			w.focus()

			return s.repository.Cluster().SoftDelete(ctx, cc.cluster.ID)
		},
	})

	return nil
}

func allTrue(m map[string]bool) bool {
	for _, v := range m {
		if !v {
			return false
		}
	}

	return true
}

func (s *clusterService) releaseServerGroups(ctx context.Context, clusterID string) error {
	groups, err := s.repository.Resources().GetClusterResources(ctx, clusterID, constants.ResourceTypeServerGroup)
	if err != nil {
		return err
	}

	for _, g := range groups {
		if err := s.compute.DeleteServerGroup(ctx, g.ResourceID); err != nil {
			return err
		}
		if err := s.repository.Resources().DeleteResource(ctx, clusterID, g.ResourceID); err != nil {
			return err
		}
	}

	return nil
}

// resetStatus forces the cluster and its members back to NONE whatever they
// are doing. Members being deleted are left alone.
func (s *clusterService) resetStatus(ctx context.Context, cc *clusterContext, forceDelete bool) error {
	span, err := s.beginAction(ctx, cc, task.ActionResetStatus, map[string]interface{}{
		"force_delete": forceDelete,
	})
	if err != nil {
		return err
	}

	instances, err := s.repository.Instance().ListClusterInstances(ctx, cc.cluster.ID)
	if err != nil {
		span.Fail(ctx, err)
		return err
	}
	for _, instance := range instances {
		current := instance.Task()
		if current.Equal(task.InstanceNone) || current.Equal(task.InstanceDeleting) {
			continue
		}
		if err := s.repository.Instance().SetTask(ctx, instance.ID, task.InstanceNone); err != nil {
			span.Fail(ctx, err)
			return err
		}
	}
	span.End(ctx, nil)

	s.logger.WithField("cluster_id", cc.cluster.ID).Warn("cluster status reset")

	if forceDelete {
		return s.delete(ctx, cc)
	}

	return nil
}
