package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// setMembersConfiguration records configurationID, or none when nil, on the
// cluster and every member in one transaction.
func (s *clusterService) setMembersConfiguration(ctx context.Context, clusterID string, nodes []strategy.Node, configurationID *string) error {
	return s.repository.Transaction(ctx, func(tx repository.IRepository) error {
		if err := tx.Cluster().SetConfiguration(ctx, clusterID, configurationID); err != nil {
			return err
		}
		for _, n := range nodes {
			var value interface{}
			if configurationID != nil {
				value = *configurationID
			}
			if err := tx.Instance().UpdateInstance(ctx, n.ID(), map[string]interface{}{"configuration_id": value}); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *clusterService) markRestartRequired(ctx context.Context, nodes ...strategy.Node) error {
	for _, n := range nodes {
		if err := s.repository.Instance().SetTask(ctx, n.ID(), task.RestartRequired); err != nil {
			return err
		}
	}

	return nil
}

// attachConfiguration saves the group on every member that does not have it
// yet, or on all members when force is set, then applies it starting with
// the first member. Attaching the group already attached is a no-op unless
// force is set; another group must be detached first.
func (s *clusterService) attachConfiguration(ctx context.Context, cc *clusterContext, configurationID string, applyOnAll, force bool) error {
	if err := s.prepare(ctx, cc, task.ActionConfigurationAttach); err != nil {
		return err
	}

	switch attached := model.Deref(cc.cluster.ConfigurationID); {
	case attached == configurationID && !force:
		return nil
	case attached != "" && attached != configurationID:
		return errs.Conflict("cluster %s already has configuration %s attached", cc.cluster.ID, attached)
	}

	group, err := loadConfiguration(ctx, s.repository, cc.cluster.TenantID, configurationID)
	if err != nil {
		return err
	}
	if group.DatastoreVersionID != cc.version.ID {
		return errs.Validation(errs.ReasonConfigurationDatastoreMismatch,
			"configuration %s does not match the datastore version of cluster %s", configurationID, cc.cluster.ID)
	}

	nodes, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	span, err := s.beginAction(ctx, cc, task.ActionConfigurationAttach, map[string]interface{}{
		"configuration_id": configurationID,
		"apply_on_all":     applyOnAll,
	})
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionConfigurationAttach,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterConfigFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			w.affectNodes(nodes...)

			g, gctx := errgroup.WithContext(ctx)
			for _, n := range nodes {
				n := n
				if !force && model.Deref(n.Instance.ConfigurationID) == configurationID {
					continue
				}
				g.Go(func() error {
					return n.Guest.SaveConfiguration(gctx, group.guestGroup())
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if err := s.setMembersConfiguration(ctx, cc.cluster.ID, nodes, &configurationID); err != nil {
				return err
			}
			if len(nodes) == 0 {
				return nil
			}

			applied, err := nodes[0].Guest.ApplyConfiguration(ctx, group.guestGroup())
			if err != nil {
				return err
			}
			if !applied && !applyOnAll {
				if err := s.markRestartRequired(ctx, nodes...); err != nil {
					return err
				}
				w.focus()

				return nil
			}

			if !applied {
				if err := s.markRestartRequired(ctx, nodes[0]); err != nil {
					return err
				}
			}
			for _, n := range nodes[1:] {
				ok, err := n.Guest.ApplyConfiguration(ctx, group.guestGroup())
				if err != nil {
					return err
				}
				if !ok {
					if err := s.markRestartRequired(ctx, n); err != nil {
						return err
					}
				}
			}
			w.focus()

			return nil
		},
	})

	return nil
}

func (s *clusterService) detachConfiguration(ctx context.Context, cc *clusterContext) error {
	if err := s.prepare(ctx, cc, task.ActionConfigurationDetach); err != nil {
		return err
	}

	prior := model.Deref(cc.cluster.ConfigurationID)
	if prior == "" {
		return nil
	}

	nodes, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	span, err := s.beginAction(ctx, cc, task.ActionConfigurationDetach, map[string]interface{}{
		"configuration_id": prior,
	})
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionConfigurationDetach,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterConfigFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			w.affectNodes(nodes...)

			for _, n := range nodes {
				if err := n.Guest.DeleteConfiguration(ctx); err != nil {
					return err
				}
			}
			if err := s.setMembersConfiguration(ctx, cc.cluster.ID, nodes, nil); err != nil {
				return err
			}

			for _, n := range nodes {
				applied, err := n.Guest.ResetConfiguration(ctx, prior)
				if err != nil {
					return err
				}
				if !applied {
					if err := s.markRestartRequired(ctx, n); err != nil {
						return err
					}
				}
			}
			w.focus()

			return nil
		},
	})

	return nil
}

// RefreshConfiguration pushes the current values of the attached group to
// every member again.
func (s *clusterService) RefreshConfiguration(ctx context.Context, tenantID, clusterID string) error {
	cc, err := s.load(ctx, tenantID, clusterID)
	if err != nil {
		return err
	}

	configurationID := model.Deref(cc.cluster.ConfigurationID)
	if configurationID == "" {
		return nil
	}

	return s.attachConfiguration(ctx, cc, configurationID, false, true)
}
