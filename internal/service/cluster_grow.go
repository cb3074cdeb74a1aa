package service

import (
	"context"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// prepare gates action on capability and current task before any quota or
// IaaS work is done.
func (s *clusterService) prepare(ctx context.Context, cc *clusterContext, action task.Action) error {
	if action.Capability != "" {
		if err := s.capabilities.Require(ctx, action.Capability, cc.version.ID); err != nil {
			return err
		}
	}

	return permit(cc, action)
}

func existingNetwork(nodes []strategy.Node) string {
	for _, n := range nodes {
		if n.Instance.NetworkID != "" {
			return n.Instance.NetworkID
		}
	}

	return ""
}

func (s *clusterService) grow(ctx context.Context, cc *clusterContext, reqs []request.InstanceRequest) error {
	if err := s.prepare(ctx, cc, task.ActionGrow); err != nil {
		return err
	}
	if len(reqs) == 0 {
		return errs.Validation(errs.ReasonInvalidAction, "grow needs at least one instance")
	}

	existing, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	incoming := toMembers(reqs)
	network := existingNetwork(existing)
	for i := range incoming {
		switch incoming[i].NetworkID {
		case "":
			incoming[i].NetworkID = network
		case network:
		default:
			return errs.Validation(errs.ReasonNetworksNotEqual, "new instances must use the network of the cluster")
		}
	}

	if err := topology.CheckHomogeneity(incoming); err != nil {
		return err
	}
	flavor, err := s.flavorOf(ctx, incoming)
	if err != nil {
		return err
	}
	if err := topology.CheckVolumes(cc.options, incoming, flavor, s.opts.MaxVolumeSize); err != nil {
		return err
	}

	placements, err := cc.strategy.PlanGrow(ctx, cc.options, existing, incoming)
	if err != nil {
		return err
	}

	return s.expand(ctx, cc, task.ActionGrow, existing, placements)
}

func (s *clusterService) addShard(ctx context.Context, cc *clusterContext) error {
	if err := s.prepare(ctx, cc, task.ActionAddShard); err != nil {
		return err
	}

	existing, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	placements, err := cc.strategy.PlanAddShard(ctx, cc.options, existing)
	if err != nil {
		return err
	}

	return s.expand(ctx, cc, task.ActionAddShard, existing, placements)
}

// expand reserves quota for placements, creates them and hands them to the
// strategy once they are running.
func (s *clusterService) expand(ctx context.Context, cc *clusterContext, action task.Action, existing []strategy.Node, placements []strategy.Placement) error {
	reservations, err := s.quota.Check(ctx, cc.cluster.TenantID, placementDeltas(placements))
	if err != nil {
		return err
	}

	span, err := s.beginAction(ctx, cc, action, map[string]interface{}{
		"instance_count": len(placements),
	})
	if err != nil {
		if rerr := s.quota.Rollback(ctx, reservations); rerr != nil {
			s.logger.WithError(rerr).Error("failed to roll back quota reservations")
		}
		return err
	}

	logger := s.logger.WithField("cluster_id", cc.cluster.ID)

	serverGroupID, err := s.serverGroupOf(ctx, cc.cluster.ID)
	var added []*model.Instance
	if err == nil {
		// The cluster key is not kept after create; grown members receive the
		// admin credentials from an existing node during assembly.
		added, err = s.dispatch(ctx, cc, placements, serverGroupID, len(existing), "")
	}
	if err != nil {
		s.settleDispatched(ctx, logger, reservations, added)

		r := workflowRun{action: action, cc: cc, span: span, fault: constants.ErrClusterGrowFailed}
		w := s.newWorkflow(cc, action, "")
		for _, instance := range added {
			w.affect(instance.ID)
		}
		s.fail(ctx, r, w, err)

		return err
	}

	if err := s.quota.Commit(ctx, reservations); err != nil {
		logger.WithError(err).Error("failed to commit quota reservations")
	}

	s.launch(workflowRun{
		action: action,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterGrowFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			for _, instance := range added {
				w.affect(instance.ID)
			}

			if err := w.waitReady(ctx, 0, nodesOf(added)...); err != nil {
				return err
			}

			nodes := make([]strategy.Node, 0, len(added))
			for _, instance := range added {
				guest, err := s.guests.Guest(instance)
				if err != nil {
					return err
				}
				nodes = append(nodes, strategy.Node{Instance: instance, Guest: guest})
			}

			return cc.strategy.Grow(ctx, w, existing, nodes)
		},
	})

	return nil
}
