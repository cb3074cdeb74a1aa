package service

import (
	"context"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func (s *clusterService) shrink(ctx context.Context, cc *clusterContext, targets []request.ShrinkTarget) error {
	if err := s.prepare(ctx, cc, task.ActionShrink); err != nil {
		return err
	}
	if len(targets) == 0 {
		return errs.Validation(errs.ReasonInvalidAction, "shrink needs at least one instance")
	}

	nodes, err := s.nodes(ctx, cc.cluster.ID)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(targets))
	for _, t := range targets {
		wanted[t.ID] = true
	}

	var removed, remaining []strategy.Node
	for _, n := range nodes {
		if wanted[n.ID()] {
			removed = append(removed, n)
			delete(wanted, n.ID())
		} else {
			remaining = append(remaining, n)
		}
	}
	for _, t := range targets {
		if wanted[t.ID] {
			return errs.New(errs.KindNotFound, errs.ReasonClusterInstanceNotFound,
				"instance %s is not a member of cluster %s", t.ID, cc.cluster.ID)
		}
	}

	if err := cc.strategy.ShrinkPreconditions(ctx, nodes, removed); err != nil {
		return err
	}

	removedIDs := make([]string, 0, len(removed))
	for _, n := range removed {
		removedIDs = append(removedIDs, n.ID())
	}
	span, err := s.beginAction(ctx, cc, task.ActionShrink, map[string]interface{}{
		"instance_ids": removedIDs,
	})
	if err != nil {
		return err
	}

	s.launch(workflowRun{
		action: task.ActionShrink,
		cc:     cc,
		span:   span,
		fault:  constants.ErrClusterShrinkFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			w.affectNodes(remaining...)
			w.affectNodes(removed...)

			if err := cc.strategy.Shrink(ctx, w, remaining, removed); err != nil {
				return err
			}

			for _, n := range removed {
				if err := s.instances.Delete(ctx, n.Instance); err != nil {
					return err
				}
			}

			w.Logger().Infof("%d instances removed from cluster", len(removed))

			return nil
		},
	})

	return nil
}
