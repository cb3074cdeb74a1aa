package strategy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// seedFlow is the bootstrap sequence shared by datastores whose members find
// each other through a seed list.
type seedFlow struct {
	selectSeeds    func(nodes []Node) []string
	bootstrapOrder func(nodes []Node) []Node
	// autoBootstrap datastores start seeds with auto bootstrap off and turn it
	// on for members joining a running cluster.
	autoBootstrap    bool
	cleanupAfterGrow bool
	decommission     bool
}

func (f seedFlow) assemble(ctx context.Context, w Workflow, nodes []Node) error {
	seeds := f.selectSeeds(nodes)
	w.Logger().WithField("seeds", seeds).Info("publishing seed list")

	if err := each(ctx, nodes, func(ctx context.Context, n Node) error {
		return n.Guest.SetSeeds(ctx, seeds)
	}); err != nil {
		return err
	}

	if f.autoBootstrap {
		for _, n := range nodes {
			if !contains(seeds, n.IP()) {
				continue
			}
			if err := n.Guest.SetAutoBootstrap(ctx, false); err != nil {
				return err
			}
		}
	}

	order := f.bootstrapOrder(nodes)
	for _, n := range order {
		w.Logger().WithField("instance_id", n.ID()).Info("starting node")
		if err := n.Guest.Restart(ctx); err != nil {
			return err
		}
		if err := w.WaitForRunning(ctx, n); err != nil {
			return err
		}
	}

	if w.Options().ClusterSecure {
		if err := secure(ctx, w.ClusterKey(), order[0], order[1:]); err != nil {
			return err
		}
	}

	return each(ctx, nodes, func(ctx context.Context, n Node) error {
		return n.Guest.ClusterComplete(ctx)
	})
}

func (f seedFlow) grow(ctx context.Context, w Workflow, existing, added []Node) error {
	source := existing[0]

	current, err := source.Guest.GetSeeds(ctx)
	if err != nil {
		return err
	}

	secured := w.Options().ClusterSecure
	var creds guestagent.Credentials
	if secured {
		if creds, err = source.Guest.GetAdminCredentials(ctx); err != nil {
			return err
		}
	}

	for _, n := range added {
		log := w.Logger().WithField("instance_id", n.ID())
		log.Info("joining node to cluster")

		if f.autoBootstrap {
			if err := n.Guest.SetAutoBootstrap(ctx, true); err != nil {
				return err
			}
		}
		if err := n.Guest.SetSeeds(ctx, current); err != nil {
			return err
		}
		if secured {
			if err := n.Guest.StoreAdminCredentials(ctx, creds); err != nil {
				return err
			}
		}
		if err := n.Guest.Restart(ctx); err != nil {
			return err
		}
		if err := w.WaitForRunning(ctx, n); err != nil {
			return err
		}
		if err := n.Guest.ClusterComplete(ctx); err != nil {
			return err
		}
	}

	all := append(append([]Node(nil), existing...), added...)
	if err := f.republish(ctx, w, all, current); err != nil {
		return err
	}

	if !f.cleanupAfterGrow {
		return nil
	}

	for _, n := range existing {
		w.Logger().WithField("instance_id", n.ID()).Info("running node cleanup")
		if err := n.Guest.NodeCleanupBegin(ctx); err != nil {
			return err
		}
		if err := n.Guest.NodeCleanup(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (f seedFlow) shrink(ctx context.Context, w Workflow, remaining, removed []Node) error {
	before := f.selectSeeds(append(append([]Node(nil), remaining...), removed...))

	for _, n := range removed {
		w.Logger().WithField("instance_id", n.ID()).Info("removing node from cluster")

		var err error
		if f.decommission {
			err = n.Guest.NodeDecommission(ctx)
		} else {
			err = n.Guest.StopDB(ctx)
		}
		if err != nil {
			return err
		}
	}

	if err := w.WaitForShutdown(ctx, removed...); err != nil {
		return err
	}

	return f.republish(ctx, w, remaining, before)
}

// republish sends the recomputed seed list to every node when it differs
// from previous.
func (f seedFlow) republish(ctx context.Context, w Workflow, nodes []Node, previous []string) error {
	next := f.selectSeeds(nodes)
	if sameStrings(next, previous) {
		return nil
	}

	w.Logger().WithFields(logrus.Fields{"seeds": next, "previous": previous}).Info("republishing seed list")

	return each(ctx, nodes, func(ctx context.Context, n Node) error {
		return n.Guest.SetSeeds(ctx, next)
	})
}

// secure creates the in-datastore admin on first and hands the credentials
// to the rest.
func secure(ctx context.Context, key string, first Node, rest []Node) error {
	creds, err := first.Guest.ClusterSecure(ctx, key)
	if err != nil {
		return err
	}

	return each(ctx, rest, func(ctx context.Context, n Node) error {
		return n.Guest.StoreAdminCredentials(ctx, creds)
	})
}

func keepOneMember(existing, targets []Node) error {
	left := len(withRole(existing, constants.RoleMember)) - len(withRole(targets, constants.RoleMember))
	if left < 1 {
		return errs.Validation(errs.ReasonShrinkMustNotLeaveClusterEmpty, "at least one member must remain in the cluster")
	}

	return nil
}

// matchShard requires incoming members to look like the shard they join.
func matchShard(shard []Node, members []topology.Member) error {
	if len(shard) == 0 {
		return nil
	}

	ref := shard[0].Instance
	for _, m := range members {
		if m.FlavorID != ref.FlavorID {
			return errs.Validation(errs.ReasonFlavorsNotEqual, "the flavor of new instances must match the shard they join")
		}
		if m.VolumeSize != ref.VolumeSize {
			return errs.Validation(errs.ReasonVolumeSizesNotEqual, "the volume size of new instances must match the shard they join")
		}
	}

	return nil
}

func placements(members []topology.Member, role, shardID, replicaSet string) []Placement {
	out := make([]Placement, 0, len(members))
	for _, m := range members {
		out = append(out, Placement{Member: m, Role: role, ShardID: shardID, ReplicaSet: replicaSet})
	}

	return out
}
