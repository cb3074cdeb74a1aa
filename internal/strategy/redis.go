package strategy

import (
	"context"

	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

const redisHashSlots = 16384

// Redis forms a Redis Cluster: the first node meets the rest and the hash
// slots are split evenly across the initial members.
type Redis struct{}

func NewRedis() *Redis {
	return &Redis{}
}

func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) Managers() []string {
	return []string{"redis"}
}

func (r *Redis) PermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (r *Redis) GrowPermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (r *Redis) PlanCreate(_ topology.Options, members []topology.Member) ([]Placement, error) {
	if err := checkIncoming(members, r.PermittedRoles()); err != nil {
		return nil, err
	}

	return placements(members, constants.RoleMember, newShardID(), ""), nil
}

func (r *Redis) PlanGrow(_ context.Context, opts topology.Options, existing []Node, incoming []topology.Member) ([]Placement, error) {
	if err := checkGrow(opts, incoming, r.GrowPermittedRoles()); err != nil {
		return nil, err
	}
	if err := matchShard(existing, incoming); err != nil {
		return nil, err
	}

	shard := ""
	if len(existing) > 0 {
		shard = existing[0].Shard()
	}

	return placements(incoming, constants.RoleMember, shard, ""), nil
}

func (r *Redis) PlanAddShard(context.Context, topology.Options, []Node) ([]Placement, error) {
	return nil, errs.Validation(errs.ReasonActionNotSupported, "add_shard is not supported for redis clusters")
}

// ShrinkPreconditions asks every target whether it can leave; a node still
// owning slots answers with an empty id.
func (r *Redis) ShrinkPreconditions(ctx context.Context, existing, targets []Node) error {
	if err := keepOneMember(existing, targets); err != nil {
		return err
	}

	for _, n := range targets {
		id, err := n.Guest.GetNodeIDForRemoval(ctx)
		if err != nil {
			return err
		}
		if id == "" {
			return errs.Validation(errs.ReasonShrinkInstanceInUse, "instance %s still holds hash slots", n.ID())
		}
	}

	return nil
}

func (r *Redis) SelectSeeds(nodes []Node) []string {
	if len(nodes) == 0 {
		return nil
	}

	return []string{nodes[0].IP()}
}

func (r *Redis) BootstrapOrder(nodes []Node) []Node {
	return append([]Node(nil), nodes...)
}

func (r *Redis) UpgradeOrdering(nodes []Node) func(Node) int {
	return indexOrdering(nodes)
}

func (r *Redis) Assemble(ctx context.Context, w Workflow, nodes []Node) error {
	first := nodes[0]
	for _, n := range nodes[1:] {
		if err := first.Guest.ClusterMeet(ctx, n.IP()); err != nil {
			return err
		}
	}

	for i, n := range nodes {
		lo, hi := slotRange(i, len(nodes))
		w.Logger().WithField("instance_id", n.ID()).Infof("assigning slots %d-%d", lo, hi)
		if err := n.Guest.ClusterAddSlots(ctx, lo, hi); err != nil {
			return err
		}
	}

	return each(ctx, nodes, func(ctx context.Context, n Node) error {
		return n.Guest.ClusterComplete(ctx)
	})
}

// Grow joins the new nodes without slots; rebalancing is left to the
// operator.
func (r *Redis) Grow(ctx context.Context, w Workflow, existing, added []Node) error {
	first := existing[0]
	for _, n := range added {
		w.Logger().WithField("instance_id", n.ID()).Info("meeting new node")
		if err := first.Guest.ClusterMeet(ctx, n.IP()); err != nil {
			return err
		}
	}

	return each(ctx, added, func(ctx context.Context, n Node) error {
		return n.Guest.ClusterComplete(ctx)
	})
}

func (r *Redis) Shrink(ctx context.Context, w Workflow, remaining, removed []Node) error {
	ids := make([]string, 0, len(removed))
	for _, n := range removed {
		id, err := n.Guest.GetNodeIDForRemoval(ctx)
		if err != nil {
			return err
		}
		if id == "" {
			return errs.Validation(errs.ReasonShrinkInstanceInUse, "instance %s still holds hash slots", n.ID())
		}
		ids = append(ids, id)
	}

	if err := remaining[0].Guest.RemoveNodes(ctx, ids); err != nil {
		return err
	}
	if err := each(ctx, removed, func(ctx context.Context, n Node) error {
		return n.Guest.StopDB(ctx)
	}); err != nil {
		return err
	}

	return w.WaitForShutdown(ctx, removed...)
}

// slotRange returns the inclusive slot range of node i out of n.
func slotRange(i, n int) (int, int) {
	return i * redisHashSlots / n, (i+1)*redisHashSlots/n - 1
}
