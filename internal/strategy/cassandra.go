package strategy

import (
	"context"
	"sort"

	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// Cassandra maps shards onto racks. The first member of every region and
// rack is a seed; seeds start first with auto bootstrap off.
type Cassandra struct {
	flow seedFlow
}

func NewCassandra() *Cassandra {
	c := &Cassandra{}
	c.flow = seedFlow{
		selectSeeds:      c.SelectSeeds,
		bootstrapOrder:   c.BootstrapOrder,
		autoBootstrap:    true,
		cleanupAfterGrow: true,
		decommission:     true,
	}

	return c
}

func (c *Cassandra) Name() string {
	return "cassandra"
}

func (c *Cassandra) Managers() []string {
	return []string{"cassandra"}
}

func (c *Cassandra) PermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (c *Cassandra) GrowPermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (c *Cassandra) PlanCreate(_ topology.Options, members []topology.Member) ([]Placement, error) {
	if err := checkIncoming(members, c.PermittedRoles()); err != nil {
		return nil, err
	}

	return placements(members, constants.RoleMember, newShardID(), ""), nil
}

// PlanGrow adds related members as a new rack. Members standing alone join
// the first existing rack.
func (c *Cassandra) PlanGrow(_ context.Context, opts topology.Options, existing []Node, incoming []topology.Member) ([]Placement, error) {
	if err := checkGrow(opts, incoming, c.GrowPermittedRoles()); err != nil {
		return nil, err
	}

	shards, groups := byShard(existing)
	var out []Placement
	for _, g := range groupMembers(incoming) {
		if g.loose && len(shards) > 0 {
			if err := matchShard(groups[shards[0]], g.members); err != nil {
				return nil, err
			}
			out = append(out, placements(g.members, constants.RoleMember, shards[0], "")...)
			continue
		}

		if err := topology.CheckHomogeneity(g.members); err != nil {
			return nil, err
		}
		out = append(out, placements(g.members, constants.RoleMember, newShardID(), "")...)
	}

	return out, nil
}

func (c *Cassandra) PlanAddShard(context.Context, topology.Options, []Node) ([]Placement, error) {
	return nil, errs.Validation(errs.ReasonActionNotSupported, "add_shard is not supported for cassandra clusters")
}

func (c *Cassandra) ShrinkPreconditions(_ context.Context, existing, targets []Node) error {
	return keepOneMember(existing, targets)
}

func (c *Cassandra) SelectSeeds(nodes []Node) []string {
	type rack struct{ region, shard string }

	seen := make(map[rack]bool)
	var seeds []string
	for _, n := range nodes {
		key := rack{region: n.Instance.RegionID, shard: n.Shard()}
		if seen[key] {
			continue
		}
		seen[key] = true
		seeds = append(seeds, n.IP())
	}

	return seeds
}

func (c *Cassandra) BootstrapOrder(nodes []Node) []Node {
	seeds := c.SelectSeeds(nodes)
	out := append([]Node(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		return contains(seeds, out[i].IP()) && !contains(seeds, out[j].IP())
	})

	return out
}

func (c *Cassandra) UpgradeOrdering(nodes []Node) func(Node) int {
	seeds := c.SelectSeeds(nodes)

	return func(n Node) int {
		if contains(seeds, n.IP()) {
			return 0
		}
		return 1
	}
}

func (c *Cassandra) Assemble(ctx context.Context, w Workflow, nodes []Node) error {
	return c.flow.assemble(ctx, w, nodes)
}

func (c *Cassandra) Grow(ctx context.Context, w Workflow, existing, added []Node) error {
	return c.flow.grow(ctx, w, existing, added)
}

func (c *Cassandra) Shrink(ctx context.Context, w Workflow, remaining, removed []Node) error {
	return c.flow.shrink(ctx, w, remaining, removed)
}
