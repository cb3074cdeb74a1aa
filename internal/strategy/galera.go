package strategy

import (
	"context"

	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// Galera drives MariaDB and Percona XtraDB clusters: every member is a seed
// and members start in creation order, the first forming the primary
// component.
type Galera struct {
	flow seedFlow
}

func NewGalera() *Galera {
	g := &Galera{}
	g.flow = seedFlow{
		selectSeeds:    g.SelectSeeds,
		bootstrapOrder: g.BootstrapOrder,
	}

	return g
}

func (g *Galera) Name() string {
	return "galera"
}

func (g *Galera) Managers() []string {
	return []string{"mariadb", "pxc"}
}

func (g *Galera) PermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (g *Galera) GrowPermittedRoles() []string {
	return []string{constants.RoleMember}
}

func (g *Galera) PlanCreate(_ topology.Options, members []topology.Member) ([]Placement, error) {
	if err := checkIncoming(members, g.PermittedRoles()); err != nil {
		return nil, err
	}

	return placements(members, constants.RoleMember, newShardID(), ""), nil
}

func (g *Galera) PlanGrow(_ context.Context, opts topology.Options, existing []Node, incoming []topology.Member) ([]Placement, error) {
	if err := checkGrow(opts, incoming, g.GrowPermittedRoles()); err != nil {
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

func (g *Galera) PlanAddShard(context.Context, topology.Options, []Node) ([]Placement, error) {
	return nil, errs.Validation(errs.ReasonActionNotSupported, "add_shard is not supported for galera clusters")
}

func (g *Galera) ShrinkPreconditions(_ context.Context, existing, targets []Node) error {
	return keepOneMember(existing, targets)
}

func (g *Galera) SelectSeeds(nodes []Node) []string {
	return ips(nodes)
}

func (g *Galera) BootstrapOrder(nodes []Node) []Node {
	return append([]Node(nil), nodes...)
}

func (g *Galera) UpgradeOrdering(nodes []Node) func(Node) int {
	return indexOrdering(nodes)
}

func (g *Galera) Assemble(ctx context.Context, w Workflow, nodes []Node) error {
	return g.flow.assemble(ctx, w, nodes)
}

func (g *Galera) Grow(ctx context.Context, w Workflow, existing, added []Node) error {
	return g.flow.grow(ctx, w, existing, added)
}

func (g *Galera) Shrink(ctx context.Context, w Workflow, remaining, removed []Node) error {
	return g.flow.shrink(ctx, w, remaining, removed)
}
