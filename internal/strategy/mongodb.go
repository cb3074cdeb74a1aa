package strategy

import (
	"context"
	"fmt"

	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

const mongoAdminUser = "admin"

// MongoDB builds sharded clusters out of replica sets, config servers and
// query routers. Every shard is one replica set named rs<N>.
type MongoDB struct{}

func NewMongoDB() *MongoDB {
	return &MongoDB{}
}

func (m *MongoDB) Name() string {
	return "mongodb"
}

func (m *MongoDB) Managers() []string {
	return []string{"mongodb"}
}

func (m *MongoDB) PermittedRoles() []string {
	return []string{constants.RoleMember, constants.RoleQueryRouter, constants.RoleConfigServer}
}

func (m *MongoDB) GrowPermittedRoles() []string {
	return []string{constants.RoleMember, constants.RoleQueryRouter}
}

// PlanCreate places the requested members into the first shard and clones
// the first member's geometry for config servers and query routers.
func (m *MongoDB) PlanCreate(opts topology.Options, members []topology.Member) ([]Placement, error) {
	if err := checkIncoming(members, []string{constants.RoleMember}); err != nil {
		return nil, err
	}
	if opts.NumQueryRoutersPerCluster < 1 {
		return nil, errs.Validation(errs.ReasonNumInstancesNotSupported, "a sharded cluster needs at least one query router")
	}

	out := placements(members, constants.RoleMember, newShardID(), nextReplicaSet(nil))
	out = append(out, clones(members[0], opts.NumConfigServersPerCluster, constants.RoleConfigServer)...)
	out = append(out, clones(members[0], opts.NumQueryRoutersPerCluster, constants.RoleQueryRouter)...)

	return out, nil
}

func (m *MongoDB) PlanGrow(ctx context.Context, opts topology.Options, existing []Node, incoming []topology.Member) ([]Placement, error) {
	if err := checkIncoming(incoming, m.GrowPermittedRoles()); err != nil {
		return nil, err
	}

	used, err := replicaSetNames(ctx, existing)
	if err != nil {
		return nil, err
	}

	var out []Placement
	for _, g := range groupMembers(incoming) {
		if err := topology.CheckMemberCount(opts, len(g.members)); err != nil {
			return nil, err
		}
		if err := topology.CheckHomogeneity(g.members); err != nil {
			return nil, err
		}

		rs := nextReplicaSet(used)
		used = append(used, rs)
		out = append(out, placements(g.members, constants.RoleMember, newShardID(), rs)...)
	}

	for _, in := range incoming {
		if roleOf(in) == constants.RoleQueryRouter {
			out = append(out, Placement{Member: in, Role: constants.RoleQueryRouter})
		}
	}

	return out, nil
}

// PlanAddShard clones the geometry of the first shard into a new one.
func (m *MongoDB) PlanAddShard(ctx context.Context, _ topology.Options, existing []Node) ([]Placement, error) {
	shards, groups := byShard(withRole(existing, constants.RoleMember))
	if len(shards) == 0 {
		return nil, errs.Validation(errs.ReasonActionNotSupported, "cluster has no shard to clone")
	}

	used, err := replicaSetNames(ctx, existing)
	if err != nil {
		return nil, err
	}

	first := groups[shards[0]]
	ref := first[0].Instance
	template := topology.Member{
		FlavorID:         ref.FlavorID,
		VolumeSize:       ref.VolumeSize,
		VolumeType:       ref.VolumeType,
		NetworkID:        ref.NetworkID,
		AvailabilityZone: ref.AvailabilityZone,
		RegionID:         ref.RegionID,
	}

	members := make([]topology.Member, len(first))
	for i := range members {
		members[i] = template
	}

	return placements(members, constants.RoleMember, newShardID(), nextReplicaSet(used)), nil
}

func (m *MongoDB) ShrinkPreconditions(_ context.Context, existing, targets []Node) error {
	if len(withRole(targets, constants.RoleConfigServer)) > 0 {
		return errs.Validation(errs.ReasonShrinkInstanceInUse, "config servers cannot be removed from a cluster")
	}

	routers := len(withRole(existing, constants.RoleQueryRouter)) - len(withRole(targets, constants.RoleQueryRouter))
	if routers < 1 {
		return errs.Validation(errs.ReasonShrinkMustNotLeaveClusterEmpty, "at least one query router must remain")
	}

	_, have := byShard(withRole(existing, constants.RoleMember))
	order, drop := byShard(withRole(targets, constants.RoleMember))
	for _, shard := range order {
		if len(drop[shard]) != len(have[shard]) {
			return errs.Validation(errs.ReasonShrinkInstanceInUse, "only whole shards can be removed from a cluster")
		}
	}
	if len(order) > 0 && len(order) >= len(have) {
		return errs.Validation(errs.ReasonShrinkMustNotLeaveClusterEmpty, "at least one shard must remain")
	}

	return nil
}

// SelectSeeds returns the primary of every shard.
func (m *MongoDB) SelectSeeds(nodes []Node) []string {
	order, groups := byShard(withRole(nodes, constants.RoleMember))

	seeds := make([]string, 0, len(order))
	for _, s := range order {
		seeds = append(seeds, groups[s][0].IP())
	}

	return seeds
}

func (m *MongoDB) BootstrapOrder(nodes []Node) []Node {
	var out []Node
	out = append(out, withRole(nodes, constants.RoleConfigServer)...)
	out = append(out, withRole(nodes, constants.RoleMember)...)
	out = append(out, withRole(nodes, constants.RoleQueryRouter)...)

	return out
}

func (m *MongoDB) UpgradeOrdering([]Node) func(Node) int {
	rank := map[string]int{
		constants.RoleConfigServer: 0,
		constants.RoleMember:       1,
		constants.RoleQueryRouter:  2,
	}

	return func(n Node) int {
		return rank[n.Role()]
	}
}

func (m *MongoDB) Assemble(ctx context.Context, w Workflow, nodes []Node) error {
	routers := withRole(nodes, constants.RoleQueryRouter)
	if len(routers) == 0 {
		return errs.Validation(errs.ReasonNumInstancesNotSupported, "cluster has no query router")
	}
	router := routers[0]
	configIPs := ips(withRole(nodes, constants.RoleConfigServer))

	members := withRole(nodes, constants.RoleMember)
	order, shards := byShard(members)
	for _, s := range order {
		if err := m.initShard(ctx, w, shards[s]); err != nil {
			return err
		}
	}

	if err := each(ctx, routers, func(ctx context.Context, n Node) error {
		return n.Guest.AddConfigServers(ctx, configIPs)
	}); err != nil {
		return err
	}

	if w.Options().ClusterSecure {
		if err := router.Guest.CreateAdminUser(ctx, w.ClusterKey()); err != nil {
			return err
		}
		creds := guestagent.Credentials{Username: mongoAdminUser, Password: w.ClusterKey()}
		if err := each(ctx, others(nodes, router), func(ctx context.Context, n Node) error {
			return n.Guest.StoreAdminCredentials(ctx, creds)
		}); err != nil {
			return err
		}
	}

	for _, s := range order {
		if err := m.addShard(ctx, w, router, shards[s]); err != nil {
			return err
		}
	}

	return each(ctx, nodes, func(ctx context.Context, n Node) error {
		return n.Guest.ClusterComplete(ctx)
	})
}

func (m *MongoDB) Grow(ctx context.Context, w Workflow, existing, added []Node) error {
	router, err := m.router(existing)
	if err != nil {
		return err
	}

	configIPs := ips(withRole(existing, constants.RoleConfigServer))
	if err := each(ctx, withRole(added, constants.RoleQueryRouter), func(ctx context.Context, n Node) error {
		return n.Guest.AddConfigServers(ctx, configIPs)
	}); err != nil {
		return err
	}

	if w.Options().ClusterSecure {
		creds, err := router.Guest.GetAdminCredentials(ctx)
		if err != nil {
			return err
		}
		if err := each(ctx, added, func(ctx context.Context, n Node) error {
			return n.Guest.StoreAdminCredentials(ctx, creds)
		}); err != nil {
			return err
		}
	}

	order, shards := byShard(withRole(added, constants.RoleMember))
	for _, s := range order {
		if err := m.initShard(ctx, w, shards[s]); err != nil {
			return err
		}
		if err := m.addShard(ctx, w, router, shards[s]); err != nil {
			return err
		}
	}

	return each(ctx, added, func(ctx context.Context, n Node) error {
		return n.Guest.ClusterComplete(ctx)
	})
}

func (m *MongoDB) Shrink(ctx context.Context, w Workflow, remaining, removed []Node) error {
	router, err := m.router(remaining)
	if err != nil {
		return err
	}

	order, shards := byShard(withRole(removed, constants.RoleMember))
	for _, s := range order {
		rs, err := shards[s][0].Guest.GetReplicaSetName(ctx)
		if err != nil {
			return err
		}

		w.Logger().WithField("replica_set", rs).Info("draining shard")
		if err := router.Guest.RemoveShard(ctx, rs); err != nil {
			return err
		}
		if err := w.Poll(ctx, func(ctx context.Context) (bool, error) {
			active, err := router.Guest.IsShardActive(ctx, rs)
			return !active, err
		}); err != nil {
			return err
		}
	}

	if err := each(ctx, removed, func(ctx context.Context, n Node) error {
		return n.Guest.StopDB(ctx)
	}); err != nil {
		return err
	}

	return w.WaitForShutdown(ctx, removed...)
}

func (m *MongoDB) router(nodes []Node) (Node, error) {
	routers := withRole(nodes, constants.RoleQueryRouter)
	if len(routers) == 0 {
		return Node{}, errs.Validation(errs.ReasonNumInstancesNotSupported, "cluster has no query router")
	}

	return routers[0], nil
}

// initShard turns the first member into the replica set primary and adds the
// others to it.
func (m *MongoDB) initShard(ctx context.Context, w Workflow, shard []Node) error {
	primary := shard[0]
	w.Logger().WithField("instance_id", primary.ID()).Info("initiating replica set")

	if err := primary.Guest.PrepPrimary(ctx); err != nil {
		return err
	}
	if len(shard) == 1 {
		return nil
	}

	return primary.Guest.AddMembers(ctx, ips(shard[1:]))
}

func (m *MongoDB) addShard(ctx context.Context, w Workflow, router Node, shard []Node) error {
	rs, err := shard[0].Guest.GetReplicaSetName(ctx)
	if err != nil {
		return err
	}
	if err := router.Guest.AddShard(ctx, rs, shard[0].IP()); err != nil {
		return err
	}

	return w.Poll(ctx, func(ctx context.Context) (bool, error) {
		return router.Guest.IsShardActive(ctx, rs)
	})
}

func replicaSetNames(ctx context.Context, existing []Node) ([]string, error) {
	order, shards := byShard(withRole(existing, constants.RoleMember))

	names := make([]string, 0, len(order))
	for _, s := range order {
		name, err := shards[s][0].Guest.GetReplicaSetName(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, nil
}

// nextReplicaSet returns the lowest rs<N>, N >= 1, not in used.
func nextReplicaSet(used []string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("rs%d", n)
		if !contains(used, name) {
			return name
		}
	}
}

func clones(template topology.Member, count int, role string) []Placement {
	template.Name = ""
	template.RelatedTo = ""

	out := make([]Placement, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Placement{Member: template, Role: role})
	}

	return out
}

func others(nodes []Node, skip Node) []Node {
	var out []Node
	for _, n := range nodes {
		if n.ID() != skip.ID() {
			out = append(out, n)
		}
	}

	return out
}
