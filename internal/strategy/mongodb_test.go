package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func shardedCluster() *cluster {
	c := newCluster()
	c.add("m1", constants.RoleMember, "s1")
	c.add("m2", constants.RoleMember, "s1")
	c.add("m3", constants.RoleMember, "s1")
	c.add("c1", constants.RoleConfigServer, "")
	c.add("q1", constants.RoleQueryRouter, "")
	for _, id := range []string{"m1", "m2", "m3"} {
		c.fake(id).ReplicaSet = "rs1"
	}

	return c
}

func mongoOptions() topology.Options {
	opts := topology.Defaults()
	opts.MinClusterMemberCount = 3
	opts.NumConfigServersPerCluster = 3
	opts.NumQueryRoutersPerCluster = 1

	return opts
}

func TestNextReplicaSet(t *testing.T) {
	assert.Equal(t, "rs1", nextReplicaSet(nil))
	assert.Equal(t, "rs2", nextReplicaSet([]string{"rs1", "rs3"}))
	assert.Equal(t, "rs4", nextReplicaSet([]string{"rs1", "rs2", "rs3"}))
}

func TestMongoPlanCreate(t *testing.T) {
	member := topology.Member{FlavorID: "1234", VolumeSize: 2, NetworkID: "net-1"}

	plan, err := NewMongoDB().PlanCreate(mongoOptions(), []topology.Member{member, member, member})
	require.NoError(t, err)
	require.Len(t, plan, 7)

	roles := map[string]int{}
	for _, p := range plan {
		roles[p.Role]++
		assert.Equal(t, "1234", p.FlavorID)
		assert.Equal(t, "net-1", p.NetworkID)
	}
	assert.Equal(t, map[string]int{
		constants.RoleMember:       3,
		constants.RoleConfigServer: 3,
		constants.RoleQueryRouter:  1,
	}, roles)
	assert.Equal(t, "rs1", plan[0].ReplicaSet)
	assert.NotEmpty(t, plan[0].ShardID)
	assert.Empty(t, plan[6].ShardID)
}

func TestMongoPlanGrowNamesReplicaSet(t *testing.T) {
	c := shardedCluster()

	plan, err := NewMongoDB().PlanGrow(context.Background(), mongoOptions(), c.nodes, []topology.Member{
		{Name: "a", FlavorID: "1234", VolumeSize: 1},
		{Name: "b", FlavorID: "1234", VolumeSize: 1, RelatedTo: "a"},
		{Name: "c", FlavorID: "1234", VolumeSize: 1, RelatedTo: "a"},
		{Name: "q2", Role: constants.RoleQueryRouter, FlavorID: "1234", VolumeSize: 1},
	})
	require.NoError(t, err)
	require.Len(t, plan, 4)

	for _, p := range plan[:3] {
		assert.Equal(t, "rs2", p.ReplicaSet)
		assert.Equal(t, plan[0].ShardID, p.ShardID)
		assert.NotEqual(t, "s1", p.ShardID)
	}
	assert.Equal(t, constants.RoleQueryRouter, plan[3].Role)

	_, err = NewMongoDB().PlanGrow(context.Background(), mongoOptions(), c.nodes, []topology.Member{
		{Name: "cfg", Role: constants.RoleConfigServer, FlavorID: "1234", VolumeSize: 1},
	})
	assert.Equal(t, errs.ReasonInvalidRole, errs.ReasonOf(err))

	_, err = NewMongoDB().PlanGrow(context.Background(), mongoOptions(), c.nodes, []topology.Member{
		{Name: "a", FlavorID: "1234", VolumeSize: 1},
	})
	assert.Equal(t, errs.ReasonNumInstancesNotLargeEnough, errs.ReasonOf(err))
}

func TestMongoPlanAddShardClonesFirstShard(t *testing.T) {
	c := shardedCluster()

	plan, err := NewMongoDB().PlanAddShard(context.Background(), mongoOptions(), c.nodes)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	for _, p := range plan {
		assert.Equal(t, constants.RoleMember, p.Role)
		assert.Equal(t, "rs2", p.ReplicaSet)
		assert.Equal(t, "1234", p.FlavorID)
		assert.Equal(t, 1, p.VolumeSize)
	}
}

func TestMongoShrinkPreconditions(t *testing.T) {
	c := shardedCluster()
	c.add("n1", constants.RoleMember, "s2")
	c.add("n2", constants.RoleMember, "s2")
	m := NewMongoDB()
	ctx := context.Background()

	err := m.ShrinkPreconditions(ctx, c.nodes, c.members("n1", "n2", "c1"))
	assert.Equal(t, errs.ReasonShrinkInstanceInUse, errs.ReasonOf(err))

	err = m.ShrinkPreconditions(ctx, c.nodes, c.members("n1"))
	assert.Equal(t, errs.ReasonShrinkInstanceInUse, errs.ReasonOf(err))

	err = m.ShrinkPreconditions(ctx, c.nodes, c.members("q1"))
	assert.Equal(t, errs.ReasonShrinkMustNotLeaveClusterEmpty, errs.ReasonOf(err))

	err = m.ShrinkPreconditions(ctx, c.nodes, c.members("m1", "m2", "m3", "n1", "n2"))
	assert.Equal(t, errs.ReasonShrinkMustNotLeaveClusterEmpty, errs.ReasonOf(err))

	assert.NoError(t, m.ShrinkPreconditions(ctx, c.nodes, c.members("n1", "n2")))
}

func TestMongoAssemble(t *testing.T) {
	c := shardedCluster()
	opts := mongoOptions()
	opts.ClusterSecure = true
	w := &fakeWorkflow{opts: opts, key: "k3y"}

	require.NoError(t, NewMongoDB().Assemble(context.Background(), w, c.nodes))

	rec := c.guests.Rec
	assert.Equal(t, []string{"m1"}, rec.Instances("PrepPrimary"))
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, rec.Find("m1", "AddMembers")[0].Args[0])
	assert.Equal(t, []string{"10.0.0.4"}, rec.Find("q1", "AddConfigServers")[0].Args[0])
	assert.Equal(t, []string{"q1"}, rec.Instances("CreateAdminUser"))
	assert.Len(t, rec.Instances("StoreAdminCredentials"), 4)
	assert.Equal(t, []interface{}{"rs1", "10.0.0.1"}, rec.Find("q1", "AddShard")[0].Args)
	assert.NotEmpty(t, rec.Find("q1", "IsShardActive"))
	assert.Equal(t, 5, rec.Count("ClusterComplete"))
}

func TestMongoShrinkRemovesShard(t *testing.T) {
	c := shardedCluster()
	c.add("n1", constants.RoleMember, "s2")
	c.fake("n1").ReplicaSet = "rs2"
	c.fake("q1").ShardActive = true
	w := &fakeWorkflow{opts: mongoOptions()}

	remaining := c.members("m1", "m2", "m3", "c1", "q1")
	require.NoError(t, NewMongoDB().Shrink(context.Background(), w, remaining, c.members("n1")))

	rec := c.guests.Rec
	assert.Equal(t, []interface{}{"rs2"}, rec.Find("q1", "RemoveShard")[0].Args)
	assert.Equal(t, []string{"n1"}, rec.Instances("StopDB"))
	assert.Equal(t, []string{"n1"}, w.shutdown)
}
