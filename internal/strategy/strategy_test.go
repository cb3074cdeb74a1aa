package strategy

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/internal/guestagent/guestagenttest"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/poll"
)

type fakeWorkflow struct {
	opts     topology.Options
	key      string
	running  []string
	shutdown []string
}

func (w *fakeWorkflow) Options() topology.Options { return w.opts }
func (w *fakeWorkflow) ClusterKey() string        { return w.key }

func (w *fakeWorkflow) Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func (w *fakeWorkflow) WaitForRunning(_ context.Context, nodes ...Node) error {
	for _, n := range nodes {
		w.running = append(w.running, n.ID())
	}
	return nil
}

func (w *fakeWorkflow) WaitForShutdown(_ context.Context, nodes ...Node) error {
	for _, n := range nodes {
		w.shutdown = append(w.shutdown, n.ID())
	}
	return nil
}

func (w *fakeWorkflow) Poll(ctx context.Context, cond poll.Condition) error {
	for i := 0; i < 5; i++ {
		ok, err := cond(ctx)
		if err != nil || ok {
			return err
		}
	}
	return errs.New(errs.KindDeadline, "", "condition not met")
}

type cluster struct {
	guests *guestagenttest.Factory
	nodes  []Node
}

func newCluster() *cluster {
	return &cluster{guests: guestagenttest.NewFactory()}
}

func (c *cluster) add(id, role, shard string) Node {
	inst := &model.Instance{
		ID:         id,
		Type:       model.StringPtr(role),
		ShardID:    model.StringPtr(shard),
		FlavorID:   "1234",
		VolumeSize: 1,
		Addresses:  []byte(fmt.Sprintf(`["10.0.0.%d"]`, len(c.nodes)+1)),
	}
	n := Node{Instance: inst, Guest: c.guests.Get(id)}
	c.nodes = append(c.nodes, n)

	return n
}

func (c *cluster) members(ids ...string) []Node {
	var out []Node
	for _, id := range ids {
		for _, n := range c.nodes {
			if n.ID() == id {
				out = append(out, n)
			}
		}
	}

	return out
}

func (c *cluster) fake(id string) *guestagenttest.Fake {
	return c.guests.Get(id)
}

// positions returns the index of the first call of method per instance in
// the global call log.
func positions(rec *guestagenttest.Recorder, method string) map[string]int {
	out := make(map[string]int)
	for i, call := range rec.Calls() {
		if call.Method != method {
			continue
		}
		if _, ok := out[call.Instance]; !ok {
			out[call.Instance] = i
		}
	}

	return out
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	s, err := r.ForManager("mariadb")
	require.NoError(t, err)
	assert.Equal(t, "galera", s.Name())

	s, err = r.ForManager("cassandra")
	require.NoError(t, err)
	assert.Equal(t, "cassandra", s.Name())

	_, err = r.ForManager("sqlite")
	assert.Equal(t, errs.ReasonDatastoreNotSupported, errs.ReasonOf(err))

	assert.Panics(t, func() { NewRegistry(NewGalera(), NewGalera()) })
}

func TestGaleraAssembleOrder(t *testing.T) {
	c := newCluster()
	c.add("n1", constants.RoleMember, "s1")
	c.add("n2", constants.RoleMember, "s1")
	c.add("n3", constants.RoleMember, "s1")
	w := &fakeWorkflow{opts: topology.Defaults()}

	require.NoError(t, NewGalera().Assemble(context.Background(), w, c.nodes))

	rec := c.guests.Rec
	all := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for _, id := range []string{"n1", "n2", "n3"} {
		calls := rec.Find(id, "SetSeeds")
		require.Len(t, calls, 1)
		assert.Equal(t, all, calls[0].Args[0])
	}

	assert.Equal(t, []string{"n1", "n2", "n3"}, rec.Instances("Restart"))
	assert.Equal(t, []string{"n1", "n2", "n3"}, w.running)
	assert.Equal(t, 3, rec.Count("ClusterComplete"))
	assert.Zero(t, rec.Count("SetAutoBootstrap"))
	assert.Zero(t, rec.Count("ClusterSecure"))

	seeds, restarts, completes := positions(rec, "SetSeeds"), positions(rec, "Restart"), positions(rec, "ClusterComplete")
	for _, id := range []string{"n1", "n2", "n3"} {
		for _, other := range []string{"n1", "n2", "n3"} {
			assert.Less(t, seeds[id], restarts[other])
			assert.Less(t, restarts[id], completes[other])
		}
	}
}

func TestGaleraShrinkRepublishesSeeds(t *testing.T) {
	c := newCluster()
	c.add("n1", constants.RoleMember, "s1")
	c.add("n2", constants.RoleMember, "s1")
	c.add("n3", constants.RoleMember, "s1")
	w := &fakeWorkflow{opts: topology.Defaults()}
	g := NewGalera()

	require.NoError(t, g.ShrinkPreconditions(context.Background(), c.nodes, c.members("n3")))
	require.NoError(t, g.Shrink(context.Background(), w, c.members("n1", "n2"), c.members("n3")))

	rec := c.guests.Rec
	assert.Equal(t, []string{"n3"}, rec.Instances("StopDB"))
	assert.Equal(t, []string{"n3"}, w.shutdown)
	for _, id := range []string{"n1", "n2"} {
		calls := rec.Find(id, "SetSeeds")
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, calls[0].Args[0])
	}
	assert.Empty(t, rec.Find("n3", "SetSeeds"))
}

func TestShrinkMustLeaveAMember(t *testing.T) {
	c := newCluster()
	c.add("n1", constants.RoleMember, "s1")
	c.add("n2", constants.RoleMember, "s1")

	err := NewGalera().ShrinkPreconditions(context.Background(), c.nodes, c.nodes)
	assert.Equal(t, errs.ReasonShrinkMustNotLeaveClusterEmpty, errs.ReasonOf(err))
}

func TestGrowRejectsFixedSize(t *testing.T) {
	opts := topology.Defaults()
	size := 3
	opts.ClusterMemberCount = &size

	strategies := map[string]Strategy{
		"galera":    NewGalera(),
		"cassandra": NewCassandra(),
		"redis":     NewRedis(),
	}
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			c := newCluster()
			c.add("n1", constants.RoleMember, "s1")
			c.add("n2", constants.RoleMember, "s1")
			c.add("n3", constants.RoleMember, "s1")

			_, err := s.PlanGrow(context.Background(), opts, c.nodes, []topology.Member{{FlavorID: "1234", VolumeSize: 1}})
			assert.Equal(t, errs.ReasonActionNotSupported, errs.ReasonOf(err))

			plan, err := s.PlanGrow(context.Background(), topology.Defaults(), c.nodes, []topology.Member{{FlavorID: "1234", VolumeSize: 1}})
			require.NoError(t, err)
			assert.Len(t, plan, 1)
		})
	}
}

func TestCassandraSeedsAndBootstrap(t *testing.T) {
	c := newCluster()
	c.add("a1", constants.RoleMember, "rackA")
	c.add("a2", constants.RoleMember, "rackA")
	c.add("b1", constants.RoleMember, "rackB")
	c.add("b2", constants.RoleMember, "rackB")
	cs := NewCassandra()

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.3"}, cs.SelectSeeds(c.nodes))

	order := cs.BootstrapOrder(c.nodes)
	ids := make([]string, 0, len(order))
	for _, n := range order {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"a1", "b1", "a2", "b2"}, ids)

	key := cs.UpgradeOrdering(c.nodes)
	assert.Equal(t, 0, key(c.members("b1")[0]))
	assert.Equal(t, 1, key(c.members("a2")[0]))
}

func TestCassandraAssembleSecure(t *testing.T) {
	c := newCluster()
	c.add("a1", constants.RoleMember, "rackA")
	c.add("a2", constants.RoleMember, "rackA")
	c.add("a3", constants.RoleMember, "rackA")
	opts := topology.Defaults()
	opts.ClusterSecure = true
	w := &fakeWorkflow{opts: opts, key: "s3cret"}

	require.NoError(t, NewCassandra().Assemble(context.Background(), w, c.nodes))

	rec := c.guests.Rec
	assert.Equal(t, []string{"a1"}, rec.Instances("SetAutoBootstrap"))
	assert.Equal(t, false, rec.Find("a1", "SetAutoBootstrap")[0].Args[0])
	assert.Equal(t, []string{"a1"}, rec.Instances("ClusterSecure"))
	assert.ElementsMatch(t, []string{"a2", "a3"}, rec.Instances("StoreAdminCredentials"))
	assert.Equal(t, "s3cret", c.fake("a3").Creds.Password)
	assert.Equal(t, 3, rec.Count("ClusterComplete"))
}

func TestCassandraGrowNewRack(t *testing.T) {
	c := newCluster()
	existing := []Node{
		c.add("a1", constants.RoleMember, "rackA"),
		c.add("a2", constants.RoleMember, "rackA"),
		c.add("a3", constants.RoleMember, "rackA"),
	}
	for _, n := range existing {
		c.fake(n.ID()).Seeds = []string{"10.0.0.1"}
		c.fake(n.ID()).Creds.Username = "os_admin"
	}
	added := []Node{
		c.add("b1", constants.RoleMember, "rackB"),
		c.add("b2", constants.RoleMember, "rackB"),
		c.add("b3", constants.RoleMember, "rackB"),
	}
	opts := topology.Defaults()
	opts.ClusterSecure = true
	w := &fakeWorkflow{opts: opts}

	require.NoError(t, NewCassandra().Grow(context.Background(), w, existing, added))

	rec := c.guests.Rec
	for _, n := range added {
		assert.Equal(t, []string{
			"SetAutoBootstrap", "SetSeeds", "StoreAdminCredentials", "Restart", "ClusterComplete", "SetSeeds",
		}, rec.Methods(n.ID()))
		assert.Equal(t, true, rec.Find(n.ID(), "SetAutoBootstrap")[0].Args[0])
		assert.Equal(t, []string{"10.0.0.1"}, rec.Find(n.ID(), "SetSeeds")[0].Args[0])
		assert.Equal(t, "os_admin", c.fake(n.ID()).Creds.Username)
	}

	for _, n := range c.nodes {
		assert.Equal(t, []string{"10.0.0.1", "10.0.0.4"}, c.fake(n.ID()).Seeds)
	}

	var cleanup []string
	for _, call := range rec.Calls() {
		if call.Method == "NodeCleanupBegin" || call.Method == "NodeCleanup" {
			cleanup = append(cleanup, call.String())
		}
	}
	assert.Equal(t, []string{
		"a1:NodeCleanupBegin", "a1:NodeCleanup",
		"a2:NodeCleanupBegin", "a2:NodeCleanup",
		"a3:NodeCleanupBegin", "a3:NodeCleanup",
	}, cleanup)
}

func TestCassandraShrinkDecommissions(t *testing.T) {
	c := newCluster()
	c.add("a1", constants.RoleMember, "rackA")
	c.add("a2", constants.RoleMember, "rackA")
	c.add("b1", constants.RoleMember, "rackB")
	w := &fakeWorkflow{opts: topology.Defaults()}

	require.NoError(t, NewCassandra().Shrink(context.Background(), w, c.members("a1", "a2"), c.members("b1")))

	rec := c.guests.Rec
	assert.Equal(t, []string{"b1"}, rec.Instances("NodeDecommission"))
	assert.Equal(t, []string{"b1"}, w.shutdown)
	assert.ElementsMatch(t, []string{"a1", "a2"}, rec.Instances("SetSeeds"))
	assert.Equal(t, []string{"10.0.0.1"}, c.fake("a2").Seeds)
}

func TestCassandraPlanGrowGrouping(t *testing.T) {
	c := newCluster()
	c.add("a1", constants.RoleMember, "rackA")
	cs := NewCassandra()
	ctx := context.Background()

	plan, err := cs.PlanGrow(ctx, topology.Defaults(), c.nodes, []topology.Member{
		{Name: "x", FlavorID: "1234", VolumeSize: 1},
		{Name: "y", FlavorID: "1234", VolumeSize: 1, RelatedTo: "x"},
		{Name: "z", FlavorID: "1234", VolumeSize: 1, RelatedTo: "x"},
		{Name: "solo", FlavorID: "1234", VolumeSize: 1},
	})
	require.NoError(t, err)
	require.Len(t, plan, 4)

	assert.Equal(t, plan[0].ShardID, plan[1].ShardID)
	assert.Equal(t, plan[0].ShardID, plan[2].ShardID)
	assert.NotEqual(t, "rackA", plan[0].ShardID)
	assert.Equal(t, "rackA", plan[3].ShardID)

	_, err = cs.PlanGrow(ctx, topology.Defaults(), c.nodes, []topology.Member{
		{Name: "x", FlavorID: "1234", VolumeSize: 1},
		{Name: "x", FlavorID: "1234", VolumeSize: 1},
	})
	assert.Equal(t, errs.ReasonDuplicateInstanceName, errs.ReasonOf(err))

	_, err = cs.PlanGrow(ctx, topology.Defaults(), c.nodes, []topology.Member{
		{Name: "x", FlavorID: "1234", VolumeSize: 1, RelatedTo: "nobody"},
	})
	assert.Equal(t, errs.ReasonUnknownRelation, errs.ReasonOf(err))

	_, err = cs.PlanGrow(ctx, topology.Defaults(), c.nodes, []topology.Member{
		{Name: "x", Role: constants.RoleQueryRouter, FlavorID: "1234", VolumeSize: 1},
	})
	assert.Equal(t, errs.ReasonInvalidRole, errs.ReasonOf(err))

	_, err = cs.PlanGrow(ctx, topology.Defaults(), c.nodes, []topology.Member{
		{Name: "solo", FlavorID: "9999", VolumeSize: 1},
	})
	assert.Equal(t, errs.ReasonFlavorsNotEqual, errs.ReasonOf(err))
}

func TestRedisSlotRanges(t *testing.T) {
	lo, hi := slotRange(0, 3)
	assert.Equal(t, [2]int{0, 5460}, [2]int{lo, hi})
	lo, hi = slotRange(1, 3)
	assert.Equal(t, [2]int{5461, 10921}, [2]int{lo, hi})
	lo, hi = slotRange(2, 3)
	assert.Equal(t, [2]int{10922, 16383}, [2]int{lo, hi})
}

func TestRedisAssemble(t *testing.T) {
	c := newCluster()
	c.add("r1", constants.RoleMember, "s")
	c.add("r2", constants.RoleMember, "s")
	c.add("r3", constants.RoleMember, "s")

	require.NoError(t, NewRedis().Assemble(context.Background(), &fakeWorkflow{}, c.nodes))

	rec := c.guests.Rec
	meets := rec.Find("r1", "ClusterMeet")
	require.Len(t, meets, 2)
	assert.Equal(t, "10.0.0.2", meets[0].Args[0])
	assert.Equal(t, "10.0.0.3", meets[1].Args[0])
	assert.Equal(t, []interface{}{10922, 16383}, rec.Find("r3", "ClusterAddSlots")[0].Args)
	assert.Equal(t, 3, rec.Count("ClusterComplete"))
}

func TestRedisShrinkNeedsFreeNode(t *testing.T) {
	c := newCluster()
	c.add("r1", constants.RoleMember, "s")
	c.add("r2", constants.RoleMember, "s")
	r := NewRedis()
	ctx := context.Background()

	err := r.ShrinkPreconditions(ctx, c.nodes, c.members("r2"))
	assert.Equal(t, errs.ReasonShrinkInstanceInUse, errs.ReasonOf(err))

	c.fake("r2").NodeID = "abc123"
	require.NoError(t, r.ShrinkPreconditions(ctx, c.nodes, c.members("r2")))

	w := &fakeWorkflow{}
	require.NoError(t, r.Shrink(ctx, w, c.members("r1"), c.members("r2")))
	assert.Equal(t, []string{"abc123"}, c.guests.Rec.Find("r1", "RemoveNodes")[0].Args[0])
	assert.Equal(t, []string{"r2"}, w.shutdown)
}
