package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func createCluster(t *testing.T, h *harness, datastore string, reqs []request.InstanceRequest) string {
	t.Helper()

	view, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: datastore},
		Instances: reqs,
	})
	require.NoError(t, err)
	require.Equal(t, task.BuildingInitial.Name, view.Task.Name)

	h.waitTask(view.ID, task.ClusterNone)

	return view.ID
}

func TestCreateGaleraCluster(t *testing.T) {
	h := newHarness(t)

	id := createCluster(t, h, "mariadb", instanceRequests(3, 1, "net-1"))

	members := h.members(id)
	require.Len(t, members, 3)

	var ips []string
	for _, m := range members {
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
		assert.Equal(t, constants.RoleMember, m.Role())
		require.NotEmpty(t, m.PrimaryIP())
		ips = append(ips, m.PrimaryIP())
	}

	for _, m := range members {
		assert.Equal(t, []string{"SetSeeds", "Restart", "ClusterComplete"}, h.guests.Rec.Methods(m.ID))

		calls := h.guests.Rec.Find(m.ID, "SetSeeds")
		require.Len(t, calls, 1)
		assert.ElementsMatch(t, ips, calls[0].Args[0])
	}
	assert.Equal(t, ids(members), h.guests.Rec.Instances("Restart"))

	inUse, reserved := h.usage(constants.ResourceInstances)
	assert.Equal(t, 3, inUse)
	assert.Zero(t, reserved)
	inUse, reserved = h.usage(constants.ResourceVolumes)
	assert.Equal(t, 3, inUse)
	assert.Zero(t, reserved)

	view, err := h.clusters.GetCluster(context.Background(), tenant, id)
	require.NoError(t, err)
	assert.Equal(t, "mariadb", view.Datastore.Type)
	assert.Equal(t, "10.4", view.Datastore.Version)
	assert.Nil(t, view.Fault)
	for _, in := range view.Instances {
		assert.Equal(t, constants.InstanceStatusActive, in.Status)
	}
}

func TestCreateClusterRejectsUnequalVolumes(t *testing.T) {
	h := newHarness(t)

	reqs := instanceRequests(3, 1, "net-1")
	reqs[2].Volume.Size = 2

	_, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: reqs,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, errs.ReasonVolumeSizesNotEqual, errs.ReasonOf(err))

	clusters, err := h.clusters.ListClusters(context.Background(), tenant)
	require.NoError(t, err)
	assert.Empty(t, clusters.Clusters)
	assert.Zero(t, h.compute.ServerCount())

	_, reserved := h.usage(constants.ResourceInstances)
	assert.Zero(t, reserved)
}

func TestCreateClusterRejectsTooFewMembers(t *testing.T) {
	h := newHarness(t)

	_, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(2, 1, "net-1"),
	})
	assert.Equal(t, errs.ReasonNumInstancesNotLargeEnough, errs.ReasonOf(err))
}

func TestCreateClusterRejectsUnknownNetwork(t *testing.T) {
	h := newHarness(t)

	_, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(3, 1, "net-404"),
	})
	assert.Equal(t, errs.ReasonNetworkNotFound, errs.ReasonOf(err))
}

func TestCreateClusterQuotaExceeded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.quota.SetLimit(context.Background(), tenant, constants.ResourceInstances, 2))

	_, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(3, 1, "net-1"),
	})
	assert.True(t, errs.Is(err, errs.KindQuotaExceeded))
	assert.Zero(t, h.compute.ServerCount())
}

func TestCreateClusterWithLocalityCreatesServerGroup(t *testing.T) {
	h := newHarness(t)

	view, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(3, 1, "net-1"),
		Locality:  "anti-affinity",
	})
	require.NoError(t, err)
	h.waitTask(view.ID, task.ClusterNone)

	groups := h.compute.ServerGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "anti-affinity", groups[0].Policy)
	for _, req := range h.compute.Created() {
		require.NotNil(t, req.SchedulerHints)
		assert.Equal(t, groups[0].ID, req.SchedulerHints.Group)
	}
}

func TestGrowCassandraClusterAddsRack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := createCluster(t, h, "cassandra", instanceRequests(2, 1, "net-1"))
	before := h.members(id)
	require.Len(t, before, 2)
	h.guests.Rec.Reset()

	grow := instanceRequests(2, 1, "")
	grow[0].Name = "rack2-a"
	grow[1].Name = "rack2-b"
	grow[1].RelatedTo = "rack2-a"

	_, err := h.clusters.Action(ctx, tenant, id, request.ClusterActionRequest{Grow: grow}, false)
	require.NoError(t, err)
	h.waitTask(id, task.ClusterNone)

	after := h.members(id)
	require.Len(t, after, 4)

	existing := map[string]bool{before[0].ID: true, before[1].ID: true}
	var added []string
	for _, m := range after {
		if existing[m.ID] {
			continue
		}
		added = append(added, m.ID)
		assert.Equal(t, "net-1", m.NetworkID)
		assert.NotEqual(t, before[0].Shard(), m.Shard())
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
	}
	require.Len(t, added, 2)
	assert.Equal(t, h.instance(added[0]).Shard(), h.instance(added[1]).Shard())

	for _, a := range added {
		methods := h.guests.Rec.Methods(a)
		require.GreaterOrEqual(t, len(methods), 5)
		assert.Equal(t, []string{"SetAutoBootstrap", "SetSeeds", "StoreAdminCredentials", "Restart", "ClusterComplete"}, methods[:5])
		assert.Equal(t, true, h.guests.Rec.Find(a, "SetAutoBootstrap")[0].Args[0])
	}
	assert.Equal(t, ids(before), h.guests.Rec.Instances("NodeCleanup"))
	assert.Equal(t, 2, h.guests.Rec.Count("NodeCleanupBegin"))

	inUse, _ := h.usage(constants.ResourceInstances)
	assert.Equal(t, 4, inUse)
}

func TestGrowRejectsForeignNetwork(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Grow: instanceRequests(1, 1, "net-2"),
	}, false)
	assert.Equal(t, errs.ReasonNetworksNotEqual, errs.ReasonOf(err))
	assert.Equal(t, task.ClusterNone.Code, h.cluster("c1").TaskID)
}

func TestShrinkMongoConfigServerRefused(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mongodb6, task.ClusterNone,
		member{id: "router", role: constants.RoleQueryRouter},
		member{id: "config", role: constants.RoleConfigServer},
		member{id: "m1", role: constants.RoleMember, shard: "shard-1"},
		member{id: "m2", role: constants.RoleMember, shard: "shard-1"},
		member{id: "m3", role: constants.RoleMember, shard: "shard-1"},
	)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Shrink: []request.ShrinkTarget{{ID: "config"}},
	}, false)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, errs.ReasonShrinkInstanceInUse, errs.ReasonOf(err))
	assert.Equal(t, task.ClusterNone.Code, h.cluster("c1").TaskID)
	assert.Empty(t, h.guests.Rec.Calls())
}

func TestShrinkUnknownInstance(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Shrink: []request.ShrinkTarget{{ID: "nope"}},
	}, false)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Equal(t, errs.ReasonClusterInstanceNotFound, errs.ReasonOf(err))
}

func TestShrinkGaleraCluster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(ctx, tenant, "c1", request.ClusterActionRequest{
		Shrink: []request.ShrinkTarget{{ID: "i3"}},
	}, false)
	require.NoError(t, err)
	h.waitTask("c1", task.ClusterNone)

	assert.Equal(t, []string{"StopDB", "GetStatus"}, h.guests.Rec.Methods("i3")[:2])
	for _, id := range []string{"i1", "i2"} {
		calls := h.guests.Rec.Find(id, "SetSeeds")
		require.Len(t, calls, 1)
		assert.ElementsMatch(t, []string{"10.1.0.1", "10.1.0.2"}, calls[0].Args[0])
	}
	assert.Equal(t, task.InstanceDeleting.Code, h.instance("i3").TaskID)

	h.poller.Tick(ctx)

	_, err = h.repo.Instance().GetInstance(ctx, "i3")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Equal(t, []string{"i1", "i2"}, ids(h.members("c1")))
}

func TestShrinkFailureMarksMembers(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)
	h.guests.Get("i3").SetFail("StopDB", errors.New("agent gone"))

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Shrink: []request.ShrinkTarget{{ID: "i3"}},
	}, false)
	require.NoError(t, err)

	faults := h.waitFault("c1")
	assert.Equal(t, constants.ErrClusterShrinkFailed, faults[0].Message)
	h.waitTask("c1", task.ClusterNone)
	for _, m := range h.members("c1") {
		assert.Equal(t, task.ShrinkingError.Code, m.TaskID)
	}
}

func TestActionConflictWhileBusy(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.GrowingCluster, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Restart: &request.Empty{},
	}, false)
	assert.True(t, errs.Is(err, errs.KindConflict))
	assert.Equal(t, task.GrowingCluster.Code, h.cluster("c1").TaskID)
	assert.Empty(t, h.guests.Rec.Calls())
}

func TestActionRequiresExactlyOne(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Restart:  &request.Empty{},
		AddShard: &request.Empty{},
	}, false)
	assert.Equal(t, errs.ReasonInvalidAction, errs.ReasonOf(err))
}

func TestActionOnOtherTenantsCluster(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), "tenant-2", "c1", request.ClusterActionRequest{
		Restart: &request.Empty{},
	}, false)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestRollingRestart(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Restart: &request.Empty{},
	}, false)
	require.NoError(t, err)
	h.waitTask("c1", task.ClusterNone)

	assert.Equal(t, []string{"i1", "i2", "i3"}, h.guests.Rec.Instances("Restart"))
	for _, m := range h.members("c1") {
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
	}
}

func TestRollingRestartFailureKeepsClusterTask(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)
	h.guests.Get("i2").SetFail("Restart", errors.New("restart refused"))

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Restart: &request.Empty{},
	}, false)
	require.NoError(t, err)

	faults := h.waitFault("c1")
	require.Len(t, faults, 1)
	assert.Equal(t, constants.ErrClusterRestartFailed, faults[0].Message)

	assert.Equal(t, task.RestartingCluster.Code, h.cluster("c1").TaskID)
	assert.Equal(t, task.InstanceNone.Code, h.instance("i1").TaskID)
	assert.Equal(t, task.RestartingError.Code, h.instance("i2").TaskID)
	assert.Equal(t, task.InstanceNone.Code, h.instance("i3").TaskID)
	assert.Equal(t, []string{"i1", "i2"}, h.guests.Rec.Instances("Restart"))

	view, err := h.clusters.GetCluster(context.Background(), tenant, "c1")
	require.NoError(t, err)
	require.NotNil(t, view.Fault)
	assert.Contains(t, view.Fault.Details, "restart refused")
}

func TestUpgradeCluster(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := createCluster(t, h, "mariadb", instanceRequests(3, 1, "net-1"))
	h.guests.Rec.Reset()

	_, err := h.clusters.Action(ctx, tenant, id, request.ClusterActionRequest{
		Upgrade: &request.UpgradeRequest{DatastoreVersion: "10.5"},
	}, false)
	require.NoError(t, err)
	h.waitTask(id, task.ClusterNone)

	assert.Equal(t, mariadb105, h.cluster(id).DatastoreVersionID)
	members := h.members(id)
	for _, m := range members {
		assert.Equal(t, mariadb105, m.DatastoreVersionID)
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
	}
	assert.Equal(t, ids(members), h.guests.Rec.Instances("StopDB"))
}

func TestUpgradeToCurrentVersionRefused(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	_, err := h.clusters.Action(context.Background(), tenant, "c1", request.ClusterActionRequest{
		Upgrade: &request.UpgradeRequest{DatastoreVersion: "10.4"},
	}, false)
	assert.Equal(t, errs.ReasonInvalidAction, errs.ReasonOf(err))
}

func TestAttachConfigurationNeedingRestart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	group, err := h.configurations.Create(ctx, tenant, request.CreateConfigurationRequest{
		Name:      "tuned",
		Datastore: request.DatastoreRef{Type: "mariadb", Version: "10.4"},
		Values:    map[string]interface{}{"max_connections": 200},
	})
	require.NoError(t, err)
	assert.True(t, group.RestartRequired)

	for _, id := range []string{"i1", "i2", "i3"} {
		h.guests.Get(id).NeedsRestart = true
	}

	_, err = h.clusters.Action(ctx, tenant, "c1", request.ClusterActionRequest{
		ConfigurationAttach: &request.ConfigurationAttachRequest{ConfigurationID: group.ID},
	}, false)
	require.NoError(t, err)
	h.waitTask("c1", task.ClusterNone)

	assert.Equal(t, 3, h.guests.Rec.Count("SaveConfiguration"))
	assert.Equal(t, 1, h.guests.Rec.Count("ApplyConfiguration"))

	cluster := h.cluster("c1")
	require.NotNil(t, cluster.ConfigurationID)
	assert.Equal(t, group.ID, *cluster.ConfigurationID)
	for _, m := range h.members("c1") {
		assert.Equal(t, task.RestartRequired.Code, m.TaskID)
		require.NotNil(t, m.ConfigurationID)
		assert.Equal(t, group.ID, *m.ConfigurationID)
	}
}

func TestDetachConfiguration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	group, err := h.configurations.Create(ctx, tenant, request.CreateConfigurationRequest{
		Name:      "tuned",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Values:    map[string]interface{}{"autocommit": false},
	})
	require.NoError(t, err)

	_, err = h.clusters.Action(ctx, tenant, "c1", request.ClusterActionRequest{
		ConfigurationAttach: &request.ConfigurationAttachRequest{ConfigurationID: group.ID, ApplyOnAll: true},
	}, false)
	require.NoError(t, err)
	h.waitTask("c1", task.ClusterNone)
	assert.Equal(t, 3, h.guests.Rec.Count("ApplyConfiguration"))

	_, err = h.clusters.Action(ctx, tenant, "c1", request.ClusterActionRequest{
		ConfigurationDetach: &request.Empty{},
	}, false)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.guests.Rec.Count("ResetConfiguration") == 3
	}, 5*time.Second, 10*time.Millisecond)
	h.waitTask("c1", task.ClusterNone)

	assert.Nil(t, h.cluster("c1").ConfigurationID)
	for _, m := range h.members("c1") {
		assert.Nil(t, m.ConfigurationID)
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
	}
}

func TestDeleteClusterReleasesQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterDeleting, members("i1", "i2", "i3")...)
	h.setUsage(constants.ResourceInstances, 5)
	h.setUsage(constants.ResourceVolumes, 10)

	require.NoError(t, h.clusters.DeleteCluster(ctx, tenant, "c1"))

	require.Eventually(t, func() bool {
		_, err := h.repo.Cluster().GetCluster(ctx, "c1")
		return errs.Is(err, errs.KindNotFound)
	}, 5*time.Second, 10*time.Millisecond)

	_, err := h.clusters.GetCluster(ctx, tenant, "c1")
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Empty(t, h.members("c1"))

	inUse, _ := h.usage(constants.ResourceInstances)
	assert.Equal(t, 2, inUse)
	volumes, _ := h.usage(constants.ResourceVolumes)
	assert.Equal(t, 7, volumes)

	h.poller.Tick(ctx)

	inUse, _ = h.usage(constants.ResourceInstances)
	assert.Equal(t, 2, inUse)
	volumes, _ = h.usage(constants.ResourceVolumes)
	assert.Equal(t, 7, volumes)
}

func TestResetStatusRequiresOperator(t *testing.T) {
	h := newHarness(t)
	h.seedCluster("c1", mariadb104, task.RestartingCluster, members("i1", "i2", "i3")...)

	req := request.ClusterActionRequest{ResetStatus: &request.ResetStatusRequest{}}

	_, err := h.clusters.Action(context.Background(), tenant, "c1", req, false)
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
	assert.Equal(t, task.RestartingCluster.Code, h.cluster("c1").TaskID)

	_, err = h.clusters.Action(context.Background(), tenant, "c1", req, true)
	require.NoError(t, err)
	assert.Equal(t, task.ClusterNone.Code, h.cluster("c1").TaskID)
}

func TestResetStatusClearsInstanceErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.RestartingCluster, members("i1", "i2", "i3")...)
	require.NoError(t, h.repo.Instance().SetTask(ctx, "i2", task.RestartingError))

	require.NoError(t, h.clusters.ResetStatus(ctx, "c1", false))

	assert.Equal(t, task.ClusterNone.Code, h.cluster("c1").TaskID)
	for _, m := range h.members("c1") {
		assert.Equal(t, task.InstanceNone.Code, m.TaskID)
	}
}

func TestGetClusterInstance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)
	h.seedCluster("c2", mariadb104, task.ClusterNone, members("j1")...)

	detail, err := h.clusters.GetClusterInstance(ctx, tenant, "c1", "i2")
	require.NoError(t, err)
	assert.Equal(t, "c1", detail.ClusterID)
	assert.Equal(t, []string{"10.1.0.2"}, detail.IPs)
	assert.Equal(t, constants.InstanceStatusActive, detail.Status)

	_, err = h.clusters.GetClusterInstance(ctx, tenant, "c1", "j1")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestCreateClusterBootstrapCarriesClusterConfig(t *testing.T) {
	h := newHarness(t)

	id := createCluster(t, h, "cassandra", instanceRequests(2, 1, "net-1"))

	secured := h.guests.Rec.Instances("ClusterSecure")
	require.Len(t, secured, 1)
	key, ok := h.guests.Rec.Find(secured[0], "ClusterSecure")[0].Args[0].(string)
	require.True(t, ok)
	require.NotEmpty(t, key)

	created := h.compute.Created()
	require.Len(t, created, 2)
	for _, req := range created {
		raw, err := base64.StdEncoding.DecodeString(req.Server.UserData)
		require.NoError(t, err)
		script := string(raw)

		instance := h.instance(req.Server.Metadata["instance_id"])
		assert.Contains(t, script, "[cluster]")
		assert.Contains(t, script, "cluster_id = "+id)
		assert.Contains(t, script, "role = "+constants.RoleMember)
		assert.Contains(t, script, "shard_id = "+instance.Shard())
		assert.Contains(t, script, "cluster_key = "+key)
	}
}

func TestCreateClusterUnsupportedDatastoreSkipsIaaS(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repo.Datastore().SaveVersion(ctx, &model.DatastoreVersion{
		ID: "v-mariadb-106", DatastoreID: "ds-mariadb", Name: "10.6", Manager: "mariadb", ImageID: "img-106", Active: true,
		ClusterOptions: datatypes.JSON(`{"cluster_support": false}`),
	}))
	h.compute.SetFail("GetFlavor", errors.New("compute unavailable"))

	_, err := h.clusters.CreateCluster(ctx, tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb", Version: "10.6"},
		Instances: instanceRequests(3, 1, "net-1"),
	})
	assert.Equal(t, errs.ReasonDatastoreNotSupported, errs.ReasonOf(err))
	assert.Zero(t, h.compute.Calls("GetFlavor"))
}

func TestFailedCreateThenDeleteReturnsQuota(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setUsage(constants.ResourceInstances, 5)
	h.setUsage(constants.ResourceVolumes, 10)
	h.compute.SetFailAfter("CreateServer", 1, errors.New("no valid host"))

	_, err := h.clusters.CreateCluster(ctx, tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(3, 1, "net-1"),
	})
	require.Error(t, err)

	clusters, err := h.clusters.ListClusters(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, clusters.Clusters, 1)
	id := clusters.Clusters[0].ID
	assert.Equal(t, task.BuildingInitial.Code, h.cluster(id).TaskID)
	require.Len(t, h.members(id), 2)

	inUse, reserved := h.usage(constants.ResourceInstances)
	assert.Equal(t, 7, inUse)
	assert.Zero(t, reserved)
	volumes, reserved := h.usage(constants.ResourceVolumes)
	assert.Equal(t, 12, volumes)
	assert.Zero(t, reserved)

	require.NoError(t, h.clusters.ResetStatus(ctx, id, true))
	require.Eventually(t, func() bool {
		_, err := h.repo.Cluster().GetCluster(ctx, id)
		return errs.Is(err, errs.KindNotFound)
	}, 5*time.Second, 10*time.Millisecond)

	inUse, _ = h.usage(constants.ResourceInstances)
	assert.Equal(t, 5, inUse)
	volumes, _ = h.usage(constants.ResourceVolumes)
	assert.Equal(t, 10, volumes)
}

func TestCreateClusterDeadlineKeepsBuildingInitial(t *testing.T) {
	h := newHarness(t, func(o *service.ClusterOptions) {
		o.UsageTimeout = 300 * time.Millisecond
	})
	h.compute.Status = constants.ServerStatusBuild

	view, err := h.clusters.CreateCluster(context.Background(), tenant, request.CreateClusterRequest{
		Name:      "prod",
		Datastore: request.DatastoreRef{Type: "mariadb"},
		Instances: instanceRequests(3, 1, "net-1"),
	})
	require.NoError(t, err)

	faults := h.waitFault(view.ID)
	assert.Equal(t, constants.ErrClusterAssemblyFailed, faults[0].Message)

	assert.Equal(t, task.BuildingInitial.Code, h.cluster(view.ID).TaskID)
	members := h.members(view.ID)
	require.Len(t, members, 3)
	for _, m := range members {
		assert.Equal(t, task.BuildingErrorTimeoutGA.Code, m.TaskID)
	}
	assert.Empty(t, h.guests.Rec.Calls())
}

func TestGrowFailureMarksNewInstances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := createCluster(t, h, "cassandra", instanceRequests(2, 1, "net-1"))
	before := h.members(id)
	h.compute.Status = constants.ServerStatusError

	_, err := h.clusters.Action(ctx, tenant, id, request.ClusterActionRequest{
		Grow: instanceRequests(1, 1, ""),
	}, false)
	require.NoError(t, err)

	faults := h.waitFault(id)
	assert.Equal(t, constants.ErrClusterGrowFailed, faults[0].Message)
	h.waitTask(id, task.ClusterNone)

	existing := map[string]bool{before[0].ID: true, before[1].ID: true}
	after := h.members(id)
	require.Len(t, after, 3)
	for _, m := range after {
		if existing[m.ID] {
			assert.Equal(t, task.InstanceNone.Code, m.TaskID)
			continue
		}
		assert.Equal(t, task.GrowingError.Code, m.TaskID)
	}

	inUse, reserved := h.usage(constants.ResourceInstances)
	assert.Equal(t, 3, inUse)
	assert.Zero(t, reserved)
}

// upgradeOutcome counts members by how far the upgrade got with them.
func upgradeOutcome(t *testing.T, members []model.Instance) (upgraded, failed, untouched int) {
	t.Helper()

	for _, m := range members {
		switch {
		case m.TaskID == task.UpgradingError.Code:
			assert.Equal(t, mariadb104, m.DatastoreVersionID)
			failed++
		case m.DatastoreVersionID == mariadb105:
			assert.Equal(t, task.InstanceNone.Code, m.TaskID)
			upgraded++
		default:
			assert.Equal(t, task.InstanceNone.Code, m.TaskID)
			untouched++
		}
	}

	return upgraded, failed, untouched
}

func TestUpgradeFailureKeepsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := createCluster(t, h, "mariadb", instanceRequests(3, 1, "net-1"))
	h.compute.SetFailAfter("RebuildServer", 1, errors.New("image unavailable"))

	_, err := h.clusters.Action(ctx, tenant, id, request.ClusterActionRequest{
		Upgrade: &request.UpgradeRequest{DatastoreVersion: "10.5"},
	}, false)
	require.NoError(t, err)

	faults := h.waitFault(id)
	assert.Equal(t, constants.ErrClusterUpgradeFailed, faults[0].Message)
	assert.Contains(t, faults[0].Details, "image unavailable")
	h.waitTask(id, task.ClusterNone)

	assert.Equal(t, mariadb104, h.cluster(id).DatastoreVersionID)
	upgraded, failed, untouched := upgradeOutcome(t, h.members(id))
	assert.Equal(t, 1, upgraded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, untouched)
}

func TestWorkflowPanicFailsAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := createCluster(t, h, "mariadb", instanceRequests(3, 1, "net-1"))
	h.compute.OnRebuild = func(string, string) {
		panic("rebuild crashed")
	}

	_, err := h.clusters.Action(ctx, tenant, id, request.ClusterActionRequest{
		Upgrade: &request.UpgradeRequest{DatastoreVersion: "10.5"},
	}, false)
	require.NoError(t, err)

	faults := h.waitFault(id)
	assert.Equal(t, constants.ErrClusterUpgradeFailed, faults[0].Message)
	assert.Contains(t, faults[0].Details, "rebuild crashed")
	h.waitTask(id, task.ClusterNone)

	assert.Equal(t, mariadb104, h.cluster(id).DatastoreVersionID)
	_, failed, untouched := upgradeOutcome(t, h.members(id))
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, untouched)
}

func TestAttachConfigurationAgainIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedCluster("c1", mariadb104, task.ClusterNone, members("i1", "i2", "i3")...)

	id := createConfiguration(t, h, map[string]interface{}{"autocommit": true})
	attach := func(configurationID string) error {
		_, err := h.clusters.Action(ctx, tenant, "c1", request.ClusterActionRequest{
			ConfigurationAttach: &request.ConfigurationAttachRequest{ConfigurationID: configurationID},
		}, false)
		return err
	}

	require.NoError(t, attach(id))
	h.waitTask("c1", task.ClusterNone)
	require.Equal(t, 3, h.guests.Rec.Count("SaveConfiguration"))
	h.guests.Rec.Reset()

	require.NoError(t, attach(id))
	assert.Equal(t, task.ClusterNone.Code, h.cluster("c1").TaskID)
	assert.Empty(t, h.guests.Rec.Calls())

	other := createConfiguration(t, h, map[string]interface{}{"autocommit": false})
	err := attach(other)
	assert.True(t, errs.Is(err, errs.KindConflict))

	cluster := h.cluster("c1")
	require.NotNil(t, cluster.ConfigurationID)
	assert.Equal(t, id, *cluster.ConfigurationID)
	assert.Empty(t, h.guests.Rec.Calls())
}
