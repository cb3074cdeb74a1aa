package service_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/guestagent/guestagenttest"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/repository/repositorytest"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/internal/service/servicetest"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/poll"
	"github.com/vmindtech/vdb/pkg/workerpool"
)

const tenant = "tenant-1"

const (
	mariadb104 = "v-mariadb-104"
	mariadb105 = "v-mariadb-105"
	cassandra4 = "v-cassandra-4"
	mongodb6   = "v-mongodb-6"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}

// harness wires the services against an in-memory database, fake IaaS and
// fake guests. Every new server reports a running datastore right away.
type harness struct {
	t              *testing.T
	repo           repository.IRepository
	compute        *servicetest.Compute
	volume         *servicetest.Volume
	guests         *guestagenttest.Factory
	executor       *workerpool.Executor
	quota          service.IQuotaService
	instances      service.IInstanceService
	poller         *service.InstancePoller
	clusters       service.IClusterService
	configurations service.IConfigurationService

	mu      sync.Mutex
	servers map[string]string
}

// newHarness builds a harness; tune adjusts the cluster options before the
// cluster service is built.
func newHarness(t *testing.T, tune ...func(*service.ClusterOptions)) *harness {
	t.Helper()

	l := quietLogger()
	repo := repository.NewRepository(repositorytest.NewDB(t))

	h := &harness{
		t:       t,
		repo:    repo,
		compute: servicetest.NewCompute(),
		volume:  servicetest.NewVolume(),
		guests:  guestagenttest.NewFactory(),
		servers: make(map[string]string),
	}
	h.compute.AddFlavor(resource.Flavor{ID: "1234", Name: "m1.small", RAM: 2048, VCPUs: 2, Disk: 20})
	h.compute.OnCreate = func(instanceID string, server resource.Server) {
		h.mu.Lock()
		h.servers[server.ID] = instanceID
		h.mu.Unlock()
		h.beat(instanceID, constants.ServiceStatusRunning)
	}
	h.compute.OnRebuild = func(serverID, _ string) {
		h.mu.Lock()
		instanceID := h.servers[serverID]
		h.mu.Unlock()
		h.beat(instanceID, constants.ServiceStatusRunning)
	}

	h.executor = workerpool.NewExecutor(l, 4)
	t.Cleanup(h.executor.Shutdown)

	h.quota = service.NewQuotaService(l, repo, config.QuotaConfig{
		MaxInstancesPerTenant: 20,
		MaxVolumesPerTenant:   100,
		MaxBackupsPerTenant:   5,
	})
	h.instances = service.NewInstanceService(l, repo, h.compute, h.volume, h.quota, h.guests, service.InstanceOptions{
		UsageTimeout:    time.Minute,
		HeartbeatExpiry: time.Hour,
		VolumePoll:      poll.Options{Interval: time.Millisecond, Timeout: time.Second},
	})
	h.poller = service.NewInstancePoller(l, repo, h.compute, h.instances, service.PollerOptions{
		Interval:        time.Millisecond,
		UsageTimeout:    time.Minute,
		HeartbeatExpiry: time.Hour,
	})
	opts := service.ClusterOptions{
		UsageTimeout:        10 * time.Second,
		StateChangeWaitTime: 2 * time.Second,
		StateChangePollTime: 5 * time.Millisecond,
		HeartbeatExpiry:     time.Hour,
		MaxVolumeSize:       100,
	}
	for _, fn := range tune {
		fn(&opts)
	}
	h.clusters = service.NewClusterService(
		l,
		repo,
		strategy.DefaultRegistry(),
		h.instances,
		h.poller,
		h.quota,
		service.NewCapabilityService(l, repo),
		h.compute,
		servicetest.NewNetwork("net-1", "net-2"),
		h.guests,
		notification.NewNotifier(l, repo, nil),
		h.executor,
		opts,
	)
	h.configurations = service.NewConfigurationService(l, repo, h.guests, h.clusters)

	h.seedDatastores()

	return h
}

func (h *harness) seedDatastores() {
	ctx := context.Background()

	datastores := []model.Datastore{
		{ID: "ds-mariadb", Name: "mariadb", DefaultVersionID: mariadb104},
		{ID: "ds-cassandra", Name: "cassandra", DefaultVersionID: cassandra4},
		{ID: "ds-mongodb", Name: "mongodb", DefaultVersionID: mongodb6},
	}
	for i := range datastores {
		require.NoError(h.t, h.repo.Datastore().SaveDatastore(ctx, &datastores[i]))
	}

	versions := []model.DatastoreVersion{
		{ID: mariadb104, DatastoreID: "ds-mariadb", Name: "10.4", Manager: "mariadb", ImageID: "img-104", Active: true,
			ClusterOptions: datatypes.JSON(`{"min_cluster_member_count": 3}`)},
		{ID: mariadb105, DatastoreID: "ds-mariadb", Name: "10.5", Manager: "mariadb", ImageID: "img-105", Active: true,
			ClusterOptions: datatypes.JSON(`{"min_cluster_member_count": 3}`)},
		{ID: cassandra4, DatastoreID: "ds-cassandra", Name: "4.0", Manager: "cassandra", ImageID: "img-cassandra", Active: true,
			ClusterOptions: datatypes.JSON(`{"cluster_secure": true}`)},
		{ID: mongodb6, DatastoreID: "ds-mongodb", Name: "6.0", Manager: "mongodb", ImageID: "img-mongodb", Active: true,
			ClusterOptions: datatypes.JSON(`{"num_config_servers_per_cluster": 1, "num_query_routers_per_cluster": 1}`)},
	}
	for i := range versions {
		require.NoError(h.t, h.repo.Datastore().SaveVersion(ctx, &versions[i]))
	}

	require.NoError(h.t, h.repo.Datastore().ReplaceParameters(ctx, mariadb104, []model.DatastoreConfigurationParameter{
		{ID: uuid.NewString(), Name: "max_connections", DatastoreVersionID: mariadb104, DataType: "integer",
			MinSize: floatPtr(1), MaxSize: floatPtr(100000), RestartRequired: true},
		{ID: uuid.NewString(), Name: "autocommit", DatastoreVersionID: mariadb104, DataType: "boolean"},
		{ID: uuid.NewString(), Name: "character_set_server", DatastoreVersionID: mariadb104, DataType: "string"},
	}))
}

func floatPtr(v float64) *float64 {
	return &v
}

func (h *harness) beat(instanceID, status string) {
	err := h.repo.Heartbeat().SaveHeartbeat(context.Background(), &model.AgentHeartbeat{
		ID:                uuid.NewString(),
		InstanceID:        instanceID,
		GuestAgentVersion: "1.0.0",
		ServiceStatus:     status,
		UpdatedAt:         time.Now().UTC(),
	})
	// Hooks call beat from workflow goroutines, where require must not be used.
	assert.NoError(h.t, err)
}

type member struct {
	id    string
	role  string
	shard string
}

// seedCluster writes a running cluster straight into the database.
func (h *harness) seedCluster(id, versionID string, current task.Task, members ...member) {
	ctx := context.Background()

	version, err := h.repo.Datastore().GetVersion(ctx, versionID)
	require.NoError(h.t, err)

	now := time.Now().UTC()
	require.NoError(h.t, h.repo.Cluster().CreateCluster(ctx, &model.Cluster{
		ID:                 id,
		Name:               "c-" + id,
		TenantID:           tenant,
		DatastoreID:        version.DatastoreID,
		DatastoreVersionID: version.ID,
		TaskID:             current.Code,
		Created:            now,
		Updated:            now,
	}))

	for i, m := range members {
		require.NoError(h.t, h.repo.Instance().CreateInstance(ctx, &model.Instance{
			ID:                 m.id,
			Name:               fmt.Sprintf("c-%s-%d", id, i+1),
			TenantID:           tenant,
			DatastoreVersionID: version.ID,
			Type:               model.StringPtr(m.role),
			FlavorID:           "1234",
			VolumeSize:         1,
			ComputeInstanceID:  model.StringPtr("srv-" + m.id),
			TaskID:             task.InstanceNone.Code,
			ClusterID:          model.StringPtr(id),
			ShardID:            model.StringPtr(m.shard),
			NetworkID:          "net-1",
			Addresses:          datatypes.JSON(fmt.Sprintf(`["10.1.0.%d"]`, i+1)),
			Created:            now.Add(time.Duration(i) * time.Millisecond),
			Updated:            now,
		}))
		h.beat(m.id, constants.ServiceStatusRunning)
	}
}

func members(ids ...string) []member {
	out := make([]member, 0, len(ids))
	for _, id := range ids {
		out = append(out, member{id: id, role: constants.RoleMember, shard: "shard-1"})
	}

	return out
}

func instanceRequests(n int, size int, net string) []request.InstanceRequest {
	out := make([]request.InstanceRequest, 0, n)
	for i := 0; i < n; i++ {
		in := request.InstanceRequest{
			FlavorRef: "1234",
			Volume:    &request.VolumeSizing{Size: size},
		}
		if net != "" {
			in.Nics = []request.Nic{{NetID: net}}
		}
		out = append(out, in)
	}

	return out
}

func (h *harness) cluster(id string) *model.Cluster {
	cluster, err := h.repo.Cluster().GetCluster(context.Background(), id)
	require.NoError(h.t, err)

	return cluster
}

func (h *harness) members(clusterID string) []model.Instance {
	instances, err := h.repo.Instance().ListClusterInstances(context.Background(), clusterID)
	require.NoError(h.t, err)

	return instances
}

func (h *harness) instance(id string) *model.Instance {
	instance, err := h.repo.Instance().GetInstance(context.Background(), id)
	require.NoError(h.t, err)

	return instance
}

// usage returns in use and reserved of one quota resource of the tenant.
func (h *harness) usage(res string) (int, int) {
	usages, err := h.repo.Quota().ListUsages(context.Background(), tenant)
	require.NoError(h.t, err)

	for _, u := range usages {
		if u.Resource == res {
			return u.InUse, u.Reserved
		}
	}

	return 0, 0
}

func (h *harness) setUsage(res string, inUse int) {
	ctx := context.Background()

	usage, err := h.repo.Quota().LockUsage(ctx, tenant, res)
	require.NoError(h.t, err)
	usage.InUse = inUse
	require.NoError(h.t, h.repo.Quota().SaveUsage(ctx, usage))
}

func ids(instances []model.Instance) []string {
	out := make([]string, 0, len(instances))
	for _, i := range instances {
		out = append(out, i.ID)
	}

	return out
}

// waitTask blocks until the cluster reaches want. Workflows run detached, so
// every action test waits here before asserting on the outcome.
func (h *harness) waitTask(clusterID string, want task.Task) {
	h.t.Helper()

	require.Eventually(h.t, func() bool {
		cluster, err := h.repo.Cluster().GetCluster(context.Background(), clusterID)
		return err == nil && cluster.TaskID == want.Code
	}, 5*time.Second, 10*time.Millisecond)
}

func (h *harness) waitFault(clusterID string) []model.Fault {
	h.t.Helper()

	var faults []model.Fault
	require.Eventually(h.t, func() bool {
		var err error
		faults, err = h.repo.Fault().ListClusterFaults(context.Background(), clusterID)
		return err == nil && len(faults) > 0
	}, 5*time.Second, 10*time.Millisecond)

	return faults
}
