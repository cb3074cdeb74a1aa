package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/metrics"
	"github.com/vmindtech/vdb/pkg/workerpool"
)

type IClusterService interface {
	CreateCluster(ctx context.Context, tenantID string, req request.CreateClusterRequest) (resource.ClusterResource, error)
	GetCluster(ctx context.Context, tenantID, id string) (resource.ClusterResource, error)
	ListClusters(ctx context.Context, tenantID string) (resource.ClusterListResource, error)
	GetClusterInstance(ctx context.Context, tenantID, clusterID, instanceID string) (resource.InstanceResource, error)
	DeleteCluster(ctx context.Context, tenantID, id string) error
	// Action runs the single action named in req. operator gates the
	// recovery actions.
	Action(ctx context.Context, tenantID, id string, req request.ClusterActionRequest, operator bool) (resource.ActionResource, error)
	// ResetStatus is the operator recovery path, not scoped to a tenant.
	ResetStatus(ctx context.Context, id string, forceDelete bool) error
	RefreshConfiguration(ctx context.Context, tenantID, clusterID string) error
}

type ClusterOptions struct {
	UsageTimeout        time.Duration
	StateChangeWaitTime time.Duration
	StateChangePollTime time.Duration
	HeartbeatExpiry     time.Duration
	MaxVolumeSize       int
}

type clusterService struct {
	logger       *logrus.Logger
	repository   repository.IRepository
	strategies   *strategy.Registry
	instances    IInstanceService
	poller       *InstancePoller
	quota        IQuotaService
	capabilities ICapabilityService
	compute      IComputeService
	network      INetworkService
	guests       guestagent.Factory
	notifier     notification.INotifier
	executor     *workerpool.Executor
	opts         ClusterOptions
}

func NewClusterService(
	l *logrus.Logger,
	r repository.IRepository,
	strategies *strategy.Registry,
	instances IInstanceService,
	poller *InstancePoller,
	quota IQuotaService,
	capabilities ICapabilityService,
	compute IComputeService,
	network INetworkService,
	guests guestagent.Factory,
	notifier notification.INotifier,
	executor *workerpool.Executor,
	opts ClusterOptions,
) IClusterService {
	return &clusterService{
		logger:       l,
		repository:   r,
		strategies:   strategies,
		instances:    instances,
		poller:       poller,
		quota:        quota,
		capabilities: capabilities,
		compute:      compute,
		network:      network,
		guests:       guests,
		notifier:     notifier,
		executor:     executor,
		opts:         opts,
	}
}

// clusterContext is a cluster with everything its datastore version decides.
type clusterContext struct {
	cluster   *model.Cluster
	datastore *model.Datastore
	version   *model.DatastoreVersion
	strategy  strategy.Strategy
	options   topology.Options
}

// load reads a cluster of tenant; an empty tenant reads any cluster.
func (s *clusterService) load(ctx context.Context, tenantID, id string) (*clusterContext, error) {
	var (
		cluster *model.Cluster
		err     error
	)
	if tenantID == "" {
		cluster, err = s.repository.Cluster().GetCluster(ctx, id)
	} else {
		cluster, err = s.repository.Cluster().GetTenantCluster(ctx, tenantID, id)
	}
	if err != nil {
		return nil, err
	}

	datastore, err := s.repository.Datastore().GetDatastore(ctx, cluster.DatastoreID)
	if err != nil {
		return nil, err
	}
	version, err := s.repository.Datastore().GetVersion(ctx, cluster.DatastoreVersionID)
	if err != nil {
		return nil, err
	}

	return s.contextFor(cluster, datastore, version)
}

func (s *clusterService) contextFor(cluster *model.Cluster, datastore *model.Datastore, version *model.DatastoreVersion) (*clusterContext, error) {
	strat, err := s.strategies.ForManager(version.Manager)
	if err != nil {
		return nil, err
	}
	options, err := topology.Decode(version.ClusterOptions)
	if err != nil {
		return nil, err
	}

	return &clusterContext{
		cluster:   cluster,
		datastore: datastore,
		version:   version,
		strategy:  strat,
		options:   options,
	}, nil
}

func (s *clusterService) meta(ctx context.Context, cc *clusterContext) notification.Meta {
	return notification.Meta{
		TenantID:         cc.cluster.TenantID,
		RequestID:        notification.RequestIDFrom(ctx),
		ClusterID:        cc.cluster.ID,
		Datastore:        cc.datastore.Name,
		DatastoreVersion: cc.version.Name,
	}
}

// nodes loads the live members of a cluster with their guest clients.
func (s *clusterService) nodes(ctx context.Context, clusterID string) ([]strategy.Node, error) {
	instances, err := s.repository.Instance().ListClusterInstances(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	nodes := make([]strategy.Node, 0, len(instances))
	for i := range instances {
		guest, err := s.guests.Guest(&instances[i])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, strategy.Node{Instance: &instances[i], Guest: guest})
	}

	return nodes, nil
}

// permit refuses an action the current cluster task does not allow, before
// any reservation or IaaS call is made.
func permit(cc *clusterContext, action task.Action) error {
	if action.Permits(cc.cluster.Task()) {
		return nil
	}
	metrics.TaskConflictsTotal.WithLabelValues(action.Name).Inc()

	return errs.Conflict("action cannot be performed while cluster task is %s", cc.cluster.Task().Name)
}

// beginAction moves the cluster into the working task of action and records
// the start event in the same transaction.
func (s *clusterService) beginAction(ctx context.Context, cc *clusterContext, action task.Action, traits map[string]interface{}) (*notification.Span, error) {
	meta := s.meta(ctx, cc)

	var span *notification.Span
	err := s.repository.Transaction(ctx, func(tx repository.IRepository) error {
		cluster, err := tx.Cluster().TransitionTask(ctx, cc.cluster.ID, action.AllowedCodes(), action.Working)
		if err != nil {
			return err
		}
		cc.cluster = cluster

		span, err = s.notifier.Start(ctx, tx, action.Event, meta, traits)
		return err
	})
	if err != nil {
		if errs.Is(err, errs.KindConflict) {
			metrics.TaskConflictsTotal.WithLabelValues(action.Name).Inc()
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"cluster_id": cc.cluster.ID,
		"action":     action.Name,
	}).Info("cluster action started")

	return span, nil
}

func (s *clusterService) GetCluster(ctx context.Context, tenantID, id string) (resource.ClusterResource, error) {
	cc, err := s.load(ctx, tenantID, id)
	if err != nil {
		return resource.ClusterResource{}, err
	}

	return s.view(ctx, cc)
}

func (s *clusterService) ListClusters(ctx context.Context, tenantID string) (resource.ClusterListResource, error) {
	clusters, err := s.repository.Cluster().ListClusters(ctx, tenantID)
	if err != nil {
		return resource.ClusterListResource{}, err
	}

	out := resource.ClusterListResource{Clusters: make([]resource.ClusterResource, 0, len(clusters))}
	for i := range clusters {
		cc, err := s.load(ctx, tenantID, clusters[i].ID)
		if err != nil {
			return resource.ClusterListResource{}, err
		}
		view, err := s.view(ctx, cc)
		if err != nil {
			return resource.ClusterListResource{}, err
		}
		out.Clusters = append(out.Clusters, view)
	}

	return out, nil
}

func (s *clusterService) GetClusterInstance(ctx context.Context, tenantID, clusterID, instanceID string) (resource.InstanceResource, error) {
	if _, err := s.repository.Cluster().GetTenantCluster(ctx, tenantID, clusterID); err != nil {
		return resource.InstanceResource{}, err
	}

	instance, err := s.instances.Load(ctx, tenantID, instanceID)
	if err != nil {
		return resource.InstanceResource{}, err
	}
	if model.Deref(instance.ClusterID) != clusterID {
		return resource.InstanceResource{}, errs.NotFound("instance %s is not part of cluster %s", instanceID, clusterID)
	}

	return s.instances.Detail(ctx, instance), nil
}

func (s *clusterService) view(ctx context.Context, cc *clusterContext) (resource.ClusterResource, error) {
	instances, err := s.repository.Instance().ListClusterInstances(ctx, cc.cluster.ID)
	if err != nil {
		return resource.ClusterResource{}, err
	}
	faults, err := s.repository.Fault().ListClusterFaults(ctx, cc.cluster.ID)
	if err != nil {
		return resource.ClusterResource{}, err
	}

	current := cc.cluster.Task()
	view := resource.ClusterResource{
		ID:       cc.cluster.ID,
		Name:     cc.cluster.Name,
		TenantID: cc.cluster.TenantID,
		Datastore: resource.DatastoreResource{
			Type:    cc.datastore.Name,
			Version: cc.version.Name,
		},
		Task: resource.TaskResource{
			ID:          current.Code,
			Name:        current.Name,
			Description: current.Description,
		},
		ConfigurationID: model.Deref(cc.cluster.ConfigurationID),
		Instances:       make([]resource.ClusterInstanceResource, 0, len(instances)),
		Created:         cc.cluster.Created,
		Updated:         cc.cluster.Updated,
	}
	for i := range instances {
		view.Instances = append(view.Instances, s.instances.Describe(ctx, &instances[i]))
	}
	if len(faults) > 0 {
		view.Fault = &resource.FaultResource{
			Message:    faults[0].Message,
			Details:    faults[0].Details,
			InstanceID: faults[0].InstanceID,
			Created:    faults[0].CreatedAt,
		}
	}

	return view, nil
}

func (s *clusterService) Action(ctx context.Context, tenantID, id string, req request.ClusterActionRequest, operator bool) (resource.ActionResource, error) {
	name, err := req.Action()
	if err != nil {
		return resource.ActionResource{}, err
	}

	cc, err := s.load(ctx, tenantID, id)
	if err != nil {
		return resource.ActionResource{}, err
	}

	switch name {
	case "grow":
		err = s.grow(ctx, cc, req.Grow)
	case "add_shard":
		err = s.addShard(ctx, cc)
	case "shrink":
		err = s.shrink(ctx, cc, req.Shrink)
	case "restart":
		err = s.restart(ctx, cc)
	case "upgrade":
		err = s.upgrade(ctx, cc, *req.Upgrade)
	case "configuration_attach":
		err = s.attachConfiguration(ctx, cc, req.ConfigurationAttach.ConfigurationID, req.ConfigurationAttach.ApplyOnAll, false)
	case "configuration_detach":
		err = s.detachConfiguration(ctx, cc)
	case "reset-status":
		if !operator {
			return resource.ActionResource{}, errs.Unauthorized("reset-status is reserved to operators")
		}
		err = s.resetStatus(ctx, cc, req.ResetStatus.ForceDelete)
	default:
		err = errs.Validation(errs.ReasonInvalidAction, "unknown action %s", name)
	}
	if err != nil {
		return resource.ActionResource{}, err
	}

	return resource.ActionResource{ClusterID: id, Action: name}, nil
}

func (s *clusterService) ResetStatus(ctx context.Context, id string, forceDelete bool) error {
	cc, err := s.load(ctx, "", id)
	if err != nil {
		return err
	}

	return s.resetStatus(ctx, cc, forceDelete)
}

// serverGroupOf returns the affinity group owned by the cluster, if any.
func (s *clusterService) serverGroupOf(ctx context.Context, clusterID string) (string, error) {
	groups, err := s.repository.Resources().GetClusterResources(ctx, clusterID, constants.ResourceTypeServerGroup)
	if err != nil || len(groups) == 0 {
		return "", err
	}

	return groups[0].ResourceID, nil
}

func instanceName(cluster *model.Cluster, p strategy.Placement, index int) string {
	if p.Name != "" {
		return p.Name
	}

	return fmt.Sprintf("%s-%s-%d", cluster.Name, p.Role, index+1)
}
