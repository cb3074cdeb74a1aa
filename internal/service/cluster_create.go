package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func toMembers(instances []request.InstanceRequest) []topology.Member {
	members := make([]topology.Member, 0, len(instances))
	for _, in := range instances {
		m := topology.Member{
			Name:             in.Name,
			Role:             in.Type,
			FlavorID:         in.FlavorRef,
			AvailabilityZone: in.AvailabilityZone,
			RegionID:         in.Region,
			RelatedTo:        in.RelatedTo,
		}
		if in.Volume != nil {
			m.VolumeSize = in.Volume.Size
			m.VolumeType = in.Volume.Type
		}
		if len(in.Nics) > 0 {
			m.NetworkID = in.Nics[0].NetID
		}
		members = append(members, m)
	}

	return members
}

func placementDeltas(placements []strategy.Placement) Deltas {
	volumes := 0
	for _, p := range placements {
		volumes += p.VolumeSize
	}

	return Deltas{
		constants.ResourceInstances: len(placements),
		constants.ResourceVolumes:   volumes,
	}
}

// instancesDeltas is the quota held by instances that exist, whatever their
// state: deleting any of them releases instanceDeltas of it.
func instancesDeltas(instances []*model.Instance) Deltas {
	used := Deltas{}
	for _, instance := range instances {
		for res, d := range instanceDeltas(instance.VolumeSize) {
			used[res] += d
		}
	}

	return used
}

// settleDispatched commits the quota of the instances dispatch managed to
// create and rolls back the rest of the reservation.
func (s *clusterService) settleDispatched(ctx context.Context, logger *logrus.Entry, reservations []model.Reservation, dispatched []*model.Instance) {
	if err := s.quota.CommitUsed(context.WithoutCancel(ctx), reservations, instancesDeltas(dispatched)); err != nil {
		logger.WithError(err).Error("failed to settle quota reservations")
	}
}

// flavorOf reads the flavor shared by members; homogeneity is checked by
// the topology rules.
func (s *clusterService) flavorOf(ctx context.Context, members []topology.Member) (topology.Flavor, error) {
	if len(members) == 0 {
		return topology.Flavor{}, nil
	}

	flavor, err := s.compute.GetFlavor(ctx, members[0].FlavorID)
	if err != nil {
		return topology.Flavor{}, err
	}

	return topology.Flavor{ID: flavor.ID, RAM: flavor.RAM, Ephemeral: flavor.Ephemeral}, nil
}

func (s *clusterService) checkNetwork(ctx context.Context, networkID string) error {
	if networkID == "" {
		return nil
	}

	_, err := s.network.GetNetwork(ctx, networkID)
	if errs.Is(err, errs.KindNotFound) {
		return errs.Validation(errs.ReasonNetworkNotFound, "network %s not found", networkID)
	}

	return err
}

func (s *clusterService) CreateCluster(ctx context.Context, tenantID string, req request.CreateClusterRequest) (resource.ClusterResource, error) {
	datastore, version, err := resolveVersion(ctx, s.repository, req.Datastore.Type, req.Datastore.Version)
	if err != nil {
		return resource.ClusterResource{}, err
	}

	now := time.Now().UTC()
	cluster := &model.Cluster{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		TenantID:           tenantID,
		DatastoreID:        datastore.ID,
		DatastoreVersionID: version.ID,
		TaskID:             task.BuildingInitial.Code,
		ConfigurationID:    model.StringPtr(req.ConfigurationID),
		Created:            now,
		Updated:            now,
	}
	cc, err := s.contextFor(cluster, datastore, version)
	if err != nil {
		return resource.ClusterResource{}, err
	}

	if err := topology.CheckSupported(cc.options, datastore.Name); err != nil {
		return resource.ClusterResource{}, err
	}

	members := toMembers(req.Instances)
	flavor, err := s.flavorOf(ctx, members)
	if err != nil {
		return resource.ClusterResource{}, err
	}
	if err := topology.Validate(cc.options, datastore.Name, members, flavor, s.opts.MaxVolumeSize); err != nil {
		return resource.ClusterResource{}, err
	}
	networkID, _ := topology.CommonNetwork(members)
	if err := s.checkNetwork(ctx, networkID); err != nil {
		return resource.ClusterResource{}, err
	}

	placements, err := cc.strategy.PlanCreate(cc.options, members)
	if err != nil {
		return resource.ClusterResource{}, err
	}

	if req.ConfigurationID != "" {
		group, err := loadConfiguration(ctx, s.repository, tenantID, req.ConfigurationID)
		if err != nil {
			return resource.ClusterResource{}, err
		}
		if group.DatastoreVersionID != version.ID {
			return resource.ClusterResource{}, errs.Validation(errs.ReasonConfigurationDatastoreMismatch,
				"configuration %s does not match datastore version %s", req.ConfigurationID, version.Name)
		}
	}

	reservations, err := s.quota.Check(ctx, tenantID, placementDeltas(placements))
	if err != nil {
		return resource.ClusterResource{}, err
	}

	var span *notification.Span
	err = s.repository.Transaction(ctx, func(tx repository.IRepository) error {
		if err := tx.Cluster().CreateCluster(ctx, cluster); err != nil {
			return err
		}

		span, err = s.notifier.Start(ctx, tx, task.ActionCreate.Event, s.meta(ctx, cc), map[string]interface{}{
			"instance_count": len(placements),
		})
		return err
	})
	if err != nil {
		if rerr := s.quota.Rollback(ctx, reservations); rerr != nil {
			s.logger.WithError(rerr).Error("failed to roll back quota reservations")
		}
		return resource.ClusterResource{}, err
	}

	logger := s.logger.WithField("cluster_id", cluster.ID)
	logger.Infof("creating cluster %s with %d instances", cluster.Name, len(placements))

	key, dispatched, err := s.provision(ctx, cc, req.Locality, placements)
	if err != nil {
		s.settleDispatched(ctx, logger, reservations, dispatched)
		for _, instance := range dispatched {
			if instance.Task().IsError {
				continue
			}
			if serr := s.repository.Instance().SetTask(context.WithoutCancel(ctx), instance.ID, task.BuildingErrorServer); serr != nil {
				logger.WithError(serr).Error(constants.ErrDatabaseQueryFailed)
			}
		}
		logger.WithError(err).Error(constants.ErrClusterCreateFailed)
		s.recordFault(ctx, cluster.ID, constants.ErrClusterCreateFailed, err)
		span.Fail(ctx, err)

		return resource.ClusterResource{}, err
	}

	if err := s.quota.Commit(ctx, reservations); err != nil {
		logger.WithError(err).Error("failed to commit quota reservations")
	}

	s.launch(workflowRun{
		action: task.ActionCreate,
		cc:     cc,
		span:   span,
		key:    key,
		fault:  constants.ErrClusterAssemblyFailed,
		run: func(ctx context.Context, w *clusterWorkflow) error {
			ids := make([]string, 0, len(dispatched))
			for _, instance := range dispatched {
				ids = append(ids, instance.ID)
			}
			w.affect(ids...)

			if err := w.waitReady(ctx, 0, nodesOf(dispatched)...); err != nil {
				return err
			}
			nodes, err := s.nodes(ctx, cc.cluster.ID)
			if err != nil {
				return err
			}

			return cc.strategy.Assemble(ctx, w, nodes)
		},
	})

	return s.view(ctx, cc)
}

// provision creates the cluster key, the server group and the instances of
// a new cluster. It returns the instances created so far even on error.
func (s *clusterService) provision(ctx context.Context, cc *clusterContext, locality string, placements []strategy.Placement) (string, []*model.Instance, error) {
	var key string
	if cc.options.ClusterSecure {
		var err error
		if key, err = GenerateSecret(); err != nil {
			return "", nil, err
		}
	}

	serverGroupID := ""
	if locality != "" {
		group, err := s.compute.CreateServerGroup(ctx, request.CreateServerGroupRequest{
			ServerGroup: request.ServerGroup{
				Name:   cc.cluster.Name + "-" + locality,
				Policy: locality,
			},
		})
		if err != nil {
			return "", nil, err
		}
		serverGroupID = group.ID

		err = s.repository.Resources().CreateResource(ctx, &model.ClusterResource{
			ClusterID:    cc.cluster.ID,
			ResourceType: constants.ResourceTypeServerGroup,
			ResourceID:   group.ID,
		})
		if err != nil {
			return "", nil, err
		}
	}

	instances, err := s.dispatch(ctx, cc, placements, serverGroupID, 0, key)

	return key, instances, err
}

// dispatch creates one instance per placement, in order. offset numbers
// generated names after the members a cluster already has; key is the shared
// cluster key handed to every guest, empty when the cluster is not secure.
func (s *clusterService) dispatch(ctx context.Context, cc *clusterContext, placements []strategy.Placement, serverGroupID string, offset int, key string) ([]*model.Instance, error) {
	instances := make([]*model.Instance, 0, len(placements))
	for i, p := range placements {
		instance, err := s.instances.Create(ctx, InstanceSpec{
			Name:             instanceName(cc.cluster, p, offset+i),
			TenantID:         cc.cluster.TenantID,
			ClusterID:        cc.cluster.ID,
			ShardID:          p.ShardID,
			Role:             p.Role,
			ReplicaSet:       p.ReplicaSet,
			Manager:          cc.version.Manager,
			Version:          cc.version,
			FlavorID:         p.FlavorID,
			VolumeSize:       p.VolumeSize,
			VolumeType:       p.VolumeType,
			NetworkID:        p.NetworkID,
			AvailabilityZone: p.AvailabilityZone,
			RegionID:         p.RegionID,
			ConfigurationID:  model.Deref(cc.cluster.ConfigurationID),
			ServerGroupID:    serverGroupID,
			ClusterKey:       key,
		})
		if instance != nil {
			instances = append(instances, instance)
		}
		if err != nil {
			return instances, err
		}
	}

	return instances, nil
}

func nodesOf(instances []*model.Instance) []strategy.Node {
	nodes := make([]strategy.Node, 0, len(instances))
	for _, instance := range instances {
		nodes = append(nodes, strategy.Node{Instance: instance})
	}

	return nodes
}
