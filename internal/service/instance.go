package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/poll"
)

// InstanceSpec is everything needed to build one datastore instance.
type InstanceSpec struct {
	Name             string
	TenantID         string
	ClusterID        string
	ShardID          string
	Role             string
	ReplicaSet       string
	Manager          string
	Version          *model.DatastoreVersion
	FlavorID         string
	VolumeSize       int
	VolumeType       string
	NetworkID        string
	AvailabilityZone string
	RegionID         string
	ConfigurationID  string
	ServerGroupID    string
	ClusterKey       string
	Task             task.Task
}

type InstanceOptions struct {
	UsageTimeout        time.Duration
	HeartbeatExpiry     time.Duration
	ManagementNetworkID string
	ControllerEndpoint  string
	AgentPort           int
	// VolumePoll bounds the wait for a new volume to become available.
	VolumePoll poll.Options
}

type IInstanceService interface {
	Create(ctx context.Context, spec InstanceSpec) (*model.Instance, error)
	// Load returns a cluster bound or standalone instance of tenant.
	Load(ctx context.Context, tenantID, id string) (*model.Instance, error)
	// Delete starts the teardown; Reap finishes it once the server is gone.
	Delete(ctx context.Context, instance *model.Instance) error
	Reap(ctx context.Context, instance *model.Instance) (bool, error)
	Upgrade(ctx context.Context, instance *model.Instance, version *model.DatastoreVersion) error
	Status(ctx context.Context, instance *model.Instance) string
	Describe(ctx context.Context, instance *model.Instance) resource.ClusterInstanceResource
	Detail(ctx context.Context, instance *model.Instance) resource.InstanceResource
	RecordHeartbeat(ctx context.Context, instanceID, guestKey string, req request.HeartbeatRequest) error
}

type instanceService struct {
	logger     *logrus.Logger
	repository repository.IRepository
	compute    IComputeService
	volume     IVolumeService
	quota      IQuotaService
	guests     guestagent.Factory
	opts       InstanceOptions
	retry      iaasRetry
	now        func() time.Time
}

func NewInstanceService(l *logrus.Logger, r repository.IRepository, c IComputeService, v IVolumeService, q IQuotaService, g guestagent.Factory, opts InstanceOptions) IInstanceService {
	return &instanceService{
		logger:     l,
		repository: r,
		compute:    c,
		volume:     v,
		quota:      q,
		guests:     g,
		opts:       opts,
		retry:      defaultIaaSRetry(),
		now:        time.Now,
	}
}

func (s *instanceService) log(instance *model.Instance) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"instance_id": instance.ID,
		"cluster_id":  model.Deref(instance.ClusterID),
	})
}

func (s *instanceService) Create(ctx context.Context, spec InstanceSpec) (*model.Instance, error) {
	if spec.Version == nil {
		return nil, errs.Validation("", "instance %s has no datastore version", spec.Name)
	}

	guestKey, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	start := spec.Task
	if start.Code == 0 {
		start = task.Building
	}

	now := s.now().UTC()
	instance := &model.Instance{
		ID:                 uuid.New().String(),
		Name:               spec.Name,
		TenantID:           spec.TenantID,
		DatastoreVersionID: spec.Version.ID,
		Type:               model.StringPtr(spec.Role),
		FlavorID:           spec.FlavorID,
		VolumeSize:         spec.VolumeSize,
		VolumeType:         spec.VolumeType,
		TaskID:             start.Code,
		TaskDescription:    start.Description,
		TaskStartTime:      &now,
		ClusterID:          model.StringPtr(spec.ClusterID),
		ShardID:            model.StringPtr(spec.ShardID),
		ConfigurationID:    model.StringPtr(spec.ConfigurationID),
		RegionID:           spec.RegionID,
		AvailabilityZone:   spec.AvailabilityZone,
		NetworkID:          spec.NetworkID,
		GuestKeyHash:       HashGuestKey(guestKey),
		Created:            now,
		Updated:            now,
	}
	if instance.Name == "" {
		instance.Name = instance.ID
	}

	if err := s.repository.Instance().CreateInstance(ctx, instance); err != nil {
		return nil, err
	}

	logger := s.log(instance)

	if spec.VolumeSize > 0 {
		volumeID, err := s.createVolume(ctx, instance, spec)
		if err != nil {
			logger.WithError(err).Error(constants.ErrInstanceCreateFailed)
			s.markError(ctx, instance, task.BuildingErrorVolume)

			return instance, err
		}
		instance.VolumeID = &volumeID
	}

	serverID, err := s.createServer(ctx, instance, spec, guestKey)
	if err != nil {
		logger.WithError(err).Error(constants.ErrInstanceCreateFailed)
		s.markError(ctx, instance, task.BuildingErrorServer)

		return instance, err
	}
	instance.ComputeInstanceID = &serverID

	logger.Infof("instance %s dispatched on server %s", instance.Name, serverID)

	return instance, nil
}

func (s *instanceService) createVolume(ctx context.Context, instance *model.Instance, spec InstanceSpec) (string, error) {
	vol, err := s.volume.CreateVolume(ctx, request.CreateVolumeRequest{
		Volume: request.Volume{
			Name:             fmt.Sprintf("datastore-%s", instance.ID),
			Size:             spec.VolumeSize,
			VolumeType:       spec.VolumeType,
			AvailabilityZone: spec.AvailabilityZone,
			Metadata:         map[string]string{"instance_id": instance.ID},
		},
	})
	if err != nil {
		return "", err
	}

	if err := s.repository.Instance().UpdateInstance(ctx, instance.ID, map[string]interface{}{"volume_id": vol.ID}); err != nil {
		return vol.ID, err
	}

	err = poll.Until(ctx, s.opts.VolumePoll, func(ctx context.Context) (bool, error) {
		current, err := s.volume.GetVolume(ctx, vol.ID)
		if err != nil {
			return false, err
		}
		if current.Status == constants.VolumeStatusError {
			return false, errs.Infrastructure(nil, "volume %s went into error state", vol.ID)
		}

		return current.Status == constants.VolumeStatusAvailable, nil
	})

	return vol.ID, err
}

func (s *instanceService) createServer(ctx context.Context, instance *model.Instance, spec InstanceSpec, guestKey string) (string, error) {
	userData, err := GenerateUserData(GuestInit{
		InstanceID:         instance.ID,
		TenantID:           instance.TenantID,
		ClusterID:          spec.ClusterID,
		Role:               spec.Role,
		ShardID:            spec.ShardID,
		ReplicaSet:         spec.ReplicaSet,
		ClusterKey:         spec.ClusterKey,
		Manager:            spec.Manager,
		Version:            spec.Version.Name,
		ControllerEndpoint: s.opts.ControllerEndpoint,
		GuestKey:           guestKey,
		AgentPort:          s.opts.AgentPort,
	})
	if err != nil {
		return "", err
	}

	mappings := []request.BlockDeviceMappingV2{
		{
			BootIndex:           0,
			UUID:                spec.Version.ImageID,
			SourceType:          "image",
			DestinationType:     "local",
			DeleteOnTermination: true,
		},
	}
	if instance.VolumeID != nil {
		mappings = append(mappings, request.BlockDeviceMappingV2{
			BootIndex:       -1,
			UUID:            *instance.VolumeID,
			SourceType:      "volume",
			DestinationType: "volume",
		})
	}

	networks := []request.Networks{}
	if s.opts.ManagementNetworkID != "" {
		networks = append(networks, request.Networks{UUID: s.opts.ManagementNetworkID})
	}
	if spec.NetworkID != "" {
		networks = append(networks, request.Networks{UUID: spec.NetworkID})
	}

	metadata := map[string]string{
		"instance_id":       instance.ID,
		"tenant_id":         instance.TenantID,
		"datastore_manager": spec.Manager,
	}
	if spec.ClusterID != "" {
		metadata["cluster_id"] = spec.ClusterID
		metadata["role"] = spec.Role
	}
	if spec.ShardID != "" {
		metadata["shard_id"] = spec.ShardID
	}
	if spec.ReplicaSet != "" {
		metadata["replica_set_name"] = spec.ReplicaSet
	}
	if spec.ConfigurationID != "" {
		metadata["configuration_id"] = spec.ConfigurationID
	}

	req := request.CreateServerRequest{
		Server: request.Server{
			Name:                 instance.Name,
			ImageRef:             spec.Version.ImageID,
			FlavorRef:            spec.FlavorID,
			AvailabilityZone:     spec.AvailabilityZone,
			BlockDeviceMappingV2: mappings,
			Networks:             networks,
			UserData:             userData,
			Metadata:             metadata,
		},
	}
	if spec.ServerGroupID != "" {
		req.SchedulerHints = &request.SchedulerHints{Group: spec.ServerGroupID}
	}

	server, err := s.compute.CreateServer(ctx, req)
	if err != nil {
		return "", err
	}

	return server.ID, s.repository.Instance().UpdateInstance(ctx, instance.ID, map[string]interface{}{
		"compute_instance_id": server.ID,
	})
}

func (s *instanceService) markError(ctx context.Context, instance *model.Instance, t task.Task) {
	if err := s.repository.Instance().SetTask(context.WithoutCancel(ctx), instance.ID, t); err != nil {
		s.log(instance).WithError(err).Errorf("failed to set instance task %s", t.Name)
		return
	}
	instance.TaskID = t.Code
	instance.TaskDescription = t.Description
}

func (s *instanceService) Load(ctx context.Context, tenantID, id string) (*model.Instance, error) {
	instance, err := s.repository.Instance().GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.TenantID != tenantID {
		return nil, errs.NotFound("instance %s not found", id)
	}

	return instance, nil
}

func (s *instanceService) Delete(ctx context.Context, instance *model.Instance) error {
	if err := s.repository.Instance().SetTask(ctx, instance.ID, task.InstanceDeleting); err != nil {
		return err
	}
	instance.TaskID = task.InstanceDeleting.Code

	if instance.ComputeInstanceID == nil {
		return nil
	}

	return retryIaaS(s.log(instance), s.retry, "delete server", func() error {
		return s.compute.DeleteServer(ctx, *instance.ComputeInstanceID)
	})
}

// Reap removes the volume and the row of a deleting instance whose server
// is gone. It reports whether the instance is fully gone.
func (s *instanceService) Reap(ctx context.Context, instance *model.Instance) (bool, error) {
	logger := s.log(instance)

	if instance.ComputeInstanceID != nil {
		var server resource.Server
		err := retryIaaS(logger, s.retry, "get server", func() error {
			var err error
			server, err = s.compute.GetServer(ctx, *instance.ComputeInstanceID)
			return err
		})
		switch {
		case errs.Is(err, errs.KindNotFound):
		case err != nil:
			return false, err
		case server.Status == constants.ServerStatusDeleted:
		default:
			return false, nil
		}
	}

	if instance.VolumeID != nil {
		err := retryIaaS(logger, s.retry, "delete volume", func() error {
			return s.volume.DeleteVolume(ctx, *instance.VolumeID)
		})
		if err != nil && !errs.Is(err, errs.KindNotFound) {
			return false, err
		}
	}

	first, err := s.repository.Instance().SoftDelete(ctx, instance.ID)
	if err != nil {
		return false, err
	}
	if !first {
		return true, nil
	}

	if err := s.repository.Heartbeat().DeleteHeartbeat(ctx, instance.ID); err != nil {
		logger.WithError(err).Warn("failed to delete heartbeat")
	}
	s.guests.Forget(instance.ID)

	if err := s.quota.Release(ctx, instance.TenantID, instanceDeltas(instance.VolumeSize)); err != nil {
		return true, err
	}

	logger.Info("instance deleted")

	return true, nil
}

// instanceDeltas is the quota one instance with a volume of size GB takes.
func instanceDeltas(size int) Deltas {
	return Deltas{
		constants.ResourceInstances: 1,
		constants.ResourceVolumes:   size,
	}
}

func (s *instanceService) Upgrade(ctx context.Context, instance *model.Instance, version *model.DatastoreVersion) error {
	logger := s.log(instance).WithField("datastore_version_id", version.ID)

	if instance.ComputeInstanceID == nil {
		return errs.Infrastructure(nil, "instance %s has no server", instance.ID)
	}
	if err := s.repository.Instance().SetTask(ctx, instance.ID, task.Upgrading); err != nil {
		return err
	}

	guest, err := s.guests.Guest(instance)
	if err != nil {
		return err
	}
	if err := guest.StopDB(ctx); err != nil {
		return err
	}

	// A fresh heartbeat from the rebuilt guest is what marks it ready again.
	if err := s.repository.Heartbeat().DeleteHeartbeat(ctx, instance.ID); err != nil {
		return err
	}
	if err := s.compute.RebuildServer(ctx, *instance.ComputeInstanceID, version.ImageID); err != nil {
		return err
	}

	err = s.repository.Instance().UpdateInstance(ctx, instance.ID, map[string]interface{}{
		"datastore_version_id": version.ID,
		"task_id":              task.InstanceNone.Code,
		"task_description":     task.InstanceNone.Description,
	})
	if err != nil {
		return err
	}
	instance.DatastoreVersionID = version.ID
	instance.TaskID = task.InstanceNone.Code

	logger.Info("instance rebuilt on new datastore version")

	return nil
}

func (s *instanceService) Status(ctx context.Context, instance *model.Instance) string {
	current := instance.Task()
	switch {
	case current.Equal(task.Building):
		return constants.InstanceStatusBuild
	case current.Equal(task.InstanceDeleting):
		return constants.InstanceStatusShutdown
	case current.IsError:
		return constants.InstanceStatusError
	case current.Equal(task.RestartRequired):
		return constants.InstanceStatusRestartRequired
	}

	heartbeat, err := s.repository.Heartbeat().GetHeartbeat(ctx, instance.ID)
	if err != nil || !heartbeat.IsFresh(s.now(), s.opts.HeartbeatExpiry) {
		return constants.InstanceStatusUnknown
	}

	switch heartbeat.ServiceStatus {
	case constants.ServiceStatusRunning:
		return constants.InstanceStatusActive
	case constants.ServiceStatusShutdown:
		return constants.InstanceStatusShutdown
	case constants.ServiceStatusNew, constants.ServiceStatusBuildPending:
		return constants.InstanceStatusBuild
	case constants.ServiceStatusFailed, constants.ServiceStatusCrashed, constants.ServiceStatusBlocked:
		return constants.InstanceStatusError
	default:
		return constants.InstanceStatusUnknown
	}
}

func (s *instanceService) Describe(ctx context.Context, instance *model.Instance) resource.ClusterInstanceResource {
	return resource.ClusterInstanceResource{
		ID:         instance.ID,
		Name:       instance.Name,
		Type:       instance.Role(),
		ShardID:    instance.Shard(),
		FlavorID:   instance.FlavorID,
		VolumeSize: instance.VolumeSize,
		IPs:        instance.IPs(),
		Status:     s.Status(ctx, instance),
	}
}

func (s *instanceService) Detail(ctx context.Context, instance *model.Instance) resource.InstanceResource {
	current := instance.Task()

	return resource.InstanceResource{
		ClusterInstanceResource: s.Describe(ctx, instance),
		ClusterID:               model.Deref(instance.ClusterID),
		DatastoreVersionID:      instance.DatastoreVersionID,
		ConfigurationID:         model.Deref(instance.ConfigurationID),
		Region:                  instance.RegionID,
		AvailabilityZone:        instance.AvailabilityZone,
		Task: resource.TaskResource{
			ID:          current.Code,
			Name:        current.Name,
			Description: current.Description,
		},
		Created: instance.Created,
		Updated: instance.Updated,
	}
}

func (s *instanceService) RecordHeartbeat(ctx context.Context, instanceID, guestKey string, req request.HeartbeatRequest) error {
	instance, err := s.repository.Instance().GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if !GuestKeyMatches(guestKey, instance.GuestKeyHash) {
		s.log(instance).Warn(constants.ErrGuestKeyInvalid)
		return errs.Unauthorized(constants.ErrGuestKeyInvalid)
	}

	return s.repository.Heartbeat().SaveHeartbeat(ctx, &model.AgentHeartbeat{
		ID:                uuid.New().String(),
		InstanceID:        instance.ID,
		GuestAgentVersion: req.GuestAgentVersion,
		ServiceStatus:     req.ServiceStatus,
		UpdatedAt:         s.now().UTC(),
	})
}
