package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/metrics"
)

type PollerOptions struct {
	Interval        time.Duration
	UsageTimeout    time.Duration
	HeartbeatExpiry time.Duration
}

// InstancePoller drives instances out of BUILDING and DELETING by watching
// the compute service and the guest heartbeats.
type InstancePoller struct {
	logger     *logrus.Logger
	repository repository.IRepository
	compute    IComputeService
	instances  IInstanceService
	opts       PollerOptions
	retry      iaasRetry
	now        func() time.Time
}

func NewInstancePoller(l *logrus.Logger, r repository.IRepository, c IComputeService, i IInstanceService, opts PollerOptions) *InstancePoller {
	return &InstancePoller{
		logger:     l,
		repository: r,
		compute:    c,
		instances:  i,
		opts:       opts,
		retry:      defaultIaaSRetry(),
		now:        time.Now,
	}
}

func (p *InstancePoller) Run(ctx context.Context) {
	interval := p.opts.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Infof("instance poller started, interval %s", interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("instance poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick makes one pass over the building and deleting instances.
func (p *InstancePoller) Tick(ctx context.Context) {
	instances, err := p.repository.Instance().ListInstancesByTask(ctx, []int{task.Building.Code, task.InstanceDeleting.Code})
	if err != nil {
		p.logger.WithError(err).Error(constants.ErrDatabaseQueryFailed)
		return
	}

	for i := range instances {
		instance := &instances[i]
		logger := p.logger.WithField("instance_id", instance.ID)

		var err error
		if instance.Task().Equal(task.InstanceDeleting) {
			_, err = p.instances.Reap(ctx, instance)
		} else {
			err = p.checkBuilding(ctx, instance)
		}
		if err != nil {
			logger.WithError(err).Warn("instance poll failed")
		}
	}
}

func (p *InstancePoller) checkBuilding(ctx context.Context, instance *model.Instance) error {
	logger := p.logger.WithField("instance_id", instance.ID)

	if instance.ComputeInstanceID != nil {
		var server resource.Server
		err := retryIaaS(logger, p.retry, "get server", func() error {
			var err error
			server, err = p.compute.GetServer(ctx, *instance.ComputeInstanceID)
			return err
		})
		if err != nil && !errs.Is(err, errs.KindNotFound) {
			return err
		}

		switch server.Status {
		case constants.ServerStatusError:
			logger.Error(constants.ErrInstanceServerError)
			return p.transition(ctx, instance, task.BuildingErrorServer)
		case constants.ServerStatusActive:
			if err := p.setAddresses(ctx, instance, server); err != nil {
				return err
			}
			if p.guestReady(ctx, instance) {
				return p.transition(ctx, instance, task.InstanceNone)
			}
		}
	}

	started := instance.Created
	if instance.TaskStartTime != nil {
		started = *instance.TaskStartTime
	}
	if p.opts.UsageTimeout > 0 && p.now().Sub(started) > p.opts.UsageTimeout {
		logger.Error(constants.ErrInstanceBuildTimeout)
		return p.transition(ctx, instance, task.BuildingErrorTimeoutGA)
	}

	return nil
}

func (p *InstancePoller) guestReady(ctx context.Context, instance *model.Instance) bool {
	heartbeat, err := p.repository.Heartbeat().GetHeartbeat(ctx, instance.ID)
	if err != nil || !heartbeat.IsFresh(p.now(), p.opts.HeartbeatExpiry) {
		return false
	}

	return isReadyStatus(heartbeat.ServiceStatus)
}

// isReadyStatus holds for a guest whose datastore is up, including one that
// waits for its cluster to be assembled.
func isReadyStatus(status string) bool {
	return status == constants.ServiceStatusRunning || status == constants.ServiceStatusBuildPending
}

func (p *InstancePoller) setAddresses(ctx context.Context, instance *model.Instance, server resource.Server) error {
	raw, err := json.Marshal(server.IPs())
	if err != nil {
		return err
	}

	return p.repository.Instance().UpdateInstance(ctx, instance.ID, map[string]interface{}{
		"addresses":     datatypes.JSON(raw),
		"server_status": server.Status,
	})
}

func (p *InstancePoller) transition(ctx context.Context, instance *model.Instance, next task.Task) error {
	if err := p.repository.Instance().SetTask(ctx, instance.ID, next); err != nil {
		return err
	}
	metrics.PollerTransitionsTotal.WithLabelValues(next.Name).Inc()

	p.logger.WithFields(logrus.Fields{
		"instance_id": instance.ID,
		"task":        next.Name,
	}).Info("instance task changed")

	return nil
}
