package vdb

import (
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/handler"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/route"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/pkg/mysqldb"
	"github.com/vmindtech/vdb/pkg/poll"
	"github.com/vmindtech/vdb/pkg/workerpool"
)

// Container holds the wired services and the background workers that run
// next to them.
type Container struct {
	AppService service.IAppService
	Executor   *workerpool.Executor
	Poller     *service.InstancePoller
	Sweeper    *service.ReservationSweeper
	Broker     *notification.Broker
}

func InitContainer(l *logrus.Logger, cm config.IConfigureManager, mysqlInstance mysqldb.IMysqlInstance) *Container {
	endpoints := cm.GetEndpointsConfig()
	clusterConfig := cm.GetClusterConfig()
	instanceConfig := cm.GetInstanceConfig()
	agentConfig := cm.GetAgentConfig()
	quotaConfig := cm.GetQuotaConfig()

	iRepository := repository.NewRepository(mysqlInstance)

	iIdentityService := service.NewIdentityService(l, endpoints.IdentityEndpoint, cm.GetServiceCredentialsConfig())
	iComputeService := service.NewComputeService(l, iIdentityService, endpoints.ComputeEndpoint, cm.GetOpenStackApiConfig().NovaMicroVersion)
	iVolumeService := service.NewVolumeService(l, iIdentityService, endpoints.BlockStorageEndpoint)
	iNetworkService := service.NewNetworkService(l, iIdentityService, endpoints.NetworkEndpoint)

	guests := guestagent.NewClientFactory(l, agentConfig.Port, iRepository.Heartbeat(), guestagent.Config{
		QuickTimeout:    agentConfig.CallLowTimeout,
		SlowTimeout:     agentConfig.CallHighTimeout,
		HeartbeatExpiry: agentConfig.HeartbeatExpiry,
	})

	broker := notification.NewBroker()
	executor := workerpool.NewExecutor(l, clusterConfig.Workers)

	iQuotaService := service.NewQuotaService(l, iRepository, quotaConfig)
	iInstanceService := service.NewInstanceService(l, iRepository, iComputeService, iVolumeService, iQuotaService, guests, service.InstanceOptions{
		UsageTimeout:        instanceConfig.UsageTimeout,
		HeartbeatExpiry:     agentConfig.HeartbeatExpiry,
		ManagementNetworkID: cm.GetOpenStackApiConfig().ManagementNetworkID,
		ControllerEndpoint:  endpoints.ControllerEndpoint,
		AgentPort:           agentConfig.Port,
		VolumePoll: poll.Options{
			Interval: clusterConfig.StateChangePollTime,
			Timeout:  clusterConfig.StateChangeWaitTime,
		},
	})
	poller := service.NewInstancePoller(l, iRepository, iComputeService, iInstanceService, service.PollerOptions{
		Interval:        instanceConfig.PollerInterval,
		UsageTimeout:    instanceConfig.UsageTimeout,
		HeartbeatExpiry: agentConfig.HeartbeatExpiry,
	})

	iClusterService := service.NewClusterService(
		l,
		iRepository,
		strategy.DefaultRegistry(),
		iInstanceService,
		poller,
		iQuotaService,
		service.NewCapabilityService(l, iRepository),
		iComputeService,
		iNetworkService,
		guests,
		notification.NewNotifier(l, iRepository, broker),
		executor,
		service.ClusterOptions{
			UsageTimeout:        clusterConfig.UsageTimeout,
			StateChangeWaitTime: clusterConfig.StateChangeWaitTime,
			StateChangePollTime: clusterConfig.StateChangePollTime,
			HeartbeatExpiry:     agentConfig.HeartbeatExpiry,
			MaxVolumeSize:       instanceConfig.MaxAcceptedVolumeSize,
		},
	)
	iConfigurationService := service.NewConfigurationService(l, iRepository, guests, iClusterService)

	return &Container{
		AppService: service.NewAppService(l, iRepository, iClusterService, iConfigurationService, iInstanceService, iQuotaService, iIdentityService),
		Executor:   executor,
		Poller:     poller,
		Sweeper:    service.NewReservationSweeper(l, iQuotaService, quotaConfig.ReservationExpire, quotaConfig.SweepInterval),
		Broker:     broker,
	}
}

func InitHealthCheckHandler(as service.IAppService) handler.IHealthCheckHandler {
	iHealthCheckHandler := handler.NewHealthCheckHandler(as)
	return iHealthCheckHandler
}

func InitRoute(as service.IAppService) route.IRoute {
	iAppHandler := handler.NewAppHandler(as)
	iRoute := route.NewRoute(iAppHandler)
	return iRoute
}
