package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/repository"
)

type IAppService interface {
	Cluster() IClusterService
	Configuration() IConfigurationService
	Instance() IInstanceService
	Quota() IQuotaService
	Identity() IIdentityService
	// Ping reports whether the state store answers.
	Ping(ctx context.Context) error
}

type appService struct {
	logger        *logrus.Logger
	repository    repository.IRepository
	cluster       IClusterService
	configuration IConfigurationService
	instance      IInstanceService
	quota         IQuotaService
	identity      IIdentityService
}

func NewAppService(
	l *logrus.Logger,
	r repository.IRepository,
	c IClusterService,
	cs IConfigurationService,
	i IInstanceService,
	q IQuotaService,
	id IIdentityService,
) IAppService {
	return &appService{
		logger:        l,
		repository:    r,
		cluster:       c,
		configuration: cs,
		instance:      i,
		quota:         q,
		identity:      id,
	}
}

func (a *appService) Cluster() IClusterService {
	return a.cluster
}

func (a *appService) Configuration() IConfigurationService {
	return a.configuration
}

func (a *appService) Instance() IInstanceService {
	return a.instance
}

func (a *appService) Quota() IQuotaService {
	return a.quota
}

func (a *appService) Identity() IIdentityService {
	return a.identity
}

func (a *appService) Ping(ctx context.Context) error {
	return a.repository.Ping(ctx)
}
