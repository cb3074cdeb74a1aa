package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IRepository interface {
	Cluster() IClusterRepository
	Instance() IInstanceRepository
	Datastore() IDatastoreRepository
	Configuration() IConfigurationRepository
	Quota() IQuotaRepository
	Heartbeat() IHeartbeatRepository
	Capability() ICapabilityRepository
	AuditLog() IAuditLogRepository
	Fault() IFaultRepository
	Resources() IResourcesRepository
	// Transaction runs fn against repositories bound to a single database
	// transaction. The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(tx IRepository) error) error
	Ping(ctx context.Context) error
}

type repository struct {
	mysqlInstance mysqldb.IMysqlInstance
	cluster       IClusterRepository
	instance      IInstanceRepository
	datastore     IDatastoreRepository
	configuration IConfigurationRepository
	quota         IQuotaRepository
	heartbeat     IHeartbeatRepository
	capability    ICapabilityRepository
	auditLog      IAuditLogRepository
	fault         IFaultRepository
	resources     IResourcesRepository
}

func NewRepository(mi mysqldb.IMysqlInstance) IRepository {
	return &repository{
		mysqlInstance: mi,
		cluster:       NewClusterRepository(mi),
		instance:      NewInstanceRepository(mi),
		datastore:     NewDatastoreRepository(mi),
		configuration: NewConfigurationRepository(mi),
		quota:         NewQuotaRepository(mi),
		heartbeat:     NewHeartbeatRepository(mi),
		capability:    NewCapabilityRepository(mi),
		auditLog:      NewAuditLogRepository(mi),
		fault:         NewFaultRepository(mi),
		resources:     NewResourcesRepository(mi),
	}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx IRepository) error) error {
	return r.mysqlInstance.
		Database().
		WithContext(ctx).
		Transaction(func(tx *gorm.DB) error {
			return fn(NewRepository(mysqldb.FromGorm(tx)))
		})
}

func (r *repository) Ping(ctx context.Context) error {
	return r.mysqlInstance.Ping(ctx)
}

func (r *repository) Cluster() IClusterRepository {
	return r.cluster
}

func (r *repository) Instance() IInstanceRepository {
	return r.instance
}

func (r *repository) Datastore() IDatastoreRepository {
	return r.datastore
}

func (r *repository) Configuration() IConfigurationRepository {
	return r.configuration
}

func (r *repository) Quota() IQuotaRepository {
	return r.quota
}

func (r *repository) Heartbeat() IHeartbeatRepository {
	return r.heartbeat
}

func (r *repository) Capability() ICapabilityRepository {
	return r.capability
}

func (r *repository) AuditLog() IAuditLogRepository {
	return r.auditLog
}

func (r *repository) Fault() IFaultRepository {
	return r.fault
}

func (r *repository) Resources() IResourcesRepository {
	return r.resources
}
