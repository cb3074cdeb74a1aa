package repository

import (
	"context"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IAuditLogRepository interface {
	CreateAuditLog(ctx context.Context, auditLog *model.AuditLog) error
	ListClusterAuditLogs(ctx context.Context, clusterID string) ([]model.AuditLog, error)
}

type AuditLogRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewAuditLogRepository(mysqlInstance mysqldb.IMysqlInstance) *AuditLogRepository {
	return &AuditLogRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (a *AuditLogRepository) CreateAuditLog(ctx context.Context, auditLog *model.AuditLog) error {
	return a.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(auditLog).
		Error
}

func (a *AuditLogRepository) ListClusterAuditLogs(ctx context.Context, clusterID string) ([]model.AuditLog, error) {
	var logs []model.AuditLog

	return logs, a.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("id").
		Find(&logs).
		Error
}
