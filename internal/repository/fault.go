package repository

import (
	"context"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IFaultRepository interface {
	CreateFault(ctx context.Context, fault *model.Fault) error
	ListClusterFaults(ctx context.Context, clusterID string) ([]model.Fault, error)
}

type FaultRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewFaultRepository(mysqlInstance mysqldb.IMysqlInstance) *FaultRepository {
	return &FaultRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (f *FaultRepository) CreateFault(ctx context.Context, fault *model.Fault) error {
	return f.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(fault).
		Error
}

func (f *FaultRepository) ListClusterFaults(ctx context.Context, clusterID string) ([]model.Fault, error) {
	var faults []model.Fault

	return faults, f.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("cluster_id = ?", clusterID).
		Order("created_at DESC").
		Find(&faults).
		Error
}
