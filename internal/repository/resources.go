package repository

import (
	"context"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IResourcesRepository interface {
	CreateResource(ctx context.Context, resource *model.ClusterResource) error
	GetClusterResources(ctx context.Context, clusterID, resourceType string) ([]model.ClusterResource, error)
	DeleteResource(ctx context.Context, clusterID, resourceID string) error
}

type ResourcesRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewResourcesRepository(mysqlInstance mysqldb.IMysqlInstance) *ResourcesRepository {
	return &ResourcesRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (r *ResourcesRepository) CreateResource(ctx context.Context, resource *model.ClusterResource) error {
	return r.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(resource).
		Error
}

func (r *ResourcesRepository) GetClusterResources(ctx context.Context, clusterID, resourceType string) ([]model.ClusterResource, error) {
	var resources []model.ClusterResource

	return resources, r.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("cluster_id = ? AND resource_type = ?", clusterID, resourceType).
		Find(&resources).
		Error
}

func (r *ResourcesRepository) DeleteResource(ctx context.Context, clusterID, resourceID string) error {
	return r.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("cluster_id = ? AND resource_id = ?", clusterID, resourceID).
		Delete(&model.ClusterResource{}).
		Error
}
