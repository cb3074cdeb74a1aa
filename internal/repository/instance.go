package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IInstanceRepository interface {
	CreateInstance(ctx context.Context, instance *model.Instance) error
	GetInstance(ctx context.Context, id string) (*model.Instance, error)
	ListClusterInstances(ctx context.Context, clusterID string) ([]model.Instance, error)
	ListInstancesByTask(ctx context.Context, codes []int) ([]model.Instance, error)
	ListInstancesByConfiguration(ctx context.Context, configurationID string) ([]model.Instance, error)
	UpdateInstance(ctx context.Context, id string, fields map[string]interface{}) error
	SetTask(ctx context.Context, id string, next task.Task) error
	SoftDelete(ctx context.Context, id string) (bool, error)
	CountClusterInstances(ctx context.Context, clusterID string) (int64, error)
}

type InstanceRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewInstanceRepository(mysqlInstance mysqldb.IMysqlInstance) *InstanceRepository {
	return &InstanceRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (i *InstanceRepository) CreateInstance(ctx context.Context, instance *model.Instance) error {
	return i.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(instance).
		Error
}

func (i *InstanceRepository) GetInstance(ctx context.Context, id string) (*model.Instance, error) {
	var instance model.Instance

	err := i.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&instance).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("instance %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	return &instance, nil
}

func (i *InstanceRepository) ListClusterInstances(ctx context.Context, clusterID string) ([]model.Instance, error) {
	var instances []model.Instance

	return instances, i.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("cluster_id = ? AND deleted = ?", clusterID, false).
		Order("created, name").
		Find(&instances).
		Error
}

func (i *InstanceRepository) ListInstancesByTask(ctx context.Context, codes []int) ([]model.Instance, error) {
	var instances []model.Instance

	return instances, i.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("task_id IN ? AND deleted = ?", codes, false).
		Find(&instances).
		Error
}

func (i *InstanceRepository) ListInstancesByConfiguration(ctx context.Context, configurationID string) ([]model.Instance, error) {
	var instances []model.Instance

	return instances, i.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("configuration_id = ? AND deleted = ?", configurationID, false).
		Find(&instances).
		Error
}

func (i *InstanceRepository) UpdateInstance(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated"] = time.Now().UTC()

	return i.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Instance{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (i *InstanceRepository) SetTask(ctx context.Context, id string, next task.Task) error {
	now := time.Now().UTC()

	return i.UpdateInstance(ctx, id, map[string]interface{}{
		"task_id":          next.Code,
		"task_description": next.Description,
		"task_start_time":  now,
	})
}

// SoftDelete marks the instance deleted and reports whether this call made
// the change, so callers release per-instance resources exactly once.
func (i *InstanceRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()

	res := i.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Instance{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"deleted":    true,
			"deleted_at": now,
			"updated":    now,
		})

	return res.RowsAffected > 0, res.Error
}

func (i *InstanceRepository) CountClusterInstances(ctx context.Context, clusterID string) (int64, error) {
	var count int64

	return count, i.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Instance{}).
		Where("cluster_id = ? AND deleted = ?", clusterID, false).
		Count(&count).
		Error
}
