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

type IClusterRepository interface {
	CreateCluster(ctx context.Context, cluster *model.Cluster) error
	GetCluster(ctx context.Context, id string) (*model.Cluster, error)
	GetTenantCluster(ctx context.Context, tenantID, id string) (*model.Cluster, error)
	ListClusters(ctx context.Context, tenantID string) ([]model.Cluster, error)
	TransitionTask(ctx context.Context, id string, allowed []int, next task.Task) (*model.Cluster, error)
	SetTask(ctx context.Context, id string, next task.Task) error
	SetConfiguration(ctx context.Context, id string, configurationID *string) error
	SetDatastoreVersion(ctx context.Context, id, versionID string) error
	SoftDelete(ctx context.Context, id string) error
}

type ClusterRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewClusterRepository(mysqlInstance mysqldb.IMysqlInstance) *ClusterRepository {
	return &ClusterRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (c *ClusterRepository) CreateCluster(ctx context.Context, cluster *model.Cluster) error {
	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(cluster).
		Error
}

func (c *ClusterRepository) GetCluster(ctx context.Context, id string) (*model.Cluster, error) {
	var cluster model.Cluster

	err := c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&cluster).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("cluster %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	return &cluster, nil
}

func (c *ClusterRepository) GetTenantCluster(ctx context.Context, tenantID, id string) (*model.Cluster, error) {
	cluster, err := c.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	if cluster.TenantID != tenantID {
		return nil, errs.NotFound("cluster %s not found", id)
	}

	return cluster, nil
}

func (c *ClusterRepository) ListClusters(ctx context.Context, tenantID string) ([]model.Cluster, error) {
	var clusters []model.Cluster

	return clusters, c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("tenant_id = ? AND deleted = ?", tenantID, false).
		Order("created").
		Find(&clusters).
		Error
}

// TransitionTask moves the cluster to next in a single conditional update.
// A nil allowed list accepts any current task. When no row changes the
// cluster is reloaded to tell a missing cluster from a conflicting task.
// MySQL reports changed rows rather than matched ones, so a row that already
// holds next from an allowed task counts as a transition.
func (c *ClusterRepository) TransitionTask(ctx context.Context, id string, allowed []int, next task.Task) (*model.Cluster, error) {
	query := "id = ? AND deleted = ?"
	args := []interface{}{id, false}
	if allowed != nil {
		query += " AND task_id IN ?"
		args = append(args, allowed)
	}

	res := c.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Cluster{}).
		Where(query, args...).
		Updates(map[string]interface{}{
			"task_id": next.Code,
			"updated": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	cluster, err := c.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && !(cluster.TaskID == next.Code && permits(allowed, next.Code)) {
		return nil, errs.Conflict("action cannot be performed while cluster task is %s", cluster.Task().Name)
	}

	return cluster, nil
}

func permits(allowed []int, code int) bool {
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == code {
			return true
		}
	}

	return false
}

func (c *ClusterRepository) SetTask(ctx context.Context, id string, next task.Task) error {
	return c.update(ctx, id, map[string]interface{}{"task_id": next.Code})
}

func (c *ClusterRepository) SetConfiguration(ctx context.Context, id string, configurationID *string) error {
	return c.update(ctx, id, map[string]interface{}{"configuration_id": configurationID})
}

func (c *ClusterRepository) SetDatastoreVersion(ctx context.Context, id, versionID string) error {
	return c.update(ctx, id, map[string]interface{}{"datastore_version_id": versionID})
}

func (c *ClusterRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()

	return c.update(ctx, id, map[string]interface{}{
		"deleted":    true,
		"deleted_at": now,
		"task_id":    task.ClusterNone.Code,
	})
}

func (c *ClusterRepository) update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated"] = time.Now().UTC()

	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Cluster{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}
