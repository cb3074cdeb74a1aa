package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IConfigurationRepository interface {
	CreateConfiguration(ctx context.Context, configuration *model.Configuration) error
	GetConfiguration(ctx context.Context, id string) (*model.Configuration, error)
	ListConfigurations(ctx context.Context, tenantID string) ([]model.Configuration, error)
	UpdateConfiguration(ctx context.Context, id string, fields map[string]interface{}) error
	ListItems(ctx context.Context, configurationID string) ([]model.ConfigurationParameter, error)
	ReplaceItems(ctx context.Context, configurationID string, items []model.ConfigurationParameter) error
	SoftDelete(ctx context.Context, id string) error
	CountUsage(ctx context.Context, id string) (int64, error)
}

type ConfigurationRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewConfigurationRepository(mysqlInstance mysqldb.IMysqlInstance) *ConfigurationRepository {
	return &ConfigurationRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (c *ConfigurationRepository) CreateConfiguration(ctx context.Context, configuration *model.Configuration) error {
	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(configuration).
		Error
}

func (c *ConfigurationRepository) GetConfiguration(ctx context.Context, id string) (*model.Configuration, error) {
	var configuration model.Configuration

	err := c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&configuration).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("configuration %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	return &configuration, nil
}

func (c *ConfigurationRepository) ListConfigurations(ctx context.Context, tenantID string) ([]model.Configuration, error) {
	var configurations []model.Configuration

	return configurations, c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("tenant_id = ? AND deleted = ?", tenantID, false).
		Order("created").
		Find(&configurations).
		Error
}

func (c *ConfigurationRepository) UpdateConfiguration(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated"] = time.Now().UTC()

	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Configuration{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (c *ConfigurationRepository) ListItems(ctx context.Context, configurationID string) ([]model.ConfigurationParameter, error) {
	var items []model.ConfigurationParameter

	return items, c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("configuration_id = ? AND deleted = ?", configurationID, false).
		Order("configuration_key").
		Find(&items).
		Error
}

func (c *ConfigurationRepository) ReplaceItems(ctx context.Context, configurationID string, items []model.ConfigurationParameter) error {
	now := time.Now().UTC()

	err := c.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.ConfigurationParameter{}).
		Where("configuration_id = ? AND deleted = ?", configurationID, false).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": now}).
		Error
	if err != nil || len(items) == 0 {
		return err
	}

	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(&items).
		Error
}

func (c *ConfigurationRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()

	return c.UpdateConfiguration(ctx, id, map[string]interface{}{
		"deleted":    true,
		"deleted_at": now,
	})
}

// CountUsage counts live clusters and instances that reference the
// configuration.
func (c *ConfigurationRepository) CountUsage(ctx context.Context, id string) (int64, error) {
	var clusters, instances int64

	db := c.mysqlInstance.Database().WithContext(ctx)
	if err := db.Model(&model.Cluster{}).
		Where("configuration_id = ? AND deleted = ?", id, false).
		Count(&clusters).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.Instance{}).
		Where("configuration_id = ? AND deleted = ?", id, false).
		Count(&instances).Error; err != nil {
		return 0, err
	}

	return clusters + instances, nil
}
