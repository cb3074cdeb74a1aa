package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type ICapabilityRepository interface {
	ListCapabilities(ctx context.Context) ([]model.Capability, error)
	ListOverrides(ctx context.Context, versionID string) ([]model.CapabilityOverride, error)
	SaveCapability(ctx context.Context, capability *model.Capability) error
	SaveOverride(ctx context.Context, override *model.CapabilityOverride) error
}

type CapabilityRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewCapabilityRepository(mysqlInstance mysqldb.IMysqlInstance) *CapabilityRepository {
	return &CapabilityRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (c *CapabilityRepository) ListCapabilities(ctx context.Context) ([]model.Capability, error) {
	var capabilities []model.Capability

	return capabilities, c.mysqlInstance.
		Database().
		WithContext(ctx).
		Order("name").
		Find(&capabilities).
		Error
}

func (c *CapabilityRepository) ListOverrides(ctx context.Context, versionID string) ([]model.CapabilityOverride, error) {
	var overrides []model.CapabilityOverride

	return overrides, c.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("datastore_version_id = ?", versionID).
		Find(&overrides).
		Error
}

func (c *CapabilityRepository) SaveCapability(ctx context.Context, capability *model.Capability) error {
	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "enabled"}),
		}).
		Create(capability).
		Error
}

func (c *CapabilityRepository) SaveOverride(ctx context.Context, override *model.CapabilityOverride) error {
	return c.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(override).
		Error
}
