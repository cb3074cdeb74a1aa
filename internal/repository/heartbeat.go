package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IHeartbeatRepository interface {
	GetHeartbeat(ctx context.Context, instanceID string) (*model.AgentHeartbeat, error)
	SaveHeartbeat(ctx context.Context, heartbeat *model.AgentHeartbeat) error
	DeleteHeartbeat(ctx context.Context, instanceID string) error
}

type HeartbeatRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewHeartbeatRepository(mysqlInstance mysqldb.IMysqlInstance) *HeartbeatRepository {
	return &HeartbeatRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (h *HeartbeatRepository) GetHeartbeat(ctx context.Context, instanceID string) (*model.AgentHeartbeat, error) {
	var heartbeat model.AgentHeartbeat

	err := h.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("instance_id = ? AND deleted = ?", instanceID, false).
		First(&heartbeat).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("no heartbeat recorded for instance %s", instanceID)
	}
	if err != nil {
		return nil, err
	}

	return &heartbeat, nil
}

// SaveHeartbeat inserts the heartbeat or refreshes the existing row of the
// same instance.
func (h *HeartbeatRepository) SaveHeartbeat(ctx context.Context, heartbeat *model.AgentHeartbeat) error {
	return h.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"guest_agent_version", "service_status", "updated_at", "deleted"}),
		}).
		Create(heartbeat).
		Error
}

func (h *HeartbeatRepository) DeleteHeartbeat(ctx context.Context, instanceID string) error {
	return h.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.AgentHeartbeat{}).
		Where("instance_id = ?", instanceID).
		Update("deleted", true).
		Error
}
