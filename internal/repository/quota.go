package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IQuotaRepository interface {
	GetQuota(ctx context.Context, tenantID, resource string) (*model.Quota, error)
	ListQuotas(ctx context.Context, tenantID string) ([]model.Quota, error)
	SetQuota(ctx context.Context, tenantID, resource string, limit int) error
	LockUsage(ctx context.Context, tenantID, resource string) (*model.QuotaUsage, error)
	ListUsages(ctx context.Context, tenantID string) ([]model.QuotaUsage, error)
	SaveUsage(ctx context.Context, usage *model.QuotaUsage) error
	CreateReservation(ctx context.Context, reservation *model.Reservation) error
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	TransitionReservation(ctx context.Context, id, from, to string) (bool, error)
	ListReservationsBefore(ctx context.Context, status string, before time.Time) ([]model.Reservation, error)
}

type QuotaRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewQuotaRepository(mysqlInstance mysqldb.IMysqlInstance) *QuotaRepository {
	return &QuotaRepository{
		mysqlInstance: mysqlInstance,
	}
}

// GetQuota returns the tenant override for resource, or nil when the tenant
// runs on the configured default.
func (q *QuotaRepository) GetQuota(ctx context.Context, tenantID, resource string) (*model.Quota, error) {
	var quota model.Quota

	err := q.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("tenant_id = ? AND resource = ?", tenantID, resource).
		First(&quota).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &quota, nil
}

func (q *QuotaRepository) ListQuotas(ctx context.Context, tenantID string) ([]model.Quota, error) {
	var quotas []model.Quota

	return quotas, q.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("resource").
		Find(&quotas).
		Error
}

func (q *QuotaRepository) SetQuota(ctx context.Context, tenantID, resource string, limit int) error {
	now := time.Now().UTC()

	return q.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "resource"}},
			DoUpdates: clause.AssignmentColumns([]string{"hard_limit", "updated"}),
		}).
		Create(&model.Quota{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Resource:  resource,
			HardLimit: limit,
			Created:   now,
			Updated:   now,
		}).
		Error
}

// LockUsage returns the usage row of tenant and resource, creating it when
// absent, and holds a row lock on it until the surrounding transaction ends.
func (q *QuotaRepository) LockUsage(ctx context.Context, tenantID, resource string) (*model.QuotaUsage, error) {
	now := time.Now().UTC()
	db := q.mysqlInstance.Database().WithContext(ctx)

	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.QuotaUsage{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Resource: resource,
			Created:  now,
			Updated:  now,
		}).Error
	if err != nil {
		return nil, err
	}

	var usage model.QuotaUsage
	err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND resource = ?", tenantID, resource).
		First(&usage).
		Error
	if err != nil {
		return nil, err
	}

	return &usage, nil
}

func (q *QuotaRepository) ListUsages(ctx context.Context, tenantID string) ([]model.QuotaUsage, error) {
	var usages []model.QuotaUsage

	return usages, q.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("resource").
		Find(&usages).
		Error
}

func (q *QuotaRepository) SaveUsage(ctx context.Context, usage *model.QuotaUsage) error {
	return q.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.QuotaUsage{}).
		Where("id = ?", usage.ID).
		Updates(map[string]interface{}{
			"in_use":   usage.InUse,
			"reserved": usage.Reserved,
			"updated":  time.Now().UTC(),
		}).
		Error
}

func (q *QuotaRepository) CreateReservation(ctx context.Context, reservation *model.Reservation) error {
	return q.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(reservation).
		Error
}

func (q *QuotaRepository) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var reservation model.Reservation

	err := q.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ?", id).
		First(&reservation).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("reservation %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	return &reservation, nil
}

// TransitionReservation moves a reservation from one status to another and
// reports whether this call won the transition.
func (q *QuotaRepository) TransitionReservation(ctx context.Context, id, from, to string) (bool, error) {
	res := q.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":  to,
			"updated": time.Now().UTC(),
		})

	return res.RowsAffected > 0, res.Error
}

func (q *QuotaRepository) ListReservationsBefore(ctx context.Context, status string, before time.Time) ([]model.Reservation, error) {
	var reservations []model.Reservation

	return reservations, q.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("status = ? AND created < ?", status, before).
		Find(&reservations).
		Error
}
