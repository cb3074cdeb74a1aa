package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/metrics"
)

// Deltas maps a quota resource to a signed change.
type Deltas map[string]int

type IQuotaService interface {
	// Check reserves the positive deltas for tenant, or fails with
	// QuotaExceeded without reserving anything.
	Check(ctx context.Context, tenantID string, deltas Deltas) ([]model.Reservation, error)
	Commit(ctx context.Context, reservations []model.Reservation) error
	Rollback(ctx context.Context, reservations []model.Reservation) error
	// CommitUsed commits the used share of reservations and rolls back the
	// rest, for work that stopped after consuming part of what it reserved.
	CommitUsed(ctx context.Context, reservations []model.Reservation, used Deltas) error
	// Release gives back resources that were in use.
	Release(ctx context.Context, tenantID string, deltas Deltas) error
	// Sweep rolls back reservations still pending since before.
	Sweep(ctx context.Context, before time.Time) (int, error)
	SetLimit(ctx context.Context, tenantID, resource string, limit int) error
	Usage(ctx context.Context, tenantID string) ([]resource.QuotaUsageResource, error)
}

type quotaService struct {
	logger     *logrus.Logger
	repository repository.IRepository
	defaults   map[string]int
}

func NewQuotaService(l *logrus.Logger, r repository.IRepository, cfg config.QuotaConfig) IQuotaService {
	return &quotaService{
		logger:     l,
		repository: r,
		defaults: map[string]int{
			constants.ResourceInstances: cfg.MaxInstancesPerTenant,
			constants.ResourceVolumes:   cfg.MaxVolumesPerTenant,
			constants.ResourceBackups:   cfg.MaxBackupsPerTenant,
		},
	}
}

func (q *quotaService) limit(ctx context.Context, repo repository.IRepository, tenantID, res string) (int, error) {
	quota, err := repo.Quota().GetQuota(ctx, tenantID, res)
	if err != nil {
		return 0, err
	}
	if quota != nil {
		return quota.HardLimit, nil
	}

	return q.defaults[res], nil
}

// sortedResources gives a stable lock order across concurrent checks.
func sortedResources(deltas Deltas) []string {
	out := make([]string, 0, len(deltas))
	for res, d := range deltas {
		if d > 0 {
			out = append(out, res)
		}
	}
	sort.Strings(out)

	return out
}

func (q *quotaService) Check(ctx context.Context, tenantID string, deltas Deltas) ([]model.Reservation, error) {
	for res := range deltas {
		if _, ok := q.defaults[res]; !ok {
			return nil, errs.Validation("", "unknown quota resource %s", res)
		}
	}

	var reservations []model.Reservation
	err := q.repository.Transaction(ctx, func(tx repository.IRepository) error {
		usages := make(map[string]*model.QuotaUsage)
		for _, res := range sortedResources(deltas) {
			usage, err := tx.Quota().LockUsage(ctx, tenantID, res)
			if err != nil {
				return err
			}
			limit, err := q.limit(ctx, tx, tenantID, res)
			if err != nil {
				return err
			}
			if limit >= 0 && usage.InUse+usage.Reserved+deltas[res] > limit {
				return errs.QuotaExceeded("quota exceeded for %s: limit %d, in use %d, reserved %d, requested %d",
					res, limit, usage.InUse, usage.Reserved, deltas[res])
			}
			usages[res] = usage
		}

		now := time.Now().UTC()
		for _, res := range sortedResources(deltas) {
			usage := usages[res]
			usage.Reserved += deltas[res]
			if err := tx.Quota().SaveUsage(ctx, usage); err != nil {
				return err
			}

			r := model.Reservation{
				ID:       uuid.New().String(),
				TenantID: tenantID,
				UsageID:  usage.ID,
				Resource: res,
				Delta:    deltas[res],
				Status:   constants.ReservationReserved,
				Created:  now,
				Updated:  now,
			}
			if err := tx.Quota().CreateReservation(ctx, &r); err != nil {
				return err
			}
			reservations = append(reservations, r)
		}

		return nil
	})
	if err != nil {
		outcome := "error"
		if errs.Is(err, errs.KindQuotaExceeded) {
			outcome = "exceeded"
		}
		metrics.QuotaReservationsTotal.WithLabelValues(outcome).Inc()

		return nil, err
	}

	metrics.QuotaReservationsTotal.WithLabelValues("reserved").Inc()

	return reservations, nil
}

func (q *quotaService) Commit(ctx context.Context, reservations []model.Reservation) error {
	return q.settle(ctx, reservations, func(r model.Reservation) int { return r.Delta })
}

func (q *quotaService) Rollback(ctx context.Context, reservations []model.Reservation) error {
	return q.settle(ctx, reservations, func(model.Reservation) int { return 0 })
}

func (q *quotaService) CommitUsed(ctx context.Context, reservations []model.Reservation, used Deltas) error {
	return q.settle(ctx, reservations, func(r model.Reservation) int {
		return min(max(used[r.Resource], 0), r.Delta)
	})
}

// settle moves reservations out of Reserved, turning share(r) of each into
// usage. A reservation with a zero share is rolled back. A reservation that
// already left Reserved is skipped, so settling twice is harmless.
func (q *quotaService) settle(ctx context.Context, reservations []model.Reservation, share func(model.Reservation) int) error {
	if len(reservations) == 0 {
		return nil
	}

	committed, rolledBack := 0, 0
	err := q.repository.Transaction(ctx, func(tx repository.IRepository) error {
		committed, rolledBack = 0, 0
		for _, r := range reservations {
			used := share(r)
			to := constants.ReservationCommitted
			if used == 0 {
				to = constants.ReservationRolledBack
			}

			moved, err := tx.Quota().TransitionReservation(ctx, r.ID, constants.ReservationReserved, to)
			if err != nil {
				return err
			}
			if !moved {
				continue
			}

			usage, err := tx.Quota().LockUsage(ctx, r.TenantID, r.Resource)
			if err != nil {
				return err
			}
			usage.Reserved = max(usage.Reserved-r.Delta, 0)
			usage.InUse += used
			if err := tx.Quota().SaveUsage(ctx, usage); err != nil {
				return err
			}

			if used == 0 {
				rolledBack++
			} else {
				committed++
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	metrics.QuotaReservationsTotal.WithLabelValues("committed").Add(float64(committed))
	metrics.QuotaReservationsTotal.WithLabelValues("rolled_back").Add(float64(rolledBack))

	return nil
}

func (q *quotaService) Release(ctx context.Context, tenantID string, deltas Deltas) error {
	return q.repository.Transaction(ctx, func(tx repository.IRepository) error {
		for _, res := range sortedResources(deltas) {
			usage, err := tx.Quota().LockUsage(ctx, tenantID, res)
			if err != nil {
				return err
			}
			usage.InUse = max(usage.InUse-deltas[res], 0)
			if err := tx.Quota().SaveUsage(ctx, usage); err != nil {
				return err
			}
		}

		return nil
	})
}

func (q *quotaService) Sweep(ctx context.Context, before time.Time) (int, error) {
	stale, err := q.repository.Quota().ListReservationsBefore(ctx, constants.ReservationReserved, before)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	q.logger.WithField("count", len(stale)).Warn("rolling back expired reservations")

	return len(stale), q.Rollback(ctx, stale)
}

func (q *quotaService) SetLimit(ctx context.Context, tenantID, res string, limit int) error {
	if _, ok := q.defaults[res]; !ok {
		return errs.Validation("", "unknown quota resource %s", res)
	}

	return q.repository.Quota().SetQuota(ctx, tenantID, res, limit)
}

func (q *quotaService) Usage(ctx context.Context, tenantID string) ([]resource.QuotaUsageResource, error) {
	usages, err := q.repository.Quota().ListUsages(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byResource := make(map[string]model.QuotaUsage, len(usages))
	for _, u := range usages {
		byResource[u.Resource] = u
	}

	names := make([]string, 0, len(q.defaults))
	for res := range q.defaults {
		names = append(names, res)
	}
	sort.Strings(names)

	out := make([]resource.QuotaUsageResource, 0, len(names))
	for _, res := range names {
		limit, err := q.limit(ctx, q.repository, tenantID, res)
		if err != nil {
			return nil, err
		}
		u := byResource[res]
		out = append(out, resource.QuotaUsageResource{
			Resource:  res,
			Limit:     limit,
			InUse:     u.InUse,
			Reserved:  u.Reserved,
			Available: max(limit-u.InUse-u.Reserved, 0),
		})
	}

	return out, nil
}
