package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ReservationSweeper rolls back reservations that were never committed.
type ReservationSweeper struct {
	logger   *logrus.Logger
	quota    IQuotaService
	expire   time.Duration
	interval time.Duration
}

func NewReservationSweeper(l *logrus.Logger, q IQuotaService, expire, interval time.Duration) *ReservationSweeper {
	return &ReservationSweeper{
		logger:   l,
		quota:    q,
		expire:   expire,
		interval: interval,
	}
}

func (s *ReservationSweeper) Run(ctx context.Context) {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Error("reservation sweep failed")
			}
		}
	}
}

func (s *ReservationSweeper) Sweep(ctx context.Context) (int, error) {
	return s.quota.Sweep(ctx, time.Now().UTC().Add(-s.expire))
}
