package service

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"trainerbook/internal/bookings/repository"
	"trainerbook/pkg/logger"
)

const sweepLeaseName = "booking-expiry"

type expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Sweeper periodically releases holds whose payment never arrived. When a
// lease is configured only the replica holding it sweeps; without one every
// replica sweeps, which is safe because expiry is a conditional update.
type Sweeper struct {
	svc      expirer
	lease    repository.SweepLease
	interval time.Duration
	leaseTTL time.Duration
	holder   string
	log      *logger.Logger
}

func NewSweeper(svc BookingService, lease repository.SweepLease, interval, leaseTTL time.Duration, log *logger.Logger) *Sweeper {
	host, _ := os.Hostname()
	return &Sweeper{
		svc:      svc,
		lease:    lease,
		interval: interval,
		leaseTTL: leaseTTL,
		holder:   host + "-" + uuid.NewString()[:8],
		log:      log,
	}
}

func (s *Sweeper) Name() string {
	return "expiry-sweeper"
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Expiry sweeper started", "interval", s.interval, "holder", s.holder, "lease", s.lease != nil)
	defer s.releaseLease()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if s.lease != nil && s.leaseTTL > 0 {
		held, err := s.lease.Acquire(ctx, sweepLeaseName, s.holder, s.leaseTTL)
		if err != nil {
			s.log.Warn("Failed to acquire sweep lease", "error", err)
			return
		}
		if !held {
			return
		}
	}

	if _, err := s.svc.ExpireStale(ctx); err != nil {
		s.log.Error("Expiry sweep failed, retrying next tick", "error", err)
	}
}

func (s *Sweeper) releaseLease() {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx, sweepLeaseName, s.holder); err != nil {
		s.log.Warn("Failed to release sweep lease", "error", err)
	}
}
