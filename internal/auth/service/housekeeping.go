package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/activitymaster/clubauth/internal/auth/store"
	"github.com/activitymaster/clubauth/pkg/metrics"
)

// Retention windows for periodic cleanup.
const (
	// StaleEmailCodeAge is how long an unredeemed email challenge may sit
	// before it is purged. Codes are only redeemable while their step
	// token lives, so this is generous.
	StaleEmailCodeAge = 15 * time.Minute

	// AuthLogIPRetention is how long client addresses stay attached to
	// authentication logs before being blanked.
	AuthLogIPRetention = 90 * 24 * time.Hour
)

// HousekeepingService periodically cleans up expired database records
// to prevent unbounded growth of tokens, email challenges, and stored
// identity documents.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass over every retention task. Each task is
// independent - failures in one won't stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	s.Logger.Info("starting housekeeping cleanup")

	now := time.Now().UTC()

	s.runTask("expired_tokens", func() error {
		return s.Store.Tokens().DeleteExpiredTokens(ctx)
	})
	s.runTask("stale_email_codes", func() error {
		return s.Store.TwoFactor().DeleteStaleEmailCodes(ctx, now.Add(-StaleEmailCodeAge))
	})
	s.runTask("expired_verifications", func() error {
		return s.Store.Verifications().DeleteExpiredVerifications(ctx)
	})
	s.runTask("old_login_ips", func() error {
		_, err := s.Store.Audit().AnonymizeOldAuthLogIPs(ctx, now.Add(-AuthLogIPRetention))
		return err
	})

	s.Logger.Info("housekeeping cleanup completed")
}

func (s *HousekeepingService) runTask(name string, fn func() error) {
	if err := fn(); err != nil {
		s.Logger.Error("housekeeping task failed", "task", name, "error", err)
		metrics.HousekeepingRuns.WithLabelValues(name, "error").Inc()
		return
	}
	s.Logger.Debug("housekeeping task completed", "task", name)
	metrics.HousekeepingRuns.WithLabelValues(name, "ok").Inc()
}
