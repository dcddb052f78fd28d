package services

import (
	"context"
	"time"

	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/robfig/cron/v3"
)

// CleanupStore is the slice of the job repository retention needs.
type CleanupStore interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService removes finished jobs past the retention window.
type CleanupService struct {
	store         CleanupStore
	retentionDays int
	cron          *cron.Cron
}

// NewCleanupService creates a cleanup service. A retention of zero days
// disables deletion entirely.
func NewCleanupService(store CleanupStore, retentionDays int) *CleanupService {
	return &CleanupService{store: store, retentionDays: retentionDays}
}

// Start schedules the nightly retention sweep.
func (s *CleanupService) Start(ctx context.Context) error {
	if s.retentionDays <= 0 {
		debug.Info("Job retention disabled, finished jobs are kept forever")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("0 3 * * *", func() { s.sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	debug.Info("Job retention sweep scheduled (keep %d days)", s.retentionDays)
	return nil
}

// Stop halts the retention sweep.
func (s *CleanupService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *CleanupService) sweep(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		debug.Error("Retention sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		debug.Info("Retention sweep removed %d finished jobs older than %d days", deleted, s.retentionDays)
	}
}
