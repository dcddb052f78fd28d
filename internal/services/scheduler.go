package services

import (
	"context"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SchedulerStore is the slice of the job repository the scheduler drives.
type SchedulerStore interface {
	ClaimNext(ctx context.Context, jobType models.JobType, concurrencyLimit int) (*models.Job, error)
	RequeueStalled(ctx context.Context, cutoff time.Time) (int64, error)
	ListRuntimeExceeded(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
	MarkStopped(ctx context.Context, id uuid.UUID) (int64, error)
}

// SchedulerConfig carries the limits the scheduler enforces.
type SchedulerConfig struct {
	// Limits maps worker type to its maximum concurrent processing jobs.
	Limits map[models.JobType]int
	// StalledAfter is the heartbeat age beyond which a processing job is
	// treated as abandoned and returned to the pending pool.
	StalledAfter time.Duration
	// MaxJobRuntime forces a stop on jobs processing longer than this.
	MaxJobRuntime time.Duration
}

// Scheduler assigns pending jobs to polling worker runners and supervises
// claim liveness. Claims are atomic conditional transitions performed by the
// store; the scheduler only decides eligibility and enforces limits.
type Scheduler struct {
	store     SchedulerStore
	publisher EventPublisher
	cfg       SchedulerConfig
	cron      *cron.Cron
}

// NewScheduler creates a scheduler over the given store.
func NewScheduler(store SchedulerStore, publisher EventPublisher, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ClaimNext selects and atomically claims the next eligible job for a worker
// type, or returns nil when nothing is claimable. Losing a claim race is not
// an error: the store returns no row and the runner retries on its next poll.
func (s *Scheduler) ClaimNext(ctx context.Context, jobType models.JobType) (*models.Job, error) {
	limit := s.cfg.Limits[jobType]
	if limit <= 0 {
		return nil, nil
	}
	job, err := s.store.ClaimNext(ctx, jobType, limit)
	if err != nil {
		return nil, err
	}
	if job != nil {
		s.publisher.Publish(models.JobEvent{
			JobID:    job.ID,
			Status:   models.JobStatusProcessing,
			Progress: job.Progress,
		})
	}
	return job, nil
}

// Start begins the background sweeps: stalled-claim recovery and run-time
// limit enforcement. Both run on a cron schedule until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("@every 30s", func() { s.sweepStalled(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1m", func() { s.enforceRuntimeLimit(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	debug.Info("Scheduler sweeps started (stalled after %v, max runtime %v)",
		s.cfg.StalledAfter, s.cfg.MaxJobRuntime)
	return nil
}

// Stop halts the background sweeps.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// sweepStalled returns abandoned claims to the pending pool. A crashed or
// restarted worker therefore loses no work: its job becomes claimable again
// once its heartbeat goes stale.
func (s *Scheduler) sweepStalled(ctx context.Context) {
	if s.cfg.StalledAfter <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.cfg.StalledAfter)
	requeued, err := s.store.RequeueStalled(ctx, cutoff)
	if err != nil {
		debug.Error("Stalled job sweep failed: %v", err)
		return
	}
	if requeued > 0 {
		debug.Warning("Requeued %d stalled jobs (heartbeat older than %v)", requeued, s.cfg.StalledAfter)
	}
}

// enforceRuntimeLimit force-stops jobs that exceed the configured run time.
func (s *Scheduler) enforceRuntimeLimit(ctx context.Context) {
	if s.cfg.MaxJobRuntime <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.cfg.MaxJobRuntime)
	expired, err := s.store.ListRuntimeExceeded(ctx, cutoff)
	if err != nil {
		debug.Error("Runtime limit sweep failed: %v", err)
		return
	}
	for _, job := range expired {
		rows, err := s.store.MarkStopped(ctx, job.ID)
		if err != nil {
			debug.Error("Failed to force-stop job %s: %v", job.ID, err)
			continue
		}
		if rows > 0 {
			debug.Warning("Force-stopped job %s after exceeding run-time limit %v", job.ID, s.cfg.MaxJobRuntime)
			s.publisher.Publish(models.JobEvent{
				JobID:    job.ID,
				Status:   models.JobStatusStopped,
				Progress: job.Progress,
			})
		}
	}
}
