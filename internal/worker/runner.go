// Package worker implements the three job runner specializations and the
// supervisor that owns them. A runner claims one job at a time, drives one
// external tool process per job (or per batch item), streams tool output into
// the progress reporter and maps the exit outcome onto the job record.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doomedramen/autopwn/internal/config"
	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
)

// controlCheckInterval is how often a running job re-reads its record to
// observe pause/stop requests and stamp its claim heartbeat.
const controlCheckInterval = 2 * time.Second

// Runner executes claimed jobs of one type.
type Runner interface {
	Type() models.JobType
	Run(ctx context.Context, job *models.Job) error
}

// Deps bundles what every runner needs.
type Deps struct {
	Cfg         *config.Config
	JobRepo     *repository.JobRepository
	ItemRepo    *repository.JobItemRepository
	CaptureRepo *repository.CaptureRepository
	ResultRepo  *repository.CrackResultRepository
	Reporter    *services.ProgressReporter
	Publisher   services.EventPublisher
	Potfile     *services.PotfileService
	Wordlists   WordlistFinalizer
}

// WordlistFinalizer is what the dictionary runner needs from the wordlist
// manager.
type WordlistFinalizer interface {
	PathFor(name string) string
	Finalize(ctx context.Context, id uuid.UUID, path string) (int64, error)
}

// Supervisor owns every runner instance and is the only place that observes
// their termination. It spawns the configured number of polling loops per
// worker type and shuts them down together.
type Supervisor struct {
	scheduler *services.Scheduler
	deps      Deps
	runners   []Runner
	wg        sync.WaitGroup
}

// NewSupervisor creates a supervisor over the given runners.
func NewSupervisor(scheduler *services.Scheduler, deps Deps, runners ...Runner) *Supervisor {
	return &Supervisor{scheduler: scheduler, deps: deps, runners: runners}
}

// Start launches the polling loops. It returns immediately; use Wait to block
// until all loops have drained after ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	for _, runner := range s.runners {
		instances := s.deps.Cfg.ConcurrencyLimit(string(runner.Type()))
		for i := 0; i < instances; i++ {
			s.wg.Add(1)
			go func(r Runner, slot int) {
				defer s.wg.Done()
				s.runLoop(ctx, r, slot)
			}(runner, i)
		}
		debug.Info("Started %d %s runner(s)", instances, runner.Type())
	}
	s.startHeartbeat(ctx)
}

// Wait blocks until every runner loop has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) runLoop(ctx context.Context, runner Runner, slot int) {
	ticker := time.NewTicker(s.deps.Cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			debug.Info("%s runner %d stopping", runner.Type(), slot)
			return
		case <-ticker.C:
			job, err := s.scheduler.ClaimNext(ctx, runner.Type())
			if err != nil {
				debug.Error("%s runner %d claim failed: %v", runner.Type(), slot, err)
				continue
			}
			if job == nil {
				continue
			}
			s.execute(ctx, runner, job)
		}
	}
}

// execute drives one claimed job to a terminal or parked state.
func (s *Supervisor) execute(ctx context.Context, runner Runner, job *models.Job) {
	debug.Log("Executing job", map[string]interface{}{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"name":     job.Name,
	})

	var runCtx context.Context
	var cancel context.CancelFunc
	if limit := s.deps.Cfg.MaxJobRuntime; limit > 0 {
		runCtx, cancel = context.WithTimeout(ctx, limit)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stopWatch := s.watchControl(runCtx, job, cancel)
	defer stopWatch()

	s.deps.Reporter.Begin(job.ID, job.HashCount)
	defer s.deps.Reporter.Finish(job.ID)

	runErr := runner.Run(runCtx, job)
	s.finish(ctx, job, runCtx, runErr)
}

// finish maps a runner outcome onto the job record. The control surface may
// have paused, stopped or restarted the job while the runner held it; those
// transitions win and the worker leaves the record alone.
func (s *Supervisor) finish(ctx context.Context, job *models.Job, runCtx context.Context, runErr error) {
	current, err := s.deps.JobRepo.GetByID(ctx, job.ID)
	if err != nil {
		debug.Error("Failed to re-read job %s after run: %v", job.ID, err)
		return
	}

	// Persist the final snapshot before any terminal transition freezes the
	// row. Jobs shorter than the persist interval have never hit the
	// throttled path, and a batch job's last crack increment may still be
	// unwritten. Skipped when this runner no longer owns the row: a restart
	// may already have reset it or handed it to a fresh run.
	if sameRun(job, current) &&
		(current.Status == models.JobStatusProcessing || current.Status == models.JobStatusPaused) {
		s.deps.Reporter.Flush(ctx, job.ID)
	}

	if current.Status != models.JobStatusProcessing || !sameRun(job, current) {
		debug.Info("Job %s left processing via control surface (now %s), worker yields", job.ID, current.Status)
		return
	}

	switch {
	case runErr == nil:
		if err := s.deps.JobRepo.MarkCompleted(ctx, job.ID); err != nil {
			debug.Error("Failed to mark job %s completed: %v", job.ID, err)
			return
		}
		s.publishTransition(ctx, job.ID, models.JobStatusCompleted)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// Run-time limit exceeded: forced stop, progress preserved.
		timeoutErr := &jobs.TimeoutError{Limit: s.deps.Cfg.MaxJobRuntime}
		if _, err := s.deps.JobRepo.MarkStopped(ctx, job.ID); err != nil {
			debug.Error("Failed to force-stop job %s: %v", job.ID, err)
			return
		}
		_ = s.deps.JobRepo.AppendLog(ctx, job.ID, timeoutErr.Error())
		s.publishTransition(ctx, job.ID, models.JobStatusStopped)
	case runCtx.Err() != nil:
		// Parent shutdown cancelled the run while the job record still says
		// processing; leave the claim to the stalled sweep for re-claim.
		debug.Warning("Job %s interrupted by shutdown, leaving for re-claim", job.ID)
	default:
		message := runErr.Error()
		if err := s.deps.JobRepo.MarkFailed(ctx, job.ID, message); err != nil {
			debug.Error("Failed to mark job %s failed: %v", job.ID, err)
			return
		}
		_ = s.deps.JobRepo.AppendLog(ctx, job.ID, "error: "+message)
		s.publishTransition(ctx, job.ID, models.JobStatusFailed)
	}
}

func (s *Supervisor) publishTransition(ctx context.Context, jobID uuid.UUID, status models.JobStatus) {
	current, err := s.deps.JobRepo.GetByID(ctx, jobID)
	progress := 0.0
	recovered := 0
	if err == nil {
		progress = current.Progress
		recovered = current.ItemsCracked
	}
	s.deps.Publisher.Publish(models.JobEvent{
		JobID:    jobID,
		Status:   status,
		Progress: progress,
		Metadata: models.JobEventMetadata{Recovered: recovered},
	})
}

// sameRun reports whether the persisted row still belongs to the run this
// worker claimed. A restart resets started_at and a re-claim restamps it, so
// matching timestamps are the ownership proof.
func sameRun(claimed, current *models.Job) bool {
	return claimed.StartedAt != nil && current.StartedAt != nil &&
		claimed.StartedAt.Equal(*current.StartedAt)
}

// watchControl polls the job record while a runner works and cancels the run
// context as soon as the control surface moves the job out of processing or
// hands it to a new run. The same loop stamps the claim heartbeat. Returns a
// stop function.
func (s *Supervisor) watchControl(ctx context.Context, job *models.Job, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(controlCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				current, err := s.deps.JobRepo.GetByID(ctx, job.ID)
				if err != nil {
					debug.Warning("Control watch failed to read job %s: %v", job.ID, err)
					continue
				}
				if current.Status != models.JobStatusProcessing || !sameRun(job, current) {
					debug.Info("Control watch: job %s moved to %s, cancelling run", job.ID, current.Status)
					cancel()
					return
				}
				if err := s.deps.JobRepo.TouchHeartbeat(ctx, job.ID); err != nil {
					debug.Warning("Failed to heartbeat job %s: %v", job.ID, err)
				}
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
