// Package jobs holds the job state machine and the error taxonomy shared by
// the scheduler, the worker runners and the control surface. Transition
// validation is pure: it inspects and mutates a Job record and knows nothing
// about transports or storage.
package jobs

import (
	"time"

	"github.com/doomedramen/autopwn/internal/models"
)

// transitions maps each status to the set of statuses it may move to through
// the normal triggers. Restart is handled separately: it is legal from any
// state, including terminal ones.
var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusPaused, models.JobStatusStopped},
	models.JobStatusProcessing: {models.JobStatusPaused, models.JobStatusStopped, models.JobStatusCompleted, models.JobStatusFailed},
	models.JobStatusPaused:     {models.JobStatusPending, models.JobStatusStopped},
	models.JobStatusCompleted:  {},
	models.JobStatusFailed:     {},
	models.JobStatusStopped:    {},
}

// CanTransition reports whether the graph allows moving from one status to
// another via a normal trigger.
func CanTransition(from, to models.JobStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Pause applies a pause request to the job. Pausing an already-paused job is a
// no-op that succeeds. Progress fields are preserved unchanged.
func Pause(job *models.Job) error {
	if job.Status == models.JobStatusPaused {
		return nil
	}
	if !CanTransition(job.Status, models.JobStatusPaused) {
		return Validationf("cannot pause job in status %q", job.Status)
	}
	job.Status = models.JobStatusPaused
	job.Paused = true
	return nil
}

// Resume returns a paused job to the claimable pool. Resuming a job that is
// already pending is a no-op that succeeds. Progress fields are preserved.
func Resume(job *models.Job) error {
	if job.Status == models.JobStatusPending && !job.Paused {
		return nil
	}
	if job.Status != models.JobStatusPaused {
		return Validationf("cannot resume job in status %q", job.Status)
	}
	job.Status = models.JobStatusPending
	job.Paused = false
	return nil
}

// Stop terminally stops a job from any non-terminal state, stamping
// completedAt and preserving all progress fields at their last known values.
// Stopping an already-stopped job is a no-op that succeeds.
func Stop(job *models.Job, now time.Time) error {
	if job.Status == models.JobStatusStopped {
		return nil
	}
	if job.Status.IsTerminal() {
		return Validationf("cannot stop job in status %q", job.Status)
	}
	job.Status = models.JobStatusStopped
	job.Paused = false
	job.CompletedAt = &now
	return nil
}

// Claim moves a pending, unpaused job to processing and stamps startedAt.
// The repository performs the same transition atomically; this form exists for
// validation and for exercising the state machine directly.
func Claim(job *models.Job, now time.Time) error {
	if job.Status != models.JobStatusPending || job.Paused {
		return Validationf("cannot claim job in status %q (paused=%v)", job.Status, job.Paused)
	}
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	return nil
}

// Complete marks a processing job as successfully finished.
func Complete(job *models.Job, now time.Time) error {
	if job.Status != models.JobStatusProcessing {
		return Validationf("cannot complete job in status %q", job.Status)
	}
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	return nil
}

// Fail marks a processing job as unrecoverably failed, preserving partial
// progress and recording the error message.
func Fail(job *models.Job, message string, now time.Time) error {
	if job.Status != models.JobStatusProcessing {
		return Validationf("cannot fail job in status %q", job.Status)
	}
	job.Status = models.JobStatusFailed
	job.ErrorMessage.String = message
	job.ErrorMessage.Valid = message != ""
	job.CompletedAt = &now
	return nil
}

// Restart returns a job to pending from any state, terminal included, and
// resets every progress field to its zero value. Configuration (name,
// options, dictionary and capture associations) is untouched.
func Restart(job *models.Job) {
	job.Status = models.JobStatusPending
	job.Paused = false
	job.Progress = 0
	job.ItemsCracked = 0
	job.HashCount = 0
	job.Speed = nil
	job.ETASeconds = nil
	job.CurrentDictionary = nil
	job.ErrorMessage.String = ""
	job.ErrorMessage.Valid = false
	job.StartedAt = nil
	job.CompletedAt = nil
}
