package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies which worker specialization executes a job.
type JobType string

const (
	JobTypeCapture    JobType = "capture"    // analyze an uploaded capture file
	JobTypeDictionary JobType = "dictionary" // generate a wordlist
	JobTypeCrack      JobType = "crack"      // run hashcat against a hash file
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeCapture, JobTypeDictionary, JobTypeCrack:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusStopped    JobStatus = "stopped"
)

// IsTerminal reports whether the status is one a worker never leaves on its own.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusStopped
}

// Job is a user-submitted unit of work.
//
// Progress fields (progress, speed, eta_seconds, items_cracked, hash_count,
// current_dictionary) are written only by the worker that holds the claim.
// Control fields (priority, paused) are written only by the control surface.
// The repository enforces this split with field-scoped updates.
type Job struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Name              string          `json:"name"`
	JobType           JobType         `json:"job_type"`
	Status            JobStatus       `json:"status"`
	Priority          int             `json:"priority"`
	Paused            bool            `json:"paused"` // invariant: true iff Status == paused
	BatchMode         bool            `json:"batch_mode"`
	ItemsTotal        int             `json:"items_total"`
	ItemsCracked      int             `json:"items_cracked"`
	Progress          float64         `json:"progress"` // 0-100, non-decreasing while processing
	Speed             *string         `json:"speed,omitempty"`
	ETASeconds        *int64          `json:"eta_seconds,omitempty"`
	CurrentDictionary *string         `json:"current_dictionary,omitempty"`
	HashCount         int             `json:"hash_count"`
	ErrorMessage      sql.NullString  `json:"error_message"`
	Logs              string          `json:"logs"`
	Options           json.RawMessage `json:"options"`
	HashFilePath      *string         `json:"hash_file_path,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	HeartbeatAt       *time.Time      `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ProgressFields is the worker-owned slice of a job row, persisted as a unit
// so progress writes can never clobber concurrent control-field changes.
type ProgressFields struct {
	Progress          float64
	Speed             *string
	ETASeconds        *int64
	ItemsCracked      int
	HashCount         int
	CurrentDictionary *string
}

// JobDictionaryStatus tracks how far a crack job has gotten with one dictionary.
type JobDictionaryStatus string

const (
	JobDictionaryPending    JobDictionaryStatus = "pending"
	JobDictionaryProcessing JobDictionaryStatus = "processing"
	JobDictionaryCompleted  JobDictionaryStatus = "completed"
)

// JobDictionary is the join record between a crack job and a dictionary.
// Position fixes the iteration order for the cracking runner.
type JobDictionary struct {
	JobID        uuid.UUID           `json:"job_id"`
	DictionaryID uuid.UUID           `json:"dictionary_id"`
	Position     int                 `json:"position"`
	Status       JobDictionaryStatus `json:"status"`
}
