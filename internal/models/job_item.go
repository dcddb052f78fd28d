package models

import (
	"time"

	"github.com/google/uuid"
)

// JobItemStatus tracks one capture inside a batch job.
type JobItemStatus string

const (
	JobItemStatusPending    JobItemStatus = "pending"
	JobItemStatusProcessing JobItemStatus = "processing"
	JobItemStatusCompleted  JobItemStatus = "completed"
	JobItemStatusFailed     JobItemStatus = "failed"
)

// JobItem is one capture's sub-unit of work within a batch job. It is owned
// exclusively by its parent job and mutated only by the worker processing it.
type JobItem struct {
	ID           uuid.UUID     `json:"id"`
	JobID        uuid.UUID     `json:"job_id"`
	CaptureID    uuid.UUID     `json:"capture_id"`
	Filename     string        `json:"filename"`
	ESSID        *string       `json:"essid,omitempty"`
	BSSID        *string       `json:"bssid,omitempty"`
	HashFilePath *string       `json:"-"`
	Status       JobItemStatus `json:"status"`
	Password     *string       `json:"password,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ItemStatusCounts is the per-status breakdown of a batch job's items,
// used to derive the parent job's aggregate state.
type ItemStatusCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	// CrackedWithPassword counts completed items that recovered a password.
	CrackedWithPassword int
}

// Total returns the number of items across all statuses.
func (c ItemStatusCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}
