package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressUpdate is the normalized shape produced from a raw tool status line.
type ProgressUpdate struct {
	Percentage float64 `json:"percentage"`
	// SpeedHS is the hash rate in H/s; Speed is the canonical display form
	// (H/s, kH/s, MH/s, GH/s).
	SpeedHS    int64  `json:"speed_hs"`
	Speed      string `json:"speed"`
	ETASeconds *int64 `json:"eta_seconds,omitempty"`
	Recovered  int    `json:"recovered"`
	Tested     int64  `json:"tested"`
	Stage      string `json:"stage,omitempty"`
}

// JobEvent is published on the notification bus for every normalized progress
// update and every state transition.
type JobEvent struct {
	JobID    uuid.UUID        `json:"job_id"`
	Status   JobStatus        `json:"status"`
	Progress float64          `json:"progress"`
	Metadata JobEventMetadata `json:"metadata"`
	At       time.Time        `json:"at"`
}

// JobEventMetadata carries the live display fields for subscribers.
type JobEventMetadata struct {
	Speed           string `json:"speed,omitempty"`
	ETASeconds      *int64 `json:"eta_seconds,omitempty"`
	Stage           string `json:"stage,omitempty"`
	PasswordsTested int64  `json:"passwords_tested"`
	Recovered       int    `json:"recovered"`
}
