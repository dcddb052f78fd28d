package models

import (
	"time"

	"github.com/google/uuid"
)

// Capture is an uploaded wireless traffic file containing target handshakes.
type Capture struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Filename     string     `json:"filename"`
	FilePath     string     `json:"-"`
	FileSize     int64      `json:"file_size"`
	ESSID        *string    `json:"essid,omitempty"`
	BSSID        *string    `json:"bssid,omitempty"`
	HashFilePath *string    `json:"-"` // canonical hash file produced by analysis
	HashCount    int        `json:"hash_count"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Network is one wireless network extracted from a capture file.
type Network struct {
	ESSID string `json:"essid"`
	BSSID string `json:"bssid"`
}

// CrackResult is a recovered plaintext for a network hash.
type CrackResult struct {
	ID        uuid.UUID  `json:"id"`
	JobID     uuid.UUID  `json:"job_id"`
	JobItemID *uuid.UUID `json:"job_item_id,omitempty"`
	ESSID     string     `json:"essid"`
	BSSID     string     `json:"bssid"`
	Password  string     `json:"password"`
	CreatedAt time.Time  `json:"created_at"`
}
