package models

import (
	"time"

	"github.com/google/uuid"
)

// DictionaryStatus represents the readiness of a wordlist.
const (
	DictionaryStatusPending    = "pending"    // registered, not yet verified/counted
	DictionaryStatusProcessing = "processing" // being generated or counted
	DictionaryStatusReady      = "ready"      // usable by crack jobs
	DictionaryStatusError      = "error"
)

// Dictionary is a wordlist resource. Many jobs may reference the same
// dictionary concurrently; it is read-only once marked ready.
type Dictionary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"-"` // internal path, not exposed to the API
	FileSize  int64     `json:"file_size"`
	WordCount int64     `json:"word_count"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
