package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Job options are a tagged union keyed by JobType. Each variant is validated
// when the job is enqueued, never at consumption time, so runners can trust
// the payload they claim.

// CaptureOptions configures a capture-processing job.
type CaptureOptions struct {
	CaptureID uuid.UUID `json:"capture_id"`
}

// GenerateOptions configures a dictionary-generation job. DictionaryID points
// at the pending dictionary record the job fills in when generation finishes.
type GenerateOptions struct {
	DictionaryID uuid.UUID `json:"dictionary_id"`
	Name         string    `json:"name"`
	BaseWords    []string  `json:"base_words,omitempty"`
	Pattern      string    `json:"pattern,omitempty"`
	MinLength    int       `json:"min_length"`
	MaxLength    int       `json:"max_length"`
	Charset      string    `json:"charset,omitempty"`
}

// CrackOptions configures a cracking job.
type CrackOptions struct {
	CaptureIDs      []uuid.UUID `json:"capture_ids"`
	DictionaryIDs   []uuid.UUID `json:"dictionary_ids"`
	AttackMode      int         `json:"attack_mode"`
	HashType        int         `json:"hash_type"`
	WorkloadProfile int         `json:"workload_profile"`
}

// ValidateOptions checks a raw options payload against its job type and
// returns the re-encoded canonical form.
func ValidateOptions(jobType JobType, raw json.RawMessage) (json.RawMessage, error) {
	switch jobType {
	case JobTypeCapture:
		var opts CaptureOptions
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("invalid capture options: %w", err)
		}
		if opts.CaptureID == uuid.Nil {
			return nil, fmt.Errorf("capture options require a capture_id")
		}
		return json.Marshal(opts)
	case JobTypeDictionary:
		var opts GenerateOptions
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("invalid generate options: %w", err)
		}
		if opts.DictionaryID == uuid.Nil {
			return nil, fmt.Errorf("generate options require a dictionary_id")
		}
		if opts.Name == "" {
			return nil, fmt.Errorf("generate options require a name")
		}
		if opts.MinLength <= 0 || opts.MaxLength < opts.MinLength {
			return nil, fmt.Errorf("generate options have invalid length bounds %d-%d", opts.MinLength, opts.MaxLength)
		}
		return json.Marshal(opts)
	case JobTypeCrack:
		var opts CrackOptions
		if err := json.Unmarshal(raw, &opts); err != nil {
			return nil, fmt.Errorf("invalid crack options: %w", err)
		}
		if len(opts.CaptureIDs) == 0 {
			return nil, fmt.Errorf("crack options require at least one capture")
		}
		if len(opts.DictionaryIDs) == 0 {
			return nil, fmt.Errorf("crack options require at least one dictionary")
		}
		if opts.WorkloadProfile < 0 || opts.WorkloadProfile > 4 {
			return nil, fmt.Errorf("workload profile must be 0-4, got %d", opts.WorkloadProfile)
		}
		return json.Marshal(opts)
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
}

// CaptureOptionsFrom decodes capture options from a job payload.
func CaptureOptionsFrom(raw json.RawMessage) (*CaptureOptions, error) {
	var opts CaptureOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode capture options: %w", err)
	}
	return &opts, nil
}

// GenerateOptionsFrom decodes dictionary-generation options from a job payload.
func GenerateOptionsFrom(raw json.RawMessage) (*GenerateOptions, error) {
	var opts GenerateOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode generate options: %w", err)
	}
	return &opts, nil
}

// CrackOptionsFrom decodes crack options from a job payload.
func CrackOptionsFrom(raw json.RawMessage) (*CrackOptions, error) {
	var opts CrackOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode crack options: %w", err)
	}
	return &opts, nil
}
