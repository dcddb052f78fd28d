package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOptionsCapture(t *testing.T) {
	raw, _ := json.Marshal(CaptureOptions{CaptureID: uuid.New()})
	canonical, err := ValidateOptions(JobTypeCapture, raw)
	require.NoError(t, err)

	opts, err := CaptureOptionsFrom(canonical)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, opts.CaptureID)
}

func TestValidateOptionsCaptureMissingID(t *testing.T) {
	_, err := ValidateOptions(JobTypeCapture, []byte(`{}`))
	assert.Error(t, err)
}

func TestValidateOptionsGenerate(t *testing.T) {
	tests := []struct {
		name    string
		opts    GenerateOptions
		wantErr bool
	}{
		{"valid", GenerateOptions{DictionaryID: uuid.New(), Name: "wl", MinLength: 8, MaxLength: 10}, false},
		{"missing dictionary id", GenerateOptions{Name: "wl", MinLength: 8, MaxLength: 10}, true},
		{"missing name", GenerateOptions{DictionaryID: uuid.New(), MinLength: 8, MaxLength: 10}, true},
		{"zero min length", GenerateOptions{DictionaryID: uuid.New(), Name: "wl", MaxLength: 10}, true},
		{"max below min", GenerateOptions{DictionaryID: uuid.New(), Name: "wl", MinLength: 10, MaxLength: 8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.opts)
			_, err := ValidateOptions(JobTypeDictionary, raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOptionsCrack(t *testing.T) {
	valid := CrackOptions{
		CaptureIDs:    []uuid.UUID{uuid.New()},
		DictionaryIDs: []uuid.UUID{uuid.New()},
	}
	tests := []struct {
		name    string
		mutate  func(*CrackOptions)
		wantErr bool
	}{
		{"valid", func(o *CrackOptions) {}, false},
		{"no captures", func(o *CrackOptions) { o.CaptureIDs = nil }, true},
		{"no dictionaries", func(o *CrackOptions) { o.DictionaryIDs = nil }, true},
		{"workload out of range", func(o *CrackOptions) { o.WorkloadProfile = 9 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			raw, _ := json.Marshal(opts)
			_, err := ValidateOptions(JobTypeCrack, raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOptionsUnknownType(t *testing.T) {
	_, err := ValidateOptions(JobType("mystery"), []byte(`{}`))
	assert.Error(t, err)
}

func TestValidateOptionsMalformedJSON(t *testing.T) {
	for _, jobType := range []JobType{JobTypeCapture, JobTypeDictionary, JobTypeCrack} {
		_, err := ValidateOptions(jobType, []byte(`{not json`))
		assert.Error(t, err)
	}
}
