package worker

import (
	"testing"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSameRun(t *testing.T) {
	start := time.Now()
	later := start.Add(30 * time.Second)

	tests := []struct {
		name    string
		claimed *time.Time
		current *time.Time
		want    bool
	}{
		{"matching start", &start, &start, true},
		{"re-claimed with new start", &start, &later, false},
		{"restart reset started_at", &start, nil, false},
		{"claimed row never started", nil, &start, false},
		{"both unset", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claimed := &models.Job{StartedAt: tt.claimed}
			current := &models.Job{StartedAt: tt.current}
			assert.Equal(t, tt.want, sameRun(claimed, current))
		})
	}
}
