package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgressStore struct {
	mu      sync.Mutex
	updates []models.ProgressFields
	flushed []models.ProgressFields
}

func (s *fakeProgressStore) UpdateProgressFields(ctx context.Context, id uuid.UUID, p models.ProgressFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, p)
	return nil
}

func (s *fakeProgressStore) FlushProgress(ctx context.Context, id uuid.UUID, p models.ProgressFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = append(s.flushed, p)
	return nil
}

func (s *fakeProgressStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// lastPersisted returns the most recent write regardless of path.
func (s *fakeProgressStore) lastPersisted() (models.ProgressFields, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.flushed) > 0 {
		return s.flushed[len(s.flushed)-1], true
	}
	if len(s.updates) > 0 {
		return s.updates[len(s.updates)-1], true
	}
	return models.ProgressFields{}, false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (p *fakePublisher) Publish(event models.JobEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int64
		ok    bool
	}{
		{"plain H/s", "523 H/s (0.2ms)", 523, true},
		{"kilo", "3319.8 kH/s (0.65ms)", 3319800, true},
		{"mega", "1.5 MH/s (1.2ms)", 1500000, true},
		{"giga", "2.0 GH/s (3.4ms)", 2000000000, true},
		{"no unit", "3319.8", 0, false},
		{"unknown unit", "12 XH/s", 0, false},
		{"garbage", "fast", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSpeed(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		hs   int64
		want string
	}{
		{523, "523 H/s"},
		{3319800, "3.3 MH/s"},
		{45200, "45.2 kH/s"},
		{2100000000, "2.1 GH/s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSpeed(tt.hs))
	}
}

func TestReportParsesHashcatStatusBlock(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour) // throttle never elapses

	jobID := uuid.New()
	r.Begin(jobID, 2)
	defer r.Finish(jobID)

	ctx := context.Background()
	r.Report(ctx, jobID, "Speed.#1.........:  3319.8 kH/s (0.65ms)")
	r.Report(ctx, jobID, "Progress.........: 10240000/14344385 (71.39%)")
	r.Report(ctx, jobID, "Recovered........: 1/2 (50.00%) Digests")

	snap := r.Snapshot(jobID)
	assert.InDelta(t, 71.39, snap.Percentage, 0.001)
	assert.Equal(t, int64(3319800), snap.SpeedHS)
	assert.Equal(t, "3.3 MH/s", snap.Speed)
	assert.Equal(t, int64(10240000), snap.Tested)
	assert.Equal(t, 1, snap.Recovered)
	require.NotNil(t, snap.ETASeconds)
	// (14344385 - 10240000) / 3319800 H/s ≈ 1s of keyspace left.
	assert.Equal(t, int64(1), *snap.ETASeconds)
}

func TestReportBroadcastsAlwaysPersistsThrottled(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour)

	jobID := uuid.New()
	r.Begin(jobID, 1)
	defer r.Finish(jobID)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		r.Report(ctx, jobID, "Progress.........: 100/1000 (10.00%)")
	}

	assert.Equal(t, 10, pub.count(), "every update broadcasts")
	assert.LessOrEqual(t, store.count(), 1, "persistence is throttled")
}

func TestReportPersistsWhenThrottleElapsed(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Nanosecond)

	jobID := uuid.New()
	r.Begin(jobID, 1)
	defer r.Finish(jobID)

	ctx := context.Background()
	r.Report(ctx, jobID, "Progress.........: 100/1000 (10.00%)")
	time.Sleep(time.Millisecond)
	r.Report(ctx, jobID, "Progress.........: 200/1000 (20.00%)")

	assert.Equal(t, 2, store.count())
}

func TestStageAlwaysPersists(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour)

	jobID := uuid.New()
	r.Begin(jobID, 1)
	defer r.Finish(jobID)

	dict := "rockyou.txt"
	r.Stage(context.Background(), jobID, "cracking: rockyou.txt", &dict)

	require.Equal(t, 1, store.count(), "stage transitions bypass the throttle")
	require.NotNil(t, store.updates[0].CurrentDictionary)
	assert.Equal(t, "rockyou.txt", *store.updates[0].CurrentDictionary)
	assert.Equal(t, 1, pub.count())
}

func TestReportIgnoresUnknownLines(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Nanosecond)

	jobID := uuid.New()
	r.Begin(jobID, 1)
	defer r.Finish(jobID)

	r.Report(context.Background(), jobID, "Session..........: hashcat")
	r.Report(context.Background(), jobID, "Hash.Mode........: 22000")
	r.Report(context.Background(), jobID, "")

	assert.Zero(t, pub.count())
	assert.Zero(t, store.count())
}

func TestReportUnknownJobIsIgnored(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Nanosecond)

	r.Report(context.Background(), uuid.New(), "Progress.........: 1/2 (50.00%)")
	assert.Zero(t, pub.count())
}

func TestReportPercentRatchets(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour)

	jobID := uuid.New()
	r.Begin(jobID, 0)
	defer r.Finish(jobID)

	ctx := context.Background()
	r.ReportPercent(ctx, jobID, 40)
	r.ReportPercent(ctx, jobID, 30) // stale update must not move progress back

	snap := r.Snapshot(jobID)
	assert.Equal(t, float64(40), snap.Percentage)
}

func TestFlushPersistsFinalSnapshot(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour) // throttle never elapses

	jobID := uuid.New()
	r.Begin(jobID, 1)
	defer r.Finish(jobID)

	ctx := context.Background()
	r.Stage(ctx, jobID, "analyzing capture", nil)
	r.ReportPercent(ctx, jobID, 100)

	// Without a flush a job finishing inside the persist interval keeps its
	// durable progress at the stage write's value.
	last, ok := store.lastPersisted()
	require.True(t, ok)
	assert.Zero(t, last.Progress)

	r.Flush(ctx, jobID)

	last, ok = store.lastPersisted()
	require.True(t, ok)
	assert.Equal(t, float64(100), last.Progress)
}

func TestFlushCarriesItemsCracked(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour)

	jobID := uuid.New()
	r.Begin(jobID, 3)
	defer r.Finish(jobID)

	r.SetItemsCracked(jobID, 2)
	r.Flush(context.Background(), jobID)

	last, ok := store.lastPersisted()
	require.True(t, ok)
	assert.Equal(t, 2, last.ItemsCracked)
	assert.Equal(t, 3, last.HashCount)
}

func TestFlushUnknownJobIsIgnored(t *testing.T) {
	store := &fakeProgressStore{}
	pub := &fakePublisher{}
	r := NewProgressReporter(store, pub, time.Hour)

	r.Flush(context.Background(), uuid.New())

	_, ok := store.lastPersisted()
	assert.False(t, ok)
}

func TestParseProgressValueWithoutPercent(t *testing.T) {
	tested, total, pct, ok := parseProgressValue("500/2000")
	require.True(t, ok)
	assert.Equal(t, int64(500), tested)
	assert.Equal(t, int64(2000), total)
	assert.Equal(t, float64(25), pct)
}
