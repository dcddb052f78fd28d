package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
)

// ProgressStore is the slice of the job store the reporter persists through.
type ProgressStore interface {
	UpdateProgressFields(ctx context.Context, id uuid.UUID, p models.ProgressFields) error
	FlushProgress(ctx context.Context, id uuid.UUID, p models.ProgressFields) error
}

// EventPublisher broadcasts normalized updates to live subscribers.
type EventPublisher interface {
	Publish(event models.JobEvent)
}

type jobProgress struct {
	update            models.ProgressUpdate
	hashCount         int
	itemsCracked      int
	currentDictionary *string
	lastPersist       time.Time
}

// ProgressReporter parses raw tool status lines into a normalized progress
// shape. Every normalized update is broadcast immediately and unconditionally;
// persistence to the job store is throttled to the configured interval, except
// for stage transitions, which always persist.
type ProgressReporter struct {
	store        ProgressStore
	publisher    EventPublisher
	persistEvery time.Duration

	mu   sync.Mutex
	jobs map[uuid.UUID]*jobProgress
}

// NewProgressReporter creates a reporter that persists at most once per
// persistEvery per job.
func NewProgressReporter(store ProgressStore, publisher EventPublisher, persistEvery time.Duration) *ProgressReporter {
	return &ProgressReporter{
		store:        store,
		publisher:    publisher,
		persistEvery: persistEvery,
		jobs:         make(map[uuid.UUID]*jobProgress),
	}
}

// Begin starts tracking a job, recording the number of target hashes.
func (r *ProgressReporter) Begin(jobID uuid.UUID, hashCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[jobID] = &jobProgress{hashCount: hashCount}
}

// Finish drops the tracking state for a job.
func (r *ProgressReporter) Finish(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Snapshot returns the last normalized update for a job.
func (r *ProgressReporter) Snapshot(jobID uuid.UUID) models.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jp, ok := r.jobs[jobID]; ok {
		return jp.update
	}
	return models.ProgressUpdate{}
}

// Stage records a stage transition (e.g. starting a dictionary pass). Stage
// changes are always persisted immediately, bypassing the throttle.
func (r *ProgressReporter) Stage(ctx context.Context, jobID uuid.UUID, stage string, currentDictionary *string) {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		jp = &jobProgress{}
		r.jobs[jobID] = jp
	}
	jp.update.Stage = stage
	jp.currentDictionary = currentDictionary
	jp.lastPersist = time.Now()
	fields := r.fieldsLocked(jp)
	update := jp.update
	r.mu.Unlock()

	if err := r.store.UpdateProgressFields(ctx, jobID, fields); err != nil {
		debug.Error("Failed to persist stage transition for job %s: %v", jobID, err)
	}
	r.broadcast(jobID, update)
}

// Flush persists the current snapshot immediately, regardless of the
// throttle. The supervisor calls it when a run ends; without it a job shorter
// than the persist interval would finish with its durable progress stuck at
// the last throttled write.
func (r *ProgressReporter) Flush(ctx context.Context, jobID uuid.UUID) {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	jp.lastPersist = time.Now()
	fields := r.fieldsLocked(jp)
	r.mu.Unlock()

	if err := r.store.FlushProgress(ctx, jobID, fields); err != nil {
		debug.Error("Failed to flush final progress for job %s: %v", jobID, err)
	}
}

// SetItemsCracked updates the batch crack counter carried with progress writes.
func (r *ProgressReporter) SetItemsCracked(jobID uuid.UUID, itemsCracked int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jp, ok := r.jobs[jobID]; ok {
		jp.itemsCracked = itemsCracked
	}
}

// Report parses one raw status line from the cracking tool. Unrecognized lines
// are ignored. Recognized lines update the normalized snapshot, broadcast it
// immediately, and persist it if the throttle interval has elapsed.
func (r *ProgressReporter) Report(ctx context.Context, jobID uuid.UUID, rawLine string) {
	parsed := parseStatusLine(rawLine)
	if !parsed {
		return
	}

	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	applyStatusLine(&jp.update, rawLine)

	now := time.Now()
	persist := now.Sub(jp.lastPersist) >= r.persistEvery
	if persist {
		jp.lastPersist = now
	}
	fields := r.fieldsLocked(jp)
	update := jp.update
	r.mu.Unlock()

	if persist {
		if err := r.store.UpdateProgressFields(ctx, jobID, fields); err != nil {
			debug.Error("Failed to persist progress for job %s: %v", jobID, err)
		}
	}
	r.broadcast(jobID, update)
}

// ReportPercent records a bare completion percentage for tools that report no
// speed or keyspace, following the same broadcast-always, persist-throttled
// rule as Report.
func (r *ProgressReporter) ReportPercent(ctx context.Context, jobID uuid.UUID, pct float64) {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if pct > jp.update.Percentage {
		jp.update.Percentage = pct
	}

	now := time.Now()
	persist := now.Sub(jp.lastPersist) >= r.persistEvery
	if persist {
		jp.lastPersist = now
	}
	fields := r.fieldsLocked(jp)
	update := jp.update
	r.mu.Unlock()

	if persist {
		if err := r.store.UpdateProgressFields(ctx, jobID, fields); err != nil {
			debug.Error("Failed to persist progress for job %s: %v", jobID, err)
		}
	}
	r.broadcast(jobID, update)
}

func (r *ProgressReporter) fieldsLocked(jp *jobProgress) models.ProgressFields {
	fields := models.ProgressFields{
		Progress:          jp.update.Percentage,
		ItemsCracked:      jp.itemsCracked,
		HashCount:         jp.hashCount,
		CurrentDictionary: jp.currentDictionary,
	}
	if jp.update.SpeedHS > 0 {
		speed := jp.update.Speed
		fields.Speed = &speed
	}
	fields.ETASeconds = jp.update.ETASeconds
	return fields
}

func (r *ProgressReporter) broadcast(jobID uuid.UUID, update models.ProgressUpdate) {
	r.publisher.Publish(models.JobEvent{
		JobID:    jobID,
		Status:   models.JobStatusProcessing,
		Progress: update.Percentage,
		Metadata: models.JobEventMetadata{
			Speed:           update.Speed,
			ETASeconds:      update.ETASeconds,
			Stage:           update.Stage,
			PasswordsTested: update.Tested,
			Recovered:       update.Recovered,
		},
	})
}

// parseStatusLine reports whether the line carries progress information.
func parseStatusLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "Progress") ||
		strings.HasPrefix(trimmed, "Speed.#") ||
		strings.HasPrefix(trimmed, "Recovered")
}

// applyStatusLine folds one recognized hashcat status line into the update.
//
// The tool emits blocks like:
//
//	Speed.#1.........:  3319.8 kH/s (0.65ms)
//	Progress.........: 10240000/14344385 (71.39%)
//	Recovered........: 1/2 (50.00%) Digests
func applyStatusLine(update *models.ProgressUpdate, line string) {
	trimmed := strings.TrimSpace(line)
	idx := strings.Index(trimmed, ":")
	if idx < 0 {
		return
	}
	key := strings.TrimRight(trimmed[:idx], ".")
	value := strings.TrimSpace(trimmed[idx+1:])

	switch {
	case key == "Progress":
		tested, total, pct, ok := parseProgressValue(value)
		if !ok {
			return
		}
		update.Tested = tested
		update.Percentage = pct
		if update.SpeedHS > 0 && total > tested {
			eta := (total - tested) / update.SpeedHS
			update.ETASeconds = &eta
		}
	case strings.HasPrefix(key, "Speed.#"):
		hs, ok := ParseSpeed(value)
		if !ok {
			return
		}
		// Per-device lines replace the running value only for device #1 or the
		// aggregate #* line; multi-GPU boxes report the total there.
		if strings.HasPrefix(key, "Speed.#*") || strings.HasPrefix(key, "Speed.#1") {
			update.SpeedHS = hs
			update.Speed = FormatSpeed(hs)
		}
	case key == "Recovered":
		recovered, ok := parseRecoveredValue(value)
		if !ok {
			return
		}
		update.Recovered = recovered
	}
}

// parseProgressValue parses "10240000/14344385 (71.39%)".
func parseProgressValue(value string) (tested, total int64, pct float64, ok bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, 0, 0, false
	}
	parts := strings.SplitN(fields[0], "/", 2)
	if len(parts) != 2 {
		return 0, 0, 0, false
	}
	tested, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	total, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	if len(fields) > 1 {
		pctStr := strings.Trim(fields[1], "()%")
		if parsed, err := strconv.ParseFloat(pctStr, 64); err == nil {
			pct = parsed
		}
	} else if total > 0 {
		pct = float64(tested) / float64(total) * 100
	}
	return tested, total, pct, true
}

// parseRecoveredValue parses "1/2 (50.00%) Digests".
func parseRecoveredValue(value string) (int, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, false
	}
	parts := strings.SplitN(fields[0], "/", 2)
	recovered, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	return recovered, true
}

var speedUnits = map[string]float64{
	"H/s":  1,
	"kH/s": 1e3,
	"MH/s": 1e6,
	"GH/s": 1e9,
	"TH/s": 1e12,
}

// ParseSpeed converts a tool speed string like "3319.8 kH/s (0.65ms)" into H/s.
func ParseSpeed(value string) (int64, bool) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return 0, false
	}
	number, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	factor, ok := speedUnits[fields[1]]
	if !ok {
		return 0, false
	}
	return int64(number * factor), true
}

// FormatSpeed renders a hash rate in the canonical unit family.
func FormatSpeed(hs int64) string {
	switch {
	case hs >= 1e9:
		return fmt.Sprintf("%.1f GH/s", float64(hs)/1e9)
	case hs >= 1e6:
		return fmt.Sprintf("%.1f MH/s", float64(hs)/1e6)
	case hs >= 1e3:
		return fmt.Sprintf("%.1f kH/s", float64(hs)/1e3)
	default:
		return fmt.Sprintf("%d H/s", hs)
	}
}
