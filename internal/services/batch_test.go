package services

import (
	"context"
	"testing"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchJobStore struct {
	jobs  map[uuid.UUID]*models.Job
	dicts map[uuid.UUID][]uuid.UUID
}

func newFakeBatchJobStore() *fakeBatchJobStore {
	return &fakeBatchJobStore{
		jobs:  make(map[uuid.UUID]*models.Job),
		dicts: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *fakeBatchJobStore) Create(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeBatchJobStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, &jobs.NotFoundError{Resource: "job", ID: id.String()}
	}
	return job, nil
}

func (s *fakeBatchJobStore) AddDictionaries(ctx context.Context, jobID uuid.UUID, dictionaryIDs []uuid.UUID) error {
	s.dicts[jobID] = dictionaryIDs
	return nil
}

type fakeBatchItemStore struct {
	items map[uuid.UUID][]*models.JobItem
}

func newFakeBatchItemStore() *fakeBatchItemStore {
	return &fakeBatchItemStore{items: make(map[uuid.UUID][]*models.JobItem)}
}

func (s *fakeBatchItemStore) CreateBatch(ctx context.Context, items []*models.JobItem) error {
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		s.items[item.JobID] = append(s.items[item.JobID], item)
	}
	return nil
}

func (s *fakeBatchItemStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobItem, error) {
	return s.items[jobID], nil
}

func (s *fakeBatchItemStore) CountByStatus(ctx context.Context, jobID uuid.UUID) (models.ItemStatusCounts, error) {
	var counts models.ItemStatusCounts
	for _, item := range s.items[jobID] {
		switch item.Status {
		case models.JobItemStatusPending:
			counts.Pending++
		case models.JobItemStatusProcessing:
			counts.Processing++
		case models.JobItemStatusCompleted:
			counts.Completed++
			if item.Password != nil {
				counts.CrackedWithPassword++
			}
		case models.JobItemStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

type fakeBatchCaptureStore struct {
	captures map[uuid.UUID]*models.Capture
}

func newFakeBatchCaptureStore(captures ...*models.Capture) *fakeBatchCaptureStore {
	s := &fakeBatchCaptureStore{captures: make(map[uuid.UUID]*models.Capture)}
	for _, c := range captures {
		s.captures[c.ID] = c
	}
	return s
}

func (s *fakeBatchCaptureStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Capture, error) {
	var result []*models.Capture
	for _, id := range ids {
		if c, ok := s.captures[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

type fakeBatchDictStore struct {
	dicts map[uuid.UUID]*models.Dictionary
}

func newFakeBatchDictStore(dicts ...*models.Dictionary) *fakeBatchDictStore {
	s := &fakeBatchDictStore{dicts: make(map[uuid.UUID]*models.Dictionary)}
	for _, d := range dicts {
		s.dicts[d.ID] = d
	}
	return s
}

func (s *fakeBatchDictStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Dictionary, error) {
	var result []*models.Dictionary
	for _, id := range ids {
		if d, ok := s.dicts[id]; ok {
			result = append(result, d)
		}
	}
	return result, nil
}

func testCapture(name string) *models.Capture {
	essid := name + "-net"
	bssid := "aa:bb:cc:dd:ee:ff"
	hashPath := "/data/hashes/" + name + ".hc22000"
	return &models.Capture{
		ID:           uuid.New(),
		Filename:     name + ".pcapng",
		ESSID:        &essid,
		BSSID:        &bssid,
		HashFilePath: &hashPath,
	}
}

func testDictionary(name, status string) *models.Dictionary {
	return &models.Dictionary{ID: uuid.New(), Name: name, Status: status}
}

func newTestCoordinator(captures []*models.Capture, dicts []*models.Dictionary) (*BatchCoordinator, *fakeBatchJobStore, *fakeBatchItemStore) {
	jobStore := newFakeBatchJobStore()
	itemStore := newFakeBatchItemStore()
	coord := NewBatchCoordinator(jobStore, itemStore,
		newFakeBatchCaptureStore(captures...), newFakeBatchDictStore(dicts...))
	return coord, jobStore, itemStore
}

func TestCreateCrackJobSingleCapture(t *testing.T) {
	capture := testCapture("office")
	dict := testDictionary("rockyou", models.DictionaryStatusReady)
	coord, jobStore, itemStore := newTestCoordinator(
		[]*models.Capture{capture}, []*models.Dictionary{dict})

	opts := models.CrackOptions{
		CaptureIDs:    []uuid.UUID{capture.ID},
		DictionaryIDs: []uuid.UUID{dict.ID},
	}
	job, err := coord.CreateCrackJob(context.Background(), uuid.New(), "office crack", opts, 5)
	require.NoError(t, err)

	assert.False(t, job.BatchMode, "single capture is not batch mode")
	assert.Equal(t, 1, job.ItemsTotal)
	assert.Equal(t, 5, job.Priority)
	assert.Len(t, itemStore.items[job.ID], 1)
	assert.Equal(t, []uuid.UUID{dict.ID}, jobStore.dicts[job.ID])

	item := itemStore.items[job.ID][0]
	assert.Equal(t, capture.ID, item.CaptureID)
	assert.Equal(t, capture.ESSID, item.ESSID)
	assert.Equal(t, capture.HashFilePath, item.HashFilePath)
}

func TestCreateCrackJobBatchMode(t *testing.T) {
	captures := []*models.Capture{testCapture("a"), testCapture("b"), testCapture("c")}
	dict := testDictionary("rockyou", models.DictionaryStatusReady)
	coord, _, itemStore := newTestCoordinator(captures, []*models.Dictionary{dict})

	opts := models.CrackOptions{
		CaptureIDs:    []uuid.UUID{captures[0].ID, captures[1].ID, captures[2].ID},
		DictionaryIDs: []uuid.UUID{dict.ID},
	}
	job, err := coord.CreateCrackJob(context.Background(), uuid.New(), "sweep", opts, 0)
	require.NoError(t, err)

	assert.True(t, job.BatchMode)
	assert.Equal(t, 3, job.ItemsTotal)
	assert.Len(t, itemStore.items[job.ID], 3)
}

func TestCreateCrackJobUnknownCapture(t *testing.T) {
	dict := testDictionary("rockyou", models.DictionaryStatusReady)
	coord, _, _ := newTestCoordinator(nil, []*models.Dictionary{dict})

	opts := models.CrackOptions{
		CaptureIDs:    []uuid.UUID{uuid.New()},
		DictionaryIDs: []uuid.UUID{dict.ID},
	}
	_, err := coord.CreateCrackJob(context.Background(), uuid.New(), "x", opts, 0)
	require.Error(t, err)
	assert.True(t, jobs.IsValidation(err))
}

func TestCreateCrackJobDictionaryNotReady(t *testing.T) {
	capture := testCapture("office")
	dict := testDictionary("generating", models.DictionaryStatusPending)
	coord, _, _ := newTestCoordinator([]*models.Capture{capture}, []*models.Dictionary{dict})

	opts := models.CrackOptions{
		CaptureIDs:    []uuid.UUID{capture.ID},
		DictionaryIDs: []uuid.UUID{dict.ID},
	}
	_, err := coord.CreateCrackJob(context.Background(), uuid.New(), "x", opts, 0)
	require.Error(t, err)
	assert.True(t, jobs.IsValidation(err))
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts models.ItemStatusCounts
		want   models.JobStatus
	}{
		{"all completed", models.ItemStatusCounts{Completed: 3}, models.JobStatusCompleted},
		{"one failed rest completed", models.ItemStatusCounts{Completed: 2, Failed: 1}, models.JobStatusFailed},
		{"failed but still pending", models.ItemStatusCounts{Failed: 1, Pending: 2}, models.JobStatusProcessing},
		{"failed but still processing", models.ItemStatusCounts{Failed: 1, Processing: 1}, models.JobStatusProcessing},
		{"all pending", models.ItemStatusCounts{Pending: 3}, models.JobStatusProcessing},
		{"mixed in flight", models.ItemStatusCounts{Completed: 1, Processing: 1, Pending: 1}, models.JobStatusProcessing},
		{"all failed", models.ItemStatusCounts{Failed: 2}, models.JobStatusFailed},
		{"no items", models.ItemStatusCounts{}, models.JobStatusProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStatus(tt.counts))
		})
	}
}

func TestRetryBatchDeduplicatesCaptures(t *testing.T) {
	shared := testCapture("shared")
	only1 := testCapture("only1")
	only2 := testCapture("only2")
	oldDict := testDictionary("small", models.DictionaryStatusReady)
	newDict := testDictionary("rockyou", models.DictionaryStatusReady)

	coord, jobStore, itemStore := newTestCoordinator(
		[]*models.Capture{shared, only1, only2},
		[]*models.Dictionary{oldDict, newDict})

	ctx := context.Background()
	userID := uuid.New()

	job1, err := coord.CreateCrackJob(ctx, userID, "first", models.CrackOptions{
		CaptureIDs:    []uuid.UUID{shared.ID, only1.ID},
		DictionaryIDs: []uuid.UUID{oldDict.ID},
	}, 0)
	require.NoError(t, err)
	job2, err := coord.CreateCrackJob(ctx, userID, "second", models.CrackOptions{
		CaptureIDs:    []uuid.UUID{shared.ID, only2.ID},
		DictionaryIDs: []uuid.UUID{oldDict.ID},
	}, 0)
	require.NoError(t, err)

	// Mark originals terminal to mimic finished runs.
	jobStore.jobs[job1.ID].Status = models.JobStatusFailed
	jobStore.jobs[job2.ID].Status = models.JobStatusCompleted

	retry, err := coord.RetryBatch(ctx, userID, "retry", []uuid.UUID{job1.ID, job2.ID},
		[]uuid.UUID{newDict.ID}, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, retry.ItemsTotal, "shared capture appears once")
	assert.Equal(t, []uuid.UUID{newDict.ID}, jobStore.dicts[retry.ID])

	// Originals are untouched.
	assert.Equal(t, models.JobStatusFailed, jobStore.jobs[job1.ID].Status)
	assert.Equal(t, models.JobStatusCompleted, jobStore.jobs[job2.ID].Status)
	assert.Len(t, itemStore.items[job1.ID], 2)
	assert.Len(t, itemStore.items[job2.ID], 2)
}

func TestRetryBatchRejectsNonCrackJob(t *testing.T) {
	coord, jobStore, _ := newTestCoordinator(nil, nil)

	captureJob := &models.Job{JobType: models.JobTypeCapture}
	require.NoError(t, jobStore.Create(context.Background(), captureJob))

	_, err := coord.RetryBatch(context.Background(), uuid.New(), "x",
		[]uuid.UUID{captureJob.ID}, []uuid.UUID{uuid.New()}, 0)
	require.Error(t, err)
	assert.True(t, jobs.IsValidation(err))
}

func TestRetryBatchRequiresInputs(t *testing.T) {
	coord, _, _ := newTestCoordinator(nil, nil)

	_, err := coord.RetryBatch(context.Background(), uuid.New(), "x", nil, []uuid.UUID{uuid.New()}, 0)
	assert.True(t, jobs.IsValidation(err))

	_, err = coord.RetryBatch(context.Background(), uuid.New(), "x", []uuid.UUID{uuid.New()}, nil, 0)
	assert.True(t, jobs.IsValidation(err))
}
