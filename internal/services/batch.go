package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
)

// BatchJobStore is the slice of the job repository the coordinator needs.
type BatchJobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	AddDictionaries(ctx context.Context, jobID uuid.UUID, dictionaryIDs []uuid.UUID) error
}

// BatchItemStore is the slice of the job item repository the coordinator needs.
type BatchItemStore interface {
	CreateBatch(ctx context.Context, items []*models.JobItem) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobItem, error)
	CountByStatus(ctx context.Context, jobID uuid.UUID) (models.ItemStatusCounts, error)
}

// BatchCaptureStore resolves capture targets for batch expansion.
type BatchCaptureStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Capture, error)
}

// BatchDictionaryStore resolves dictionaries for selection validation.
type BatchDictionaryStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Dictionary, error)
}

// BatchCoordinator expands batch crack jobs into per-capture items and folds
// item statuses back into the parent job's aggregate state.
type BatchCoordinator struct {
	jobStore     BatchJobStore
	itemStore    BatchItemStore
	captureStore BatchCaptureStore
	dictStore    BatchDictionaryStore
}

// NewBatchCoordinator creates a new batch coordinator.
func NewBatchCoordinator(jobStore BatchJobStore, itemStore BatchItemStore, captureStore BatchCaptureStore, dictStore BatchDictionaryStore) *BatchCoordinator {
	return &BatchCoordinator{
		jobStore:     jobStore,
		itemStore:    itemStore,
		captureStore: captureStore,
		dictStore:    dictStore,
	}
}

// CreateCrackJob creates a crack job from validated options. With more than
// one capture the job runs in batch mode and one JobItem is created per
// capture; itemsTotal always equals the number of captures.
func (c *BatchCoordinator) CreateCrackJob(ctx context.Context, userID uuid.UUID, name string, opts models.CrackOptions, priority int) (*models.Job, error) {
	captures, err := c.captureStore.ListByIDs(ctx, opts.CaptureIDs)
	if err != nil {
		return nil, err
	}
	if len(captures) != len(opts.CaptureIDs) {
		return nil, jobs.Validationf("selection includes %d unknown captures", len(opts.CaptureIDs)-len(captures))
	}
	dicts, err := c.dictStore.ListByIDs(ctx, opts.DictionaryIDs)
	if err != nil {
		return nil, err
	}
	if len(dicts) != len(opts.DictionaryIDs) {
		return nil, jobs.Validationf("selection includes %d unknown dictionaries", len(opts.DictionaryIDs)-len(dicts))
	}
	for _, d := range dicts {
		if d.Status != models.DictionaryStatusReady {
			return nil, jobs.Validationf("dictionary %q is not ready (status %s)", d.Name, d.Status)
		}
	}

	rawOpts, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crack options: %w", err)
	}

	job := &models.Job{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		JobType:    models.JobTypeCrack,
		Status:     models.JobStatusPending,
		Priority:   priority,
		BatchMode:  len(captures) > 1,
		ItemsTotal: len(captures),
		Options:    rawOpts,
	}
	if err := c.jobStore.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := c.jobStore.AddDictionaries(ctx, job.ID, opts.DictionaryIDs); err != nil {
		return nil, err
	}

	items := make([]*models.JobItem, 0, len(captures))
	for _, capture := range captures {
		items = append(items, &models.JobItem{
			JobID:        job.ID,
			CaptureID:    capture.ID,
			Filename:     capture.Filename,
			ESSID:        capture.ESSID,
			BSSID:        capture.BSSID,
			HashFilePath: capture.HashFilePath,
		})
	}
	if err := c.itemStore.CreateBatch(ctx, items); err != nil {
		return nil, err
	}

	debug.Log("Created crack job", map[string]interface{}{
		"job_id":       job.ID,
		"batch_mode":   job.BatchMode,
		"items_total":  job.ItemsTotal,
		"dictionaries": len(dicts),
	})
	return job, nil
}

// AggregateStatus derives the parent job status from its item breakdown:
// completed iff every item completed; failed iff at least one item failed and
// none remain pending or processing; otherwise still processing.
func AggregateStatus(counts models.ItemStatusCounts) models.JobStatus {
	total := counts.Total()
	if total == 0 {
		return models.JobStatusProcessing
	}
	if counts.Completed == total {
		return models.JobStatusCompleted
	}
	if counts.Failed > 0 && counts.Pending == 0 && counts.Processing == 0 {
		return models.JobStatusFailed
	}
	return models.JobStatusProcessing
}

// Aggregate returns the derived status and cracked-item count for a batch job.
func (c *BatchCoordinator) Aggregate(ctx context.Context, jobID uuid.UUID) (models.JobStatus, models.ItemStatusCounts, error) {
	counts, err := c.itemStore.CountByStatus(ctx, jobID)
	if err != nil {
		return "", counts, err
	}
	return AggregateStatus(counts), counts, nil
}

// RetryBatch creates one new batch job targeting the captures of the given
// prior jobs with a freshly chosen dictionary set. The originals are neither
// mutated nor consulted beyond reading their item lists, so they remain
// inspectable afterwards.
func (c *BatchCoordinator) RetryBatch(ctx context.Context, userID uuid.UUID, name string, jobIDs, dictionaryIDs []uuid.UUID, priority int) (*models.Job, error) {
	if len(jobIDs) == 0 {
		return nil, jobs.Validationf("retry requires at least one prior job")
	}
	if len(dictionaryIDs) == 0 {
		return nil, jobs.Validationf("retry requires at least one dictionary")
	}

	seen := make(map[uuid.UUID]bool)
	var captureIDs []uuid.UUID
	for _, jobID := range jobIDs {
		job, err := c.jobStore.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.JobType != models.JobTypeCrack {
			return nil, jobs.Validationf("job %s is not a crack job", jobID)
		}
		items, err := c.itemStore.ListByJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !seen[item.CaptureID] {
				seen[item.CaptureID] = true
				captureIDs = append(captureIDs, item.CaptureID)
			}
		}
	}
	if len(captureIDs) == 0 {
		return nil, jobs.Validationf("prior jobs have no capture targets to retry")
	}

	opts := models.CrackOptions{
		CaptureIDs:    captureIDs,
		DictionaryIDs: dictionaryIDs,
	}
	return c.CreateCrackJob(ctx, userID, name, opts, priority)
}
