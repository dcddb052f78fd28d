package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doomedramen/autopwn/internal/db"
	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
)

const jobItemColumns = `id, job_id, capture_id, filename, essid, bssid, hash_file_path,
		status, password, error_message, created_at, updated_at`

// JobItemRepository handles database operations for batch job items.
type JobItemRepository struct {
	db *db.DB
}

// NewJobItemRepository creates a new instance of JobItemRepository.
func NewJobItemRepository(database *db.DB) *JobItemRepository {
	return &JobItemRepository{db: database}
}

// CreateBatch inserts one item per capture for a batch job.
func (r *JobItemRepository) CreateBatch(ctx context.Context, items []*models.JobItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO job_items (id, job_id, capture_id, filename, essid, bssid, hash_file_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if item.Status == "" {
			item.Status = models.JobItemStatusPending
		}
		_, err := r.db.ExecContext(ctx, query,
			item.ID, item.JobID, item.CaptureID, item.Filename,
			item.ESSID, item.BSSID, item.HashFilePath, item.Status)
		if err != nil {
			return fmt.Errorf("failed to create job item for capture %s: %w", item.CaptureID, err)
		}
	}
	return nil
}

// GetByID retrieves a job item.
func (r *JobItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_items WHERE id = $1`, jobItemColumns)
	item, err := scanJobItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &jobs.NotFoundError{Resource: "job item", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job item %s: %w", id, err)
	}
	return item, nil
}

// ListByJob returns a job's items in creation order.
func (r *JobItemRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM job_items WHERE job_id = $1 ORDER BY created_at ASC`, jobItemColumns)
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var items []*models.JobItem
	for rows.Next() {
		item, err := scanJobItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job item row: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job item rows: %w", err)
	}
	return items, nil
}

// MarkProcessing transitions an item to processing.
func (r *JobItemRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, `
		UPDATE job_items SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`)
}

// MarkCompleted finishes an item, recording the recovered password when one
// was found. A nil password means the dictionaries were exhausted.
func (r *JobItemRepository) MarkCompleted(ctx context.Context, id uuid.UUID, password *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_items SET status = 'completed', password = $2, updated_at = NOW()
		WHERE id = $1`, id, password)
	if err != nil {
		return fmt.Errorf("failed to complete job item %s: %w", id, err)
	}
	return nil
}

// MarkFailed fails an item with an error message.
func (r *JobItemRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_items SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("failed to mark job item %s failed: %w", id, err)
	}
	return nil
}

// SetAnalysis records the extracted network identity and hash file for an item.
func (r *JobItemRepository) SetAnalysis(ctx context.Context, id uuid.UUID, essid, bssid, hashFilePath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_items SET essid = $2, bssid = $3, hash_file_path = $4, updated_at = NOW()
		WHERE id = $1`, id, essid, bssid, hashFilePath)
	if err != nil {
		return fmt.Errorf("failed to set analysis for job item %s: %w", id, err)
	}
	return nil
}

// ResetForRestart returns all of a job's items to pending and clears results.
func (r *JobItemRepository) ResetForRestart(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_items SET status = 'pending', password = NULL, error_message = NULL, updated_at = NOW()
		WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to reset items for job %s: %w", jobID, err)
	}
	return nil
}

// CountByStatus returns the per-status breakdown used to derive the parent
// job's aggregate state.
func (r *JobItemRepository) CountByStatus(ctx context.Context, jobID uuid.UUID) (models.ItemStatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'completed' AND password IS NOT NULL)
		FROM job_items WHERE job_id = $1
	`
	var counts models.ItemStatusCounts
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&counts.Pending, &counts.Processing, &counts.Completed, &counts.Failed,
		&counts.CrackedWithPassword)
	if err != nil {
		return counts, fmt.Errorf("failed to count items for job %s: %w", jobID, err)
	}
	return counts, nil
}

func (r *JobItemRepository) setStatus(ctx context.Context, id uuid.UUID, query string) error {
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update job item %s: %w", id, err)
	}
	return nil
}

func scanJobItem(scanner interface{ Scan(...interface{}) error }) (*models.JobItem, error) {
	var item models.JobItem
	err := scanner.Scan(
		&item.ID,
		&item.JobID,
		&item.CaptureID,
		&item.Filename,
		&item.ESSID,
		&item.BSSID,
		&item.HashFilePath,
		&item.Status,
		&item.Password,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
