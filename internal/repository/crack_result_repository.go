package repository

import (
	"context"
	"fmt"

	"github.com/doomedramen/autopwn/internal/db"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/google/uuid"
)

// CrackResultRepository handles database operations for recovered plaintexts.
type CrackResultRepository struct {
	db *db.DB
}

// NewCrackResultRepository creates a new instance of CrackResultRepository.
func NewCrackResultRepository(database *db.DB) *CrackResultRepository {
	return &CrackResultRepository{db: database}
}

// Create inserts a recovered password record.
func (r *CrackResultRepository) Create(ctx context.Context, result *models.CrackResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crack_results (id, job_id, job_item_id, essid, bssid, password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		result.ID, result.JobID, result.JobItemID, result.ESSID, result.BSSID, result.Password)
	if err != nil {
		return fmt.Errorf("failed to create crack result for job %s: %w", result.JobID, err)
	}
	return nil
}

// ListByJob returns all recovered passwords for a job.
func (r *CrackResultRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.CrackResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, job_item_id, essid, bssid, password, created_at
		FROM crack_results WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list crack results for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var results []*models.CrackResult
	for rows.Next() {
		var cr models.CrackResult
		if err := rows.Scan(&cr.ID, &cr.JobID, &cr.JobItemID, &cr.ESSID, &cr.BSSID, &cr.Password, &cr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan crack result row: %w", err)
		}
		results = append(results, &cr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crack result rows: %w", err)
	}
	return results, nil
}
