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
	"github.com/lib/pq"
)

const captureColumns = `id, user_id, filename, file_path, file_size, essid, bssid,
		hash_file_path, hash_count, analyzed_at, created_at`

// CaptureRepository handles database operations for uploaded capture files.
type CaptureRepository struct {
	db *db.DB
}

// NewCaptureRepository creates a new instance of CaptureRepository.
func NewCaptureRepository(database *db.DB) *CaptureRepository {
	return &CaptureRepository{db: database}
}

// Create inserts a new capture record.
func (r *CaptureRepository) Create(ctx context.Context, c *models.Capture) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO captures (id, user_id, filename, file_path, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		c.ID, c.UserID, c.Filename, c.FilePath, c.FileSize)
	if err != nil {
		return fmt.Errorf("failed to create capture %q: %w", c.Filename, err)
	}
	return nil
}

// GetByID retrieves a capture.
func (r *CaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Capture, error) {
	query := fmt.Sprintf(`SELECT %s FROM captures WHERE id = $1`, captureColumns)
	c, err := scanCapture(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &jobs.NotFoundError{Resource: "capture", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture %s: %w", id, err)
	}
	return c, nil
}

// ListByIDs retrieves captures by ID.
func (r *CaptureRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Capture, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	query := fmt.Sprintf(`SELECT %s FROM captures WHERE id = ANY($1) ORDER BY created_at ASC`, captureColumns)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var result []*models.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture row: %w", err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capture rows: %w", err)
	}
	return result, nil
}

// SetAnalysis records the outcome of capture processing: the extracted network
// identity, the canonical hash file and the number of crackable hashes.
func (r *CaptureRepository) SetAnalysis(ctx context.Context, id uuid.UUID, essid, bssid, hashFilePath string, hashCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE captures SET essid = $2, bssid = $3, hash_file_path = $4, hash_count = $5, analyzed_at = NOW()
		WHERE id = $1`, id, essid, bssid, hashFilePath, hashCount)
	if err != nil {
		return fmt.Errorf("failed to set analysis for capture %s: %w", id, err)
	}
	return nil
}

func scanCapture(scanner interface{ Scan(...interface{}) error }) (*models.Capture, error) {
	var c models.Capture
	err := scanner.Scan(
		&c.ID, &c.UserID, &c.Filename, &c.FilePath, &c.FileSize,
		&c.ESSID, &c.BSSID, &c.HashFilePath, &c.HashCount, &c.AnalyzedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
