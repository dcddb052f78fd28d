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

const dictionaryColumns = `id, name, file_path, file_size, word_count, status, created_at, updated_at`

// DictionaryRepository handles database operations for wordlist records.
type DictionaryRepository struct {
	db *db.DB
}

// NewDictionaryRepository creates a new instance of DictionaryRepository.
func NewDictionaryRepository(database *db.DB) *DictionaryRepository {
	return &DictionaryRepository{db: database}
}

// Create inserts a new dictionary record.
func (r *DictionaryRepository) Create(ctx context.Context, d *models.Dictionary) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DictionaryStatusPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dictionaries (id, name, file_path, file_size, word_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		d.ID, d.Name, d.FilePath, d.FileSize, d.WordCount, d.Status)
	if err != nil {
		return fmt.Errorf("failed to create dictionary %q: %w", d.Name, err)
	}
	return nil
}

// GetByID retrieves a dictionary.
func (r *DictionaryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dictionary, error) {
	query := fmt.Sprintf(`SELECT %s FROM dictionaries WHERE id = $1`, dictionaryColumns)
	d, err := scanDictionary(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &jobs.NotFoundError{Resource: "dictionary", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dictionary %s: %w", id, err)
	}
	return d, nil
}

// ListByIDs retrieves dictionaries by ID, preserving no particular order.
func (r *DictionaryRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Dictionary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	query := fmt.Sprintf(`SELECT %s FROM dictionaries WHERE id = ANY($1)`, dictionaryColumns)
	return r.queryDictionaries(ctx, query, pq.Array(strIDs))
}

// List returns all dictionaries, newest first.
func (r *DictionaryRepository) List(ctx context.Context) ([]*models.Dictionary, error) {
	query := fmt.Sprintf(`SELECT %s FROM dictionaries ORDER BY created_at DESC`, dictionaryColumns)
	return r.queryDictionaries(ctx, query)
}

// MarkReady records the final path, size and word count once a dictionary is
// verified or generated.
func (r *DictionaryRepository) MarkReady(ctx context.Context, id uuid.UUID, path string, size, wordCount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dictionaries SET status = 'ready', file_path = $2, file_size = $3, word_count = $4, updated_at = NOW()
		WHERE id = $1`, id, path, size, wordCount)
	if err != nil {
		return fmt.Errorf("failed to mark dictionary %s ready: %w", id, err)
	}
	return nil
}

// MarkError flags a dictionary whose generation or verification failed.
func (r *DictionaryRepository) MarkError(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dictionaries SET status = 'error', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark dictionary %s errored: %w", id, err)
	}
	return nil
}

// Delete removes a dictionary record.
func (r *DictionaryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM dictionaries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dictionary %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &jobs.NotFoundError{Resource: "dictionary", ID: id.String()}
	}
	return nil
}

func (r *DictionaryRepository) queryDictionaries(ctx context.Context, query string, args ...interface{}) ([]*models.Dictionary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dictionaries: %w", err)
	}
	defer rows.Close()

	var result []*models.Dictionary
	for rows.Next() {
		d, err := scanDictionary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dictionary row: %w", err)
		}
		result = append(result, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dictionary rows: %w", err)
	}
	return result, nil
}

func scanDictionary(scanner interface{ Scan(...interface{}) error }) (*models.Dictionary, error) {
	var d models.Dictionary
	err := scanner.Scan(&d.ID, &d.Name, &d.FilePath, &d.FileSize, &d.WordCount, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
