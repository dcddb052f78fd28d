package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/doomedramen/autopwn/internal/db"
	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
)

const jobColumns = `id, user_id, name, job_type, status, priority, paused, batch_mode,
		items_total, items_cracked, progress, speed, eta_seconds, current_dictionary,
		hash_count, error_message, logs, options, hash_file_path,
		started_at, completed_at, heartbeat_at, created_at, updated_at`

// JobRepository handles database operations for job records.
//
// All writes are field-scoped: progress fields, control fields and status
// transitions are separate statements with their own WHERE guards, so a worker
// publishing progress can never clobber a concurrent pause or priority change
// and vice versa.
type JobRepository struct {
	db *db.DB
}

// NewJobRepository creates a new instance of JobRepository.
func NewJobRepository(database *db.DB) *JobRepository {
	return &JobRepository{db: database}
}

func scanJob(scanner interface{ Scan(...interface{}) error }) (*models.Job, error) {
	var job models.Job
	err := scanner.Scan(
		&job.ID,
		&job.UserID,
		&job.Name,
		&job.JobType,
		&job.Status,
		&job.Priority,
		&job.Paused,
		&job.BatchMode,
		&job.ItemsTotal,
		&job.ItemsCracked,
		&job.Progress,
		&job.Speed,
		&job.ETASeconds,
		&job.CurrentDictionary,
		&job.HashCount,
		&job.ErrorMessage,
		&job.Logs,
		&job.Options,
		&job.HashFilePath,
		&job.StartedAt,
		&job.CompletedAt,
		&job.HeartbeatAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, user_id, name, job_type, status, priority, paused, batch_mode,
			items_total, options, hash_file_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.Name, job.JobType, job.Status, job.Priority,
		job.Paused, job.BatchMode, job.ItemsTotal, job.Options, job.HashFilePath,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &jobs.NotFoundError{Resource: "job", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// ListByUser returns a user's jobs, newest first.
func (r *JobRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`, jobColumns)
	return r.queryJobs(ctx, query, userID)
}

// ListActive returns all jobs that are pending, processing or paused.
func (r *JobRepository) ListActive(ctx context.Context) ([]*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs
		WHERE status IN ('pending', 'processing', 'paused')
		ORDER BY priority DESC, created_at ASC`, jobColumns)
	return r.queryJobs(ctx, query)
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		result = append(result, job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return result, nil
}

// claimLockClass namespaces the advisory locks that serialize job claims
// against other advisory lock users of the same database.
const claimLockClass = 0x6175

func claimLockKey(jobType models.JobType) int32 {
	h := fnv.New32a()
	h.Write([]byte(jobType))
	return int32(h.Sum32())
}

// ClaimNext atomically claims the next eligible pending job of the given type.
//
// Selection order is priority DESC, created_at ASC. The claim runs inside a
// transaction holding a per-type advisory lock: the concurrency-limit count
// and the row claim are separate statements, and without the lock two
// claimants in different processes can both read count = limit-1, lock
// different pending rows and overshoot the limit. FOR UPDATE SKIP LOCKED
// still decides the row itself when claimants of different types overlap.
// Returns nil without error when no job is claimable.
func (r *JobRepository) ClaimNext(ctx context.Context, jobType models.JobType, concurrencyLimit int) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim for %s: %w", jobType, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
		claimLockClass, claimLockKey(jobType)); err != nil {
		return nil, fmt.Errorf("failed to serialize %s claim: %w", jobType, err)
	}

	query := fmt.Sprintf(`
		UPDATE jobs SET status = 'processing', started_at = NOW(), heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND paused = FALSE AND job_type = $1
			  AND (SELECT COUNT(*) FROM jobs WHERE status = 'processing' AND job_type = $1) < $2
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, jobColumns)

	job, err := scanJob(tx.QueryRowContext(ctx, query, jobType, concurrencyLimit))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim next %s job: %w", jobType, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s claim: %w", jobType, err)
	}

	debug.Log("Claimed job", map[string]interface{}{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"priority": job.Priority,
	})
	return job, nil
}

// UpdateProgressFields persists the worker-owned fields of a job row. The
// statement only touches processing jobs and only ratchets progress upward,
// which keeps displayed progress monotonic across pause/resume cycles.
func (r *JobRepository) UpdateProgressFields(ctx context.Context, id uuid.UUID, p models.ProgressFields) error {
	query := `
		UPDATE jobs SET
			progress = GREATEST(progress, $2),
			speed = $3,
			eta_seconds = $4,
			items_cracked = $5,
			hash_count = $6,
			current_dictionary = $7,
			heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	_, err := r.db.ExecContext(ctx, query, id,
		p.Progress, p.Speed, p.ETASeconds, p.ItemsCracked, p.HashCount, p.CurrentDictionary)
	if err != nil {
		return fmt.Errorf("failed to update progress for job %s: %w", id, err)
	}
	return nil
}

// FlushProgress persists the final progress snapshot when a run ends,
// bypassing the reporter's throttle. Unlike UpdateProgressFields it also
// matches paused rows, so the snapshot taken as a pause interrupts a run is
// not lost; the ratchet keeps progress monotonic either way. Terminal and
// pending rows stay untouched, which shuts out late writes from a runner
// that lost its job to a stop or restart.
func (r *JobRepository) FlushProgress(ctx context.Context, id uuid.UUID, p models.ProgressFields) error {
	query := `
		UPDATE jobs SET
			progress = GREATEST(progress, $2),
			speed = $3,
			eta_seconds = $4,
			items_cracked = $5,
			hash_count = $6,
			current_dictionary = $7,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('processing', 'paused')
	`
	_, err := r.db.ExecContext(ctx, query, id,
		p.Progress, p.Speed, p.ETASeconds, p.ItemsCracked, p.HashCount, p.CurrentDictionary)
	if err != nil {
		return fmt.Errorf("failed to flush progress for job %s: %w", id, err)
	}
	return nil
}

// SetPriority updates the control-owned priority field.
func (r *JobRepository) SetPriority(ctx context.Context, id uuid.UUID, priority int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET priority = $2, updated_at = NOW() WHERE id = $1`, id, priority)
	if err != nil {
		return fmt.Errorf("failed to set priority for job %s: %w", id, err)
	}
	return r.requireRow(result, id)
}

// MarkPaused transitions a pending or processing job to paused.
// Returns the number of rows changed; zero means the guard did not match.
func (r *JobRepository) MarkPaused(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'paused', paused = TRUE, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to pause job %s: %w", id, err)
	}
	return result.RowsAffected()
}

// MarkResumed returns a paused job to the pending pool with progress intact.
func (r *JobRepository) MarkResumed(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', paused = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = 'paused'`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to resume job %s: %w", id, err)
	}
	return result.RowsAffected()
}

// MarkStopped terminally stops a job from any non-terminal state, stamping
// completed_at and leaving every progress field at its last known value.
func (r *JobRepository) MarkStopped(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'stopped', paused = FALSE, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing', 'paused')`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to stop job %s: %w", id, err)
	}
	return result.RowsAffected()
}

// MarkCompleted transitions a processing job to completed.
func (r *JobRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// The control surface stopped or paused the job while the worker was
		// finishing; the control transition wins.
		debug.Warning("Completion for job %s skipped: job no longer processing", id)
	}
	return nil
}

// MarkFailed transitions a processing job to failed, recording the error
// message while preserving partial progress.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id, message)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		debug.Warning("Failure for job %s skipped: job no longer processing", id)
	}
	return nil
}

// ResetForRestart returns a job to pending from any state and zeroes all
// progress fields. Name, options and associations are untouched.
func (r *JobRepository) ResetForRestart(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			status = 'pending',
			paused = FALSE,
			progress = 0,
			items_cracked = 0,
			hash_count = 0,
			speed = NULL,
			eta_seconds = NULL,
			current_dictionary = NULL,
			error_message = NULL,
			started_at = NULL,
			completed_at = NULL,
			heartbeat_at = NULL,
			updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reset job %s for restart: %w", id, err)
	}
	return r.requireRow(result, id)
}

// AppendLog appends a line to the job's log text.
func (r *JobRepository) AppendLog(ctx context.Context, id uuid.UUID, line string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET logs = logs || $2 || E'\n', updated_at = NOW() WHERE id = $1`, id, line)
	if err != nil {
		return fmt.Errorf("failed to append log for job %s: %w", id, err)
	}
	return nil
}

// SetHashFile records the canonical hash file produced for a job.
func (r *JobRepository) SetHashFile(ctx context.Context, id uuid.UUID, path string, hashCount int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET hash_file_path = $2, hash_count = $3, updated_at = NOW() WHERE id = $1`,
		id, path, hashCount)
	if err != nil {
		return fmt.Errorf("failed to set hash file for job %s: %w", id, err)
	}
	return nil
}

// TouchHeartbeat stamps the claim-liveness marker for a processing job.
func (r *JobRepository) TouchHeartbeat(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET heartbeat_at = NOW() WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return fmt.Errorf("failed to touch heartbeat for job %s: %w", id, err)
	}
	return nil
}

// RequeueStalled returns processing jobs with a heartbeat older than cutoff to
// the pending pool so a live worker can re-claim them. Work is never lost,
// only re-claimable.
func (r *JobRepository) RequeueStalled(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', started_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND heartbeat_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stalled jobs: %w", err)
	}
	return result.RowsAffected()
}

// ListRuntimeExceeded returns processing jobs that started before cutoff,
// candidates for a forced stop under the run-time limit.
func (r *JobRepository) ListRuntimeExceeded(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs
		WHERE status = 'processing' AND started_at IS NOT NULL AND started_at < $1`, jobColumns)
	return r.queryJobs(ctx, query, cutoff)
}

// CountProcessing returns how many jobs of a type are currently processing.
func (r *JobRepository) CountProcessing(ctx context.Context, jobType models.JobType) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'processing' AND job_type = $1`, jobType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processing %s jobs: %w", jobType, err)
	}
	return count, nil
}

// Delete removes a job and its owned rows (items, results, join records).
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return r.requireRow(result, id)
}

// DeleteFinishedBefore removes terminal jobs older than cutoff.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'stopped') AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return result.RowsAffected()
}

// AddDictionaries associates an ordered dictionary set with a crack job.
func (r *JobRepository) AddDictionaries(ctx context.Context, jobID uuid.UUID, dictionaryIDs []uuid.UUID) error {
	for position, dictID := range dictionaryIDs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO job_dictionaries (job_id, dictionary_id, position, status)
			VALUES ($1, $2, $3, 'pending')
			ON CONFLICT (job_id, dictionary_id) DO NOTHING`, jobID, dictID, position)
		if err != nil {
			return fmt.Errorf("failed to associate dictionary %s with job %s: %w", dictID, jobID, err)
		}
	}
	return nil
}

// ListDictionaries returns a job's dictionaries in iteration order together
// with their per-dictionary status.
func (r *JobRepository) ListDictionaries(ctx context.Context, jobID uuid.UUID) ([]*models.Dictionary, []models.JobDictionary, error) {
	query := `
		SELECT d.id, d.name, d.file_path, d.file_size, d.word_count, d.status, d.created_at, d.updated_at,
			jd.position, jd.status
		FROM job_dictionaries jd
		JOIN dictionaries d ON d.id = jd.dictionary_id
		WHERE jd.job_id = $1
		ORDER BY jd.position ASC
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list dictionaries for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var dicts []*models.Dictionary
	var joins []models.JobDictionary
	for rows.Next() {
		var d models.Dictionary
		var join models.JobDictionary
		if err := rows.Scan(
			&d.ID, &d.Name, &d.FilePath, &d.FileSize, &d.WordCount, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&join.Position, &join.Status,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan job dictionary row: %w", err)
		}
		join.JobID = jobID
		join.DictionaryID = d.ID
		dicts = append(dicts, &d)
		joins = append(joins, join)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating job dictionary rows: %w", err)
	}
	return dicts, joins, nil
}

// ResetDictionaries returns every dictionary join record of a job to pending,
// part of the restart path.
func (r *JobRepository) ResetDictionaries(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE job_dictionaries SET status = 'pending' WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to reset dictionaries for job %s: %w", jobID, err)
	}
	return nil
}

// SetDictionaryStatus updates the per-dictionary status on the join record.
func (r *JobRepository) SetDictionaryStatus(ctx context.Context, jobID, dictionaryID uuid.UUID, status models.JobDictionaryStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_dictionaries SET status = $3 WHERE job_id = $1 AND dictionary_id = $2`,
		jobID, dictionaryID, status)
	if err != nil {
		return fmt.Errorf("failed to set dictionary status for job %s: %w", jobID, err)
	}
	return nil
}

func (r *JobRepository) requireRow(result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &jobs.NotFoundError{Resource: "job", ID: id.String()}
	}
	return nil
}
