// Package jobs exposes the job control surface: submission, listing, the
// pause/resume/stop/restart triggers, priority changes and batch retry.
package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handler handles job-related requests.
type Handler struct {
	jobRepo     *repository.JobRepository
	itemRepo    *repository.JobItemRepository
	resultRepo  *repository.CrackResultRepository
	captureRepo *repository.CaptureRepository
	dictRepo    *repository.DictionaryRepository
	batch       *services.BatchCoordinator
	publisher   services.EventPublisher
}

// NewHandler creates a new jobs handler.
func NewHandler(
	jobRepo *repository.JobRepository,
	itemRepo *repository.JobItemRepository,
	resultRepo *repository.CrackResultRepository,
	captureRepo *repository.CaptureRepository,
	dictRepo *repository.DictionaryRepository,
	batch *services.BatchCoordinator,
	publisher services.EventPublisher,
) *Handler {
	return &Handler{
		jobRepo:     jobRepo,
		itemRepo:    itemRepo,
		resultRepo:  resultRepo,
		captureRepo: captureRepo,
		dictRepo:    dictRepo,
		batch:       batch,
		publisher:   publisher,
	}
}

// CreateJobRequest is the submission payload for POST /jobs.
type CreateJobRequest struct {
	UserID   uuid.UUID       `json:"user_id"`
	Name     string          `json:"name"`
	JobType  models.JobType  `json:"job_type"`
	Priority int             `json:"priority"`
	Options  json.RawMessage `json:"options"`
}

// CreateJob handles POST /api/v1/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Job name is required", http.StatusBadRequest)
		return
	}
	if !req.JobType.Valid() {
		http.Error(w, "Unknown job type", http.StatusBadRequest)
		return
	}

	options, err := models.ValidateOptions(req.JobType, req.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var job *models.Job
	switch req.JobType {
	case models.JobTypeCrack:
		opts, decodeErr := models.CrackOptionsFrom(options)
		if decodeErr != nil {
			http.Error(w, decodeErr.Error(), http.StatusBadRequest)
			return
		}
		job, err = h.batch.CreateCrackJob(ctx, req.UserID, req.Name, *opts, req.Priority)
	case models.JobTypeCapture:
		job, err = h.createCaptureJob(ctx, req, options)
	case models.JobTypeDictionary:
		job, err = h.createDictionaryJob(ctx, req, options)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	h.publisher.Publish(models.JobEvent{JobID: job.ID, Status: job.Status})
	respondJSON(w, http.StatusCreated, job)
}

func (h *Handler) createCaptureJob(ctx context.Context, req CreateJobRequest, options json.RawMessage) (*models.Job, error) {
	opts, err := models.CaptureOptionsFrom(options)
	if err != nil {
		return nil, err
	}
	if _, err := h.captureRepo.GetByID(ctx, opts.CaptureID); err != nil {
		return nil, err
	}
	job := &models.Job{
		UserID:   req.UserID,
		Name:     req.Name,
		JobType:  models.JobTypeCapture,
		Priority: req.Priority,
		Options:  options,
	}
	if err := h.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (h *Handler) createDictionaryJob(ctx context.Context, req CreateJobRequest, options json.RawMessage) (*models.Job, error) {
	opts, err := models.GenerateOptionsFrom(options)
	if err != nil {
		return nil, err
	}
	if _, err := h.dictRepo.GetByID(ctx, opts.DictionaryID); err != nil {
		return nil, err
	}
	job := &models.Job{
		UserID:   req.UserID,
		Name:     req.Name,
		JobType:  models.JobTypeDictionary,
		Priority: req.Priority,
		Options:  options,
	}
	if err := h.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs handles GET /api/v1/jobs. With a user_id query parameter it lists
// that user's jobs; without it, all active jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if userIDStr := r.URL.Query().Get("user_id"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		list, err := h.jobRepo.ListByUser(ctx, userID)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
		return
	}

	list, err := h.jobRepo.ListActive(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// JobDetail is the full job view returned by GetJob.
type JobDetail struct {
	Job          *models.Job           `json:"job"`
	Items        []*models.JobItem     `json:"items,omitempty"`
	Dictionaries []*models.Dictionary  `json:"dictionaries,omitempty"`
	Results      []*models.CrackResult `json:"results,omitempty"`
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	detail := JobDetail{Job: job}
	if job.JobType == models.JobTypeCrack {
		if detail.Items, err = h.itemRepo.ListByJob(ctx, id); err != nil {
			respondError(w, err)
			return
		}
		if detail.Dictionaries, _, err = h.jobRepo.ListDictionaries(ctx, id); err != nil {
			respondError(w, err)
			return
		}
		if detail.Results, err = h.resultRepo.ListByJob(ctx, id); err != nil {
			respondError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, detail)
}

// DeleteJob handles DELETE /api/v1/jobs/{id}. Processing jobs must be stopped
// before deletion.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if job.Status == models.JobStatusProcessing {
		http.Error(w, "Stop the job before deleting it", http.StatusBadRequest)
		return
	}
	if err := h.jobRepo.Delete(ctx, id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PauseJob handles POST /api/v1/jobs/{id}/pause. Pausing an already-paused job
// succeeds without effect.
func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.JobStatusPaused, func(ctx context.Context, id uuid.UUID) (int64, error) {
		return h.jobRepo.MarkPaused(ctx, id)
	}, jobs.Pause)
}

// ResumeJob handles POST /api/v1/jobs/{id}/resume. The job returns to the
// pending pool with its progress intact; it does not jump the queue.
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.JobStatusPending, func(ctx context.Context, id uuid.UUID) (int64, error) {
		return h.jobRepo.MarkResumed(ctx, id)
	}, jobs.Resume)
}

// StopJob handles POST /api/v1/jobs/{id}/stop. Stop is terminal; progress
// fields keep their last values for inspection.
func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.JobStatusStopped, func(ctx context.Context, id uuid.UUID) (int64, error) {
		return h.jobRepo.MarkStopped(ctx, id)
	}, func(job *models.Job) error {
		return jobs.Stop(job, time.Now())
	})
}

// transition applies one guarded status change. The repository guard decides
// the race: zero rows affected means the job was not in an eligible state, and
// the state machine then distinguishes a legal no-op from an illegal request.
func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	target models.JobStatus,
	apply func(context.Context, uuid.UUID) (int64, error),
	check func(*models.Job) error,
) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rows, err := apply(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	job, err := h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}

	if rows == 0 {
		// The guard did not match. Legal no-op (already in the target state)
		// or an illegal transition, decided by the state machine.
		if checkErr := check(job); checkErr != nil {
			respondError(w, checkErr)
			return
		}
		respondJSON(w, http.StatusOK, job)
		return
	}

	debug.Log("Job transition applied", map[string]interface{}{
		"job_id": id,
		"status": target,
	})
	h.publisher.Publish(models.JobEvent{JobID: id, Status: target, Progress: job.Progress})
	respondJSON(w, http.StatusOK, job)
}

// RestartJob handles POST /api/v1/jobs/{id}/restart. Legal from any state:
// all progress is reset, configuration and associations are preserved.
func (h *Handler) RestartJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	if job.Status == models.JobStatusProcessing {
		// Stop the live run first. The runner's control watch sees the
		// status change, cancels the child process and yields its claim;
		// progress writes land nowhere once the row has left processing.
		if _, err := h.jobRepo.MarkStopped(ctx, id); err != nil {
			respondError(w, err)
			return
		}
	}

	if err := h.jobRepo.ResetForRestart(ctx, id); err != nil {
		respondError(w, err)
		return
	}
	if job.JobType == models.JobTypeCrack {
		if err := h.itemRepo.ResetForRestart(ctx, id); err != nil {
			respondError(w, err)
			return
		}
		if err := h.jobRepo.ResetDictionaries(ctx, id); err != nil {
			respondError(w, err)
			return
		}
	}

	job, err = h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	h.publisher.Publish(models.JobEvent{JobID: id, Status: models.JobStatusPending})
	respondJSON(w, http.StatusOK, job)
}

// SetPriorityRequest is the payload for PATCH /jobs/{id}/priority.
type SetPriorityRequest struct {
	Priority int `json:"priority"`
}

// SetPriority handles PATCH /api/v1/jobs/{id}/priority. The new priority
// affects future claim decisions only; a processing job is not preempted.
func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req SetPriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.jobRepo.SetPriority(ctx, id, req.Priority); err != nil {
		respondError(w, err)
		return
	}

	job, err := h.jobRepo.GetByID(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// RetryBatchRequest is the payload for POST /jobs/retry.
type RetryBatchRequest struct {
	UserID        uuid.UUID   `json:"user_id"`
	Name          string      `json:"name"`
	JobIDs        []uuid.UUID `json:"job_ids"`
	DictionaryIDs []uuid.UUID `json:"dictionary_ids"`
	Priority      int         `json:"priority"`
}

// RetryBatch handles POST /api/v1/jobs/retry: a fresh batch job over the
// capture targets of prior jobs with a new dictionary selection.
func (h *Handler) RetryBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RetryBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Job name is required", http.StatusBadRequest)
		return
	}

	job, err := h.batch.RetryBatch(ctx, req.UserID, req.Name, req.JobIDs, req.DictionaryIDs, req.Priority)
	if err != nil {
		respondError(w, err)
		return
	}
	h.publisher.Publish(models.JobEvent{JobID: job.ID, Status: job.Status})
	respondJSON(w, http.StatusCreated, job)
}

// GetJobResults handles GET /api/v1/jobs/{id}/results.
func (h *Handler) GetJobResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.jobRepo.GetByID(ctx, id); err != nil {
		respondError(w, err)
		return
	}
	results, err := h.resultRepo.ListByJob(ctx, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		debug.Error("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case jobs.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case jobs.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		debug.Error("Request failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
