// Package resources exposes the capture and dictionary inventory that jobs
// operate on. File transport is out of scope: captures and wordlists are
// registered by path after being placed under the data directory.
package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/doomedramen/autopwn/internal/jobs"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// WordlistRegistrar is what the handler needs from the wordlist manager.
type WordlistRegistrar interface {
	Register(ctx context.Context, name, path string) (*models.Dictionary, error)
}

// Handler handles capture and dictionary inventory requests.
type Handler struct {
	captureRepo *repository.CaptureRepository
	dictRepo    *repository.DictionaryRepository
	wordlists   WordlistRegistrar
}

// NewHandler creates a new resources handler.
func NewHandler(captureRepo *repository.CaptureRepository, dictRepo *repository.DictionaryRepository, wordlists WordlistRegistrar) *Handler {
	return &Handler{
		captureRepo: captureRepo,
		dictRepo:    dictRepo,
		wordlists:   wordlists,
	}
}

// RegisterCaptureRequest is the payload for POST /captures.
type RegisterCaptureRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Filename string    `json:"filename"`
	FilePath string    `json:"file_path"`
}

// RegisterCapture handles POST /api/v1/captures.
func (h *Handler) RegisterCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Filename == "" || req.FilePath == "" {
		http.Error(w, "Filename and file path are required", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(req.FilePath)
	if err != nil {
		http.Error(w, "Capture file not accessible", http.StatusBadRequest)
		return
	}

	capture := &models.Capture{
		UserID:   req.UserID,
		Filename: req.Filename,
		FilePath: req.FilePath,
		FileSize: info.Size(),
	}
	if err := h.captureRepo.Create(ctx, capture); err != nil {
		debug.Error("Failed to register capture: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, capture)
}

// RegisterDictionaryRequest is the payload for POST /dictionaries.
type RegisterDictionaryRequest struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
}

// RegisterDictionary handles POST /api/v1/dictionaries: an existing wordlist
// file (optionally a .7z archive) is verified, counted and marked ready.
func (h *Handler) RegisterDictionary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterDictionaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.FilePath == "" {
		http.Error(w, "Name and file path are required", http.StatusBadRequest)
		return
	}

	dict, err := h.wordlists.Register(ctx, req.Name, req.FilePath)
	if err != nil {
		debug.Error("Failed to register dictionary: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, dict)
}

// CreatePendingDictionaryRequest is the payload for POST /dictionaries/pending.
type CreatePendingDictionaryRequest struct {
	Name string `json:"name"`
}

// CreatePendingDictionary handles POST /api/v1/dictionaries/pending. It
// reserves a dictionary record that a generation job fills in; the returned ID
// goes into the job's options.
func (h *Handler) CreatePendingDictionary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePendingDictionaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	dict := &models.Dictionary{Name: req.Name, Status: models.DictionaryStatusPending}
	if err := h.dictRepo.Create(ctx, dict); err != nil {
		debug.Error("Failed to create pending dictionary: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, dict)
}

// ListDictionaries handles GET /api/v1/dictionaries.
func (h *Handler) ListDictionaries(w http.ResponseWriter, r *http.Request) {
	list, err := h.dictRepo.List(r.Context())
	if err != nil {
		debug.Error("Failed to list dictionaries: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// DeleteDictionary handles DELETE /api/v1/dictionaries/{id}.
func (h *Handler) DeleteDictionary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid dictionary ID", http.StatusBadRequest)
		return
	}
	if err := h.dictRepo.Delete(r.Context(), id); err != nil {
		if jobs.IsNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		debug.Error("Failed to delete dictionary: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		debug.Error("Failed to encode response: %v", err)
	}
}
