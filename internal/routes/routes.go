// Package routes wires repositories, services and handlers onto the control
// API router.
package routes

import (
	"net/http"

	"github.com/doomedramen/autopwn/internal/config"
	"github.com/doomedramen/autopwn/internal/db"
	jobshandler "github.com/doomedramen/autopwn/internal/handlers/jobs"
	"github.com/doomedramen/autopwn/internal/handlers/resources"
	wshandler "github.com/doomedramen/autopwn/internal/handlers/websocket"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/internal/wordlist"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/gorilla/mux"
)

// SetupRoutes configures all /api/v1 routes for the control API.
func SetupRoutes(r *mux.Router, database *db.DB, cfg *config.Config, hub *services.NotificationHub) error {
	debug.Info("Setting up /api/v1 control API routes")

	jobRepo := repository.NewJobRepository(database)
	itemRepo := repository.NewJobItemRepository(database)
	captureRepo := repository.NewCaptureRepository(database)
	dictRepo := repository.NewDictionaryRepository(database)
	resultRepo := repository.NewCrackResultRepository(database)

	wordlists, err := wordlist.NewManager(cfg.WordlistDir(), dictRepo)
	if err != nil {
		return err
	}
	batch := services.NewBatchCoordinator(jobRepo, itemRepo, captureRepo, dictRepo)

	jobHandler := jobshandler.NewHandler(jobRepo, itemRepo, resultRepo, captureRepo, dictRepo, batch, hub)
	resourceHandler := resources.NewHandler(captureRepo, dictRepo, wordlists)
	wsHandler := wshandler.NewHandler(hub)

	v1Router := r.PathPrefix("/api/v1").Subrouter()

	v1Router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Job control surface
	v1Router.HandleFunc("/jobs", jobHandler.CreateJob).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs", jobHandler.ListJobs).Methods("GET", "OPTIONS")
	v1Router.HandleFunc("/jobs/retry", jobHandler.RetryBatch).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}", jobHandler.GetJob).Methods("GET", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}", jobHandler.DeleteJob).Methods("DELETE", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/pause", jobHandler.PauseJob).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/resume", jobHandler.ResumeJob).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/stop", jobHandler.StopJob).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/restart", jobHandler.RestartJob).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/priority", jobHandler.SetPriority).Methods("PATCH", "OPTIONS")
	v1Router.HandleFunc("/jobs/{id}/results", jobHandler.GetJobResults).Methods("GET", "OPTIONS")

	// Capture and dictionary inventory
	v1Router.HandleFunc("/captures", resourceHandler.RegisterCapture).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/dictionaries", resourceHandler.RegisterDictionary).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/dictionaries", resourceHandler.ListDictionaries).Methods("GET", "OPTIONS")
	v1Router.HandleFunc("/dictionaries/pending", resourceHandler.CreatePendingDictionary).Methods("POST", "OPTIONS")
	v1Router.HandleFunc("/dictionaries/{id}", resourceHandler.DeleteDictionary).Methods("DELETE", "OPTIONS")

	// Live updates
	v1Router.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	debug.Info("Control API routes registered")
	return nil
}
