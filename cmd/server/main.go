package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doomedramen/autopwn/internal/config"
	"github.com/doomedramen/autopwn/internal/db"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/internal/routes"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/internal/wordlist"
	"github.com/doomedramen/autopwn/internal/worker"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		debug.Warning("No .env file found, using environment variables")
	}
	debug.Reinitialize()

	cfg, err := config.Load()
	if err != nil {
		debug.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		debug.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		debug.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := services.NewNotificationHub(services.DefaultSubscriberBuffer)

	router := mux.NewRouter()
	if err := routes.SetupRoutes(router, database, cfg, hub); err != nil {
		debug.Error("Failed to set up routes: %v", err)
		os.Exit(1)
	}

	jobRepo := repository.NewJobRepository(database)
	scheduler := services.NewScheduler(jobRepo, hub, services.SchedulerConfig{
		Limits: map[models.JobType]int{
			models.JobTypeCapture:    cfg.CaptureWorkers,
			models.JobTypeDictionary: cfg.DictionaryWorkers,
			models.JobTypeCrack:      cfg.CrackWorkers,
		},
		StalledAfter:  cfg.StalledAfter,
		MaxJobRuntime: cfg.MaxJobRuntime,
	})
	if err := scheduler.Start(ctx); err != nil {
		debug.Error("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	cleanup := services.NewCleanupService(jobRepo, cfg.RetentionDays)
	if err := cleanup.Start(ctx); err != nil {
		debug.Error("Failed to start cleanup service: %v", err)
		os.Exit(1)
	}
	defer cleanup.Stop()

	supervisor, err := buildSupervisor(cfg, database, scheduler, hub)
	if err != nil {
		debug.Error("Failed to build worker supervisor: %v", err)
		os.Exit(1)
	}
	supervisor.Start(ctx)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		debug.Info("Control API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			debug.Error("HTTP server failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	debug.Info("Shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		debug.Error("HTTP server shutdown failed: %v", err)
	}
	supervisor.Wait()
	debug.Info("Shutdown complete")
}

// buildSupervisor assembles the in-process worker runners. The server binary
// runs the full stack; additional headless workers can be added with the
// worker binary.
func buildSupervisor(cfg *config.Config, database *db.DB, scheduler *services.Scheduler, hub *services.NotificationHub) (*worker.Supervisor, error) {
	jobRepo := repository.NewJobRepository(database)
	itemRepo := repository.NewJobItemRepository(database)
	captureRepo := repository.NewCaptureRepository(database)
	dictRepo := repository.NewDictionaryRepository(database)
	resultRepo := repository.NewCrackResultRepository(database)

	wordlists, err := wordlist.NewManager(cfg.WordlistDir(), dictRepo)
	if err != nil {
		return nil, err
	}
	potfile, err := services.NewPotfileService(cfg.PotfilePath())
	if err != nil {
		return nil, err
	}

	reporter := services.NewProgressReporter(jobRepo, hub, cfg.ProgressPersistInterval)
	deps := worker.Deps{
		Cfg:         cfg,
		JobRepo:     jobRepo,
		ItemRepo:    itemRepo,
		CaptureRepo: captureRepo,
		ResultRepo:  resultRepo,
		Reporter:    reporter,
		Publisher:   hub,
		Potfile:     potfile,
		Wordlists:   wordlists,
	}

	return worker.NewSupervisor(scheduler, deps,
		worker.NewCaptureRunner(deps),
		worker.NewDictionaryRunner(deps),
		worker.NewCrackRunner(deps),
	), nil
}
