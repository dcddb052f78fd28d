// The worker binary runs a headless pool of job runners against a shared
// database, for scaling crack throughput beyond the server process. It claims
// jobs through the same atomic claim path as the in-server runners; live event
// broadcast stays local, progress reaches dashboards through the job store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/doomedramen/autopwn/internal/config"
	"github.com/doomedramen/autopwn/internal/db"
	"github.com/doomedramen/autopwn/internal/models"
	"github.com/doomedramen/autopwn/internal/repository"
	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/internal/wordlist"
	"github.com/doomedramen/autopwn/internal/worker"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/joho/godotenv"
)

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jobRepo := repository.NewJobRepository(database)
	itemRepo := repository.NewJobItemRepository(database)
	captureRepo := repository.NewCaptureRepository(database)
	dictRepo := repository.NewDictionaryRepository(database)
	resultRepo := repository.NewCrackResultRepository(database)

	wordlists, err := wordlist.NewManager(cfg.WordlistDir(), dictRepo)
	if err != nil {
		debug.Error("Failed to initialize wordlist manager: %v", err)
		os.Exit(1)
	}
	potfile, err := services.NewPotfileService(cfg.PotfilePath())
	if err != nil {
		debug.Error("Failed to initialize potfile: %v", err)
		os.Exit(1)
	}

	hub := services.NewNotificationHub(services.DefaultSubscriberBuffer)
	scheduler := services.NewScheduler(jobRepo, hub, services.SchedulerConfig{
		Limits: map[models.JobType]int{
			models.JobTypeCapture:    cfg.CaptureWorkers,
			models.JobTypeDictionary: cfg.DictionaryWorkers,
			models.JobTypeCrack:      cfg.CrackWorkers,
		},
		StalledAfter:  cfg.StalledAfter,
		MaxJobRuntime: cfg.MaxJobRuntime,
	})

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

	supervisor := worker.NewSupervisor(scheduler, deps,
		worker.NewCaptureRunner(deps),
		worker.NewDictionaryRunner(deps),
		worker.NewCrackRunner(deps),
	)
	supervisor.Start(ctx)
	debug.Info("Worker pool started (capture=%d dictionary=%d crack=%d)",
		cfg.CaptureWorkers, cfg.DictionaryWorkers, cfg.CrackWorkers)

	<-ctx.Done()
	debug.Info("Shutdown signal received, draining runners")
	supervisor.Wait()
	debug.Info("Worker pool stopped")
}
