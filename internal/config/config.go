package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doomedramen/autopwn/pkg/debug"
)

// Default values for tunables that are normally left alone.
const (
	defaultPollInterval    = 2 * time.Second
	defaultPersistInterval = 5 * time.Second
	defaultStalledAfter    = 2 * time.Minute
	defaultMaxJobRuntime   = 24 * time.Hour
	defaultRetentionDays   = 0 // keep forever
)

// Config holds the runtime configuration for the server and workers.
// All values come from the environment; a .env file is loaded by the
// entrypoints before Load is called.
type Config struct {
	// DatabaseURL is the Postgres connection string.
	DatabaseURL string

	// DataDir is the root for captures, hash files, wordlists and potfile.
	DataDir string

	// HTTPAddr is the listen address for the control API.
	HTTPAddr string

	// Per worker type concurrency limits.
	CaptureWorkers    int
	DictionaryWorkers int
	CrackWorkers      int

	// PollInterval is how often idle runners ask the scheduler for work.
	PollInterval time.Duration

	// ProgressPersistInterval throttles progress writes to the job store.
	// Live broadcasts are never throttled.
	ProgressPersistInterval time.Duration

	// StalledAfter is how long a processing job may go without a heartbeat
	// before the scheduler returns it to the pending pool.
	StalledAfter time.Duration

	// MaxJobRuntime forces a stop on jobs that run longer than this.
	MaxJobRuntime time.Duration

	// External tool binaries.
	HashcatBin string
	HcxToolBin string
	CrunchBin  string

	// WorkloadProfile is the default hashcat -w value.
	WorkloadProfile int

	// RetentionDays controls cleanup of finished jobs. Zero keeps them forever.
	RetentionDays int
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DataDir:                 getEnvString("DATA_DIR", "./data"),
		HTTPAddr:                getEnvString("HTTP_ADDR", ":8080"),
		CaptureWorkers:          getEnvInt("CAPTURE_WORKERS", 1),
		DictionaryWorkers:       getEnvInt("DICTIONARY_WORKERS", 1),
		CrackWorkers:            getEnvInt("CRACK_WORKERS", 1),
		PollInterval:            getEnvDuration("POLL_INTERVAL", defaultPollInterval),
		ProgressPersistInterval: getEnvDuration("PROGRESS_PERSIST_INTERVAL", defaultPersistInterval),
		StalledAfter:            getEnvDuration("STALLED_AFTER", defaultStalledAfter),
		MaxJobRuntime:           getEnvDuration("MAX_JOB_RUNTIME", defaultMaxJobRuntime),
		HashcatBin:              getEnvString("HASHCAT_BIN", "hashcat"),
		HcxToolBin:              getEnvString("HCXTOOL_BIN", "hcxpcapngtool"),
		CrunchBin:               getEnvString("CRUNCH_BIN", "crunch"),
		WorkloadProfile:         getEnvInt("WORKLOAD_PROFILE", 3),
		RetentionDays:           getEnvInt("RETENTION_DAYS", defaultRetentionDays),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.CaptureWorkers < 0 || c.DictionaryWorkers < 0 || c.CrackWorkers < 0 {
		return fmt.Errorf("worker concurrency limits must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.ProgressPersistInterval <= 0 {
		return fmt.Errorf("progress persist interval must be positive, got %v", c.ProgressPersistInterval)
	}
	if c.WorkloadProfile < 1 || c.WorkloadProfile > 4 {
		return fmt.Errorf("workload profile must be 1-4, got %d", c.WorkloadProfile)
	}
	return nil
}

// ConcurrencyLimit returns the configured limit for a worker type string.
func (c *Config) ConcurrencyLimit(workerType string) int {
	switch workerType {
	case "capture":
		return c.CaptureWorkers
	case "dictionary":
		return c.DictionaryWorkers
	case "crack":
		return c.CrackWorkers
	default:
		return 0
	}
}

// PotfilePath returns the location of the shared potfile under DataDir.
func (c *Config) PotfilePath() string {
	return filepath.Join(c.DataDir, "autopwn.potfile")
}

// HashFileDir returns the directory for extracted hash files.
func (c *Config) HashFileDir() string {
	return filepath.Join(c.DataDir, "hashes")
}

// WordlistDir returns the directory for dictionary files.
func (c *Config) WordlistDir() string {
	return filepath.Join(c.DataDir, "wordlists")
}

// CaptureDir returns the directory for uploaded capture files.
func (c *Config) CaptureDir() string {
	return filepath.Join(c.DataDir, "captures")
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		debug.Warning("Invalid %s value: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		debug.Warning("Invalid %s value: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
