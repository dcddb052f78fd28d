package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/autopwn_test?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 1, cfg.CaptureWorkers)
	assert.Equal(t, 1, cfg.CrackWorkers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.ProgressPersistInterval)
	assert.Equal(t, 2*time.Minute, cfg.StalledAfter)
	assert.Equal(t, "hashcat", cfg.HashcatBin)
	assert.Equal(t, "hcxpcapngtool", cfg.HcxToolBin)
	assert.Equal(t, "crunch", cfg.CrunchBin)
	assert.Equal(t, 3, cfg.WorkloadProfile)
	assert.Zero(t, cfg.RetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/autopwn_test?sslmode=disable")
	t.Setenv("CRACK_WORKERS", "4")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("HASHCAT_BIN", "/opt/hashcat/hashcat.bin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.CrackWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "/opt/hashcat/hashcat.bin", cfg.HashcatBin)
}

func TestLoadInvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/autopwn_test?sslmode=disable")
	t.Setenv("CRACK_WORKERS", "lots")
	t.Setenv("POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.CrackWorkers)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"negative workers", func(c *Config) { c.CrackWorkers = -1 }, true},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"zero persist interval", func(c *Config) { c.ProgressPersistInterval = 0 }, true},
		{"workload profile too high", func(c *Config) { c.WorkloadProfile = 5 }, true},
		{"workload profile zero", func(c *Config) { c.WorkloadProfile = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabaseURL:             "postgres://localhost/x",
				PollInterval:            time.Second,
				ProgressPersistInterval: time.Second,
				WorkloadProfile:         3,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConcurrencyLimit(t *testing.T) {
	cfg := &Config{CaptureWorkers: 1, DictionaryWorkers: 2, CrackWorkers: 3}
	assert.Equal(t, 1, cfg.ConcurrencyLimit("capture"))
	assert.Equal(t, 2, cfg.ConcurrencyLimit("dictionary"))
	assert.Equal(t, 3, cfg.ConcurrencyLimit("crack"))
	assert.Zero(t, cfg.ConcurrencyLimit("unknown"))
}

func TestDataDirPaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/autopwn"}
	assert.Equal(t, "/srv/autopwn/autopwn.potfile", cfg.PotfilePath())
	assert.Equal(t, "/srv/autopwn/hashes", cfg.HashFileDir())
	assert.Equal(t, "/srv/autopwn/wordlists", cfg.WordlistDir())
	assert.Equal(t, "/srv/autopwn/captures", cfg.CaptureDir())
}
