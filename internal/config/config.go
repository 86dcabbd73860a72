// Package config loads runtime settings from an optional YAML file, then
// applies environment overrides, then fills defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type GCSConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Table   string `yaml:"table"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// JobsConfig tunes the reconcile job queue.
type JobsConfig struct {
	Workers    int           `yaml:"workers"`
	BufferSize int           `yaml:"bufferSize"`
	Backoff    time.Duration `yaml:"backoff"`
}

// Config holds everything the binaries need to wire a ledger.
type Config struct {
	Backend  string         `yaml:"backend"`
	DataDir  string         `yaml:"dataDir"`
	GCS      GCSConfig      `yaml:"gcs"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Postgres PostgresConfig `yaml:"postgres"`

	LogLevel string `yaml:"logLevel"`
	Port     string `yaml:"port"`

	Jobs JobsConfig `yaml:"jobs"`
	// ReconcileInterval is how often the worker reconciles every user.
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
}

// Load reads path (skipped when empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: reading %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: parsing %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"LEDGER_BACKEND", &c.Backend},
		{"LEDGER_DATA_DIR", &c.DataDir},
		{"LEDGER_GCS_BUCKET", &c.GCS.Bucket},
		{"LEDGER_GCS_PREFIX", &c.GCS.Prefix},
		{"LEDGER_BQ_PROJECT", &c.BigQuery.Project},
		{"LEDGER_BQ_DATASET", &c.BigQuery.Dataset},
		{"LEDGER_BQ_TABLE", &c.BigQuery.Table},
		{"LEDGER_PG_DSN", &c.Postgres.DSN},
		{"LEDGER_PG_TABLE", &c.Postgres.Table},
		{"LEDGER_LOG_LEVEL", &c.LogLevel},
		{"PORT", &c.Port},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("LEDGER_JOB_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_JOB_WORKERS: %w", err)
		}
		c.Jobs.Workers = n
	}
	if v, ok := lookup("LEDGER_RECONCILE_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEDGER_RECONCILE_INTERVAL: %w", err)
		}
		c.ReconcileInterval = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 2
	}
	if c.Jobs.BufferSize <= 0 {
		c.Jobs.BufferSize = 100
	}
	if c.Jobs.Backoff <= 0 {
		c.Jobs.Backoff = time.Second
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 15 * time.Minute
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.DataDir == "" {
			return fmt.Errorf("%w: dataDir is required for the file backend", ErrInvalidConfig)
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("%w: gcs.bucket is required", ErrInvalidConfig)
		}
	case BackendBigQuery:
		if c.BigQuery.Project == "" || c.BigQuery.Dataset == "" {
			return fmt.Errorf("%w: bigquery.project and bigquery.dataset are required", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres.dsn is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}
