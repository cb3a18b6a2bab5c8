package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment conventions.
const (
	EnvPrefix = "RISK_"
	EnvFile   = "RISK_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RISK_CONFIG is set
//  3. env (prefix RISK_)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// RISK_QUEUE_SIZE -> queue_size. A double underscore nests:
	// RISK_FACTOR_WEIGHTS__FREQUENCY -> factor_weights.frequency.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		if s == strings.TrimPrefix(EnvFile, EnvPrefix) {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: database_dsn is required for driver %q", ErrInvalidConfig, c.DatabaseDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	positive := []struct {
		name string
		v    int
	}{
		{"worker_count", c.WorkerCount},
		{"queue_size", c.QueueSize},
		{"fetch_timeout_ms", c.FetchTimeoutMS},
		{"attendance_window_days", c.AttendanceWindowDays},
		{"population_batch_limit", c.PopulationBatchLimit},
		{"population_top_n", c.PopulationTopN},
		{"workflow_candidate_limit", c.WorkflowCandidateLimit},
		{"intervention_horizon_days", c.InterventionHorizonDays},
		{"dedupe_size", c.DedupeSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("%w: nats_subject is required when nats_url is set", ErrInvalidConfig)
	}
	return nil
}
