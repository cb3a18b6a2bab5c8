// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New builds a Config with defaults; Load layers file and env on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver selects the store: sqlite, pgx or memory.
	DatabaseDriver string `koanf:"database_driver"`

	// DatabaseDSN is passed to the driver unchanged.
	DatabaseDSN string `koanf:"database_dsn"`

	// WorkerCount sets the number of population fan-out workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the fan-out job queue.
	QueueSize int `koanf:"queue_size"`

	// FetchTimeoutMS bounds every individual data-source call.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`

	AttendanceWindowDays    int `koanf:"attendance_window_days"`
	PopulationBatchLimit    int `koanf:"population_batch_limit"`
	PopulationTopN          int `koanf:"population_top_n"`
	WorkflowCandidateLimit  int `koanf:"workflow_candidate_limit"`
	InterventionHorizonDays int `koanf:"intervention_horizon_days"`

	// InterventionOwner is assigned to every created intervention.
	InterventionOwner string `koanf:"intervention_owner"`

	// WorkflowSchedule is a cron spec for the automatic workflow. Empty disables it.
	WorkflowSchedule string `koanf:"workflow_schedule"`

	// DedupeSize caps concurrently in-flight workflow students.
	DedupeSize int `koanf:"dedupe_size"`

	// NATSURL enables intervention events when set.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// FactorWeights overrides scoring weights by factor name.
	FactorWeights map[string]float64 `koanf:"factor_weights"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":8080",
		DatabaseDriver:          "sqlite",
		DatabaseDSN:             "riskengine.db",
		WorkerCount:             runtime.NumCPU() * 2,
		QueueSize:               256,
		FetchTimeoutMS:          2000,
		AttendanceWindowDays:    30,
		PopulationBatchLimit:    1000,
		PopulationTopN:          50,
		WorkflowCandidateLimit:  50,
		InterventionHorizonDays: 7,
		InterventionOwner:       "pedagogical-coordination",
		DedupeSize:              10_000,
		NATSSubject:             "sigte.interventions.created",
	}
}
