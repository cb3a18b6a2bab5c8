// Package service orchestrates risk assessment, population analysis, the
// intervention workflow and dashboard analytics over the data collaborators.
package service

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigte/riskengine/internal/adapters/mq/publisher"
	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/dedupe"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/pkg/logger"
	"github.com/sigte/riskengine/pkg/metrics"
)

const tracerName = "github.com/sigte/riskengine/internal/app"

// Defaults applied when no option overrides them.
const (
	DefaultFetchTimeout           = 2 * time.Second
	DefaultPopulationBatchLimit   = 1000
	DefaultWorkflowCandidateLimit = 50
	DefaultInterventionHorizon    = 7
	DefaultInterventionOwner      = "pedagogical-coordination"
	DefaultQueueSize              = 256
)

// Store is the set of collaborators the service reads from and writes to.
type Store interface {
	repository.StudentDirectory
	repository.AttendanceSource
	repository.IncidentSource
	repository.InterventionStore
	repository.FleetSource
}

// Service owns its collaborators; it keeps no state between calls beyond
// the in-flight workflow guard.
type Service struct {
	store     Store
	composer  *scoring.Composer
	publisher publisher.Publisher
	guard     dedupe.Guard
	clock     func() time.Time
	tracer    trace.Tracer

	fetchTimeout   time.Duration
	windowDays     int
	batchLimit     int
	topN           int
	candidateLimit int
	horizonDays    int
	owner          string
	workerCount    int
	queueSize      int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithComposer sets the factor composer, and with it the factor weights.
func WithComposer(c *scoring.Composer) Option {
	return func(s *Service) {
		if c != nil {
			s.composer = c
		}
	}
}

// WithPublisher sets where created interventions are announced.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithGuard sets the in-flight guard shared by workflow runs.
func WithGuard(g dedupe.Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithFetchTimeout bounds every collaborator call.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithAttendanceWindow sets the trailing attendance window in days.
func WithAttendanceWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithPopulationBatchLimit caps how many active students one population run reads.
func WithPopulationBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithPopulationTopN sets the ranked list length.
func WithPopulationTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithWorkflowCandidateLimit caps auto-selected workflow candidates.
func WithWorkflowCandidateLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidateLimit = n
		}
	}
}

// WithInterventionHorizon sets the expected completion horizon in days.
func WithInterventionHorizon(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

// WithInterventionOwner sets who new interventions are assigned to.
func WithInterventionOwner(owner string) Option {
	return func(s *Service) {
		if owner != "" {
			s.owner = owner
		}
	}
}

// WithWorkerCount sets the population fan-out width.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize sets the population fan-out queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("service: nil store")
	}
	s := &Service{
		store:          store,
		publisher:      publisher.NopPublisher{},
		clock:          time.Now,
		tracer:         otel.Tracer(tracerName),
		fetchTimeout:   DefaultFetchTimeout,
		windowDays:     attendance.DefaultWindowDays,
		batchLimit:     DefaultPopulationBatchLimit,
		topN:           scoring.DefaultTopN,
		candidateLimit: DefaultWorkflowCandidateLimit,
		horizonDays:    DefaultInterventionHorizon,
		owner:          DefaultInterventionOwner,
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.composer == nil {
		c, err := scoring.NewComposer()
		if err != nil {
			return nil, err
		}
		s.composer = c
	}
	if s.guard == nil {
		s.guard = dedupe.NewGuard()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s, nil
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// fetch derives the bounded context used for one collaborator call.
func (s *Service) fetch(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.fetchTimeout)
}

// pinger is implemented by stores that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping reports whether the store is reachable. Stores without a ping are
// assumed healthy.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.store.(pinger)
	if !ok {
		return nil
	}
	fctx, cancel := s.fetch(ctx)
	defer cancel()
	return p.Ping(fctx)
}

// GetStats returns service configuration and runtime figures for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)

	weights := map[string]float64{}
	w := s.composer.Weights()
	for _, k := range scoring.Kinds {
		weights[k.String()] = w[k]
	}
	return map[string]interface{}{
		"workerCount":            s.workerCount,
		"queueSize":              s.queueSize,
		"fetchTimeoutMs":         s.fetchTimeout.Milliseconds(),
		"attendanceWindowDays":   s.windowDays,
		"populationBatchLimit":   s.batchLimit,
		"populationTopN":         s.topN,
		"workflowCandidateLimit": s.candidateLimit,
		"interventionOwner":      s.owner,
		"interventionHorizon":    s.horizonDays,
		"workflowsInFlight":      s.guard.Size(),
		"factorWeights":          weights,
		"goroutines":             goroutines,
		"memoryAllocBytes":       mem.Alloc,
	}
}
