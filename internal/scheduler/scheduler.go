// Package scheduler runs a recurring task on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sigte/riskengine/pkg/logger"
)

// Task is the unit of work run on each tick.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner with a single entry. Overlapping ticks are
// skipped while a previous run is still in progress.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	task     Task
	timeout  time.Duration
	cron     *cron.Cron
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each run of the task.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New parses spec (standard five-field cron or a descriptor such as
// "@hourly" or "@every 1h") and prepares a scheduler for task.
func New(spec string, task Task, opts ...Option) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
	}
	s := &Scheduler{
		spec:     spec,
		schedule: schedule,
		task:     task,
		timeout:  5 * time.Minute,
		logger:   logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{l: s.logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s.cron.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

// Spec returns the configured cron expression.
func (s *Scheduler) Spec() string { return s.spec }

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.schedule.Next(t) }

// Start begins ticking. Runs derive their context from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info(ctx, "scheduler started",
		logger.String("spec", s.spec),
		logger.Any("next_run", s.Next(time.Now())),
	)
}

// Stop halts ticking, cancels any running task and waits for it to finish
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-done.Done():
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run() {
	parent := s.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.task(ctx); err != nil {
		s.logger.Error(ctx, "scheduled run failed", logger.Error(err), logger.Duration("took", time.Since(start)))
		return
	}
	s.logger.Info(ctx, "scheduled run finished", logger.Duration("took", time.Since(start)))
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
