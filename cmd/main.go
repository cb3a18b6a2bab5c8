package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sigte/riskengine/internal/adapters/http/api"
	"github.com/sigte/riskengine/internal/adapters/http/swagger"
	"github.com/sigte/riskengine/internal/adapters/mq/publisher"
	"github.com/sigte/riskengine/internal/adapters/repository"
	service "github.com/sigte/riskengine/internal/app"
	"github.com/sigte/riskengine/internal/config"
	"github.com/sigte/riskengine/internal/domain/dedupe"
	"github.com/sigte/riskengine/internal/domain/scoring"
	"github.com/sigte/riskengine/internal/scheduler"
	"github.com/sigte/riskengine/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout         = 10 * time.Second
	writeTimeout        = 60 * time.Second
	idleTimeout         = 60 * time.Second
	readHeaderTimeout   = 5 * time.Second
	shutdownTimeout     = 30 * time.Second
	statsUpdateInterval = 10 * time.Second
)

func main() {
	// The service exports its own registry; drop the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString("riskengine: " + err.Error() + "\n")
		stop()
		os.Exit(1) //nolint:gocritic // deferred stop already ran
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Error(ctx, "publisher close failed", logger.Error(err))
		}
	}()

	svc, err := newService(cfg, store, pub)
	if err != nil {
		return err
	}

	if cfg.WorkflowSchedule != "" {
		sched, err := scheduler.New(cfg.WorkflowSchedule, svc.RunScheduledWorkflow)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.Warn(ctx, "scheduler stop timed out", logger.Error(err))
			}
		}()
		log.Info(ctx, "intervention workflow scheduled",
			logger.String("spec", sched.Spec()),
			logger.Any("next", sched.Next(time.Now())),
		)
	}

	go startStatsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("driver", cfg.DatabaseDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %v", api.ErrServe, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore opens the configured store. The memory driver starts empty.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseDriver == repository.DriverMemory {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newPublisher connects to NATS when configured.
func newPublisher(cfg *config.Config) (publisher.Publisher, error) {
	if cfg.NATSURL == "" {
		return publisher.NopPublisher{}, nil
	}
	pub, err := publisher.Connect(cfg.NATSURL, publisher.WithSubject(cfg.NATSSubject))
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func newService(cfg *config.Config, store repository.Store, pub publisher.Publisher) (*service.Service, error) {
	composer, err := scoring.NewComposer(scoring.WithWeightsFromConfig(cfg.FactorWeights))
	if err != nil {
		return nil, err
	}
	return service.New(store,
		service.WithComposer(composer),
		service.WithPublisher(pub),
		service.WithGuard(dedupe.NewGuard(dedupe.WithMaxSize(cfg.DedupeSize))),
		service.WithFetchTimeout(time.Duration(cfg.FetchTimeoutMS)*time.Millisecond),
		service.WithAttendanceWindow(cfg.AttendanceWindowDays),
		service.WithPopulationBatchLimit(cfg.PopulationBatchLimit),
		service.WithPopulationTopN(cfg.PopulationTopN),
		service.WithWorkflowCandidateLimit(cfg.WorkflowCandidateLimit),
		service.WithInterventionHorizon(cfg.InterventionHorizonDays),
		service.WithInterventionOwner(cfg.InterventionOwner),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
	)
}

func newMux(ctx context.Context, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// startStatsUpdater refreshes the system gauges until ctx is done.
func startStatsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(statsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
