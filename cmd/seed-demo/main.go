package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sigte/riskengine/internal/adapters/repository"
	"github.com/sigte/riskengine/internal/config"
	"github.com/sigte/riskengine/internal/demodata"
	"github.com/sigte/riskengine/pkg/logger"
)

// Default tool constants.
const (
	defaultTimeout = 30 * time.Second
	runTimeout     = 10 * time.Minute
)

func main() {
	cfg, err := config.Load(context.Background())
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		driver   = flag.String("driver", cfg.DatabaseDriver, "Store driver: sqlite or pgx")
		dsn      = flag.String("dsn", cfg.DatabaseDSN, "Store DSN")
		schools  = flag.Int("schools", demodata.DefaultSchools, "Number of schools")
		routes   = flag.Int("routes", demodata.DefaultRoutes, "Number of routes")
		students = flag.Int("students", demodata.DefaultStudents, "Number of students")
		days     = flag.Int("days", demodata.DefaultDays, "Attendance history in days")
		seed     = flag.Uint64("seed", demodata.DefaultSeed, "Generator seed")
		verify   = flag.String("verify", "", "Base URL of a running service to verify")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP timeout for verification")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		demodata.ShowHelp(os.Stdout)
		return
	}
	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	gen := demodata.Config{
		Schools:  *schools,
		Routes:   *routes,
		Students: *students,
		Days:     *days,
		Seed:     *seed,
		Now:      time.Now(),
	}
	if err := seedAndVerify(ctx, *driver, *dsn, gen, *verify, *timeout); err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}

func seedAndVerify(ctx context.Context, driver, dsn string, gen demodata.Config, verifyURL string, timeout time.Duration) error {
	if driver == repository.DriverMemory {
		return fmt.Errorf("driver %q does not outlive this process; use sqlite or pgx", driver)
	}
	ds, err := demodata.Generate(ctx, gen)
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := demodata.Load(ctx, store, ds); err != nil {
		return err
	}
	if verifyURL == "" {
		return nil
	}
	_, err = demodata.Verify(ctx, verifyURL, timeout)
	return err
}
