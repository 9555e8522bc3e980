// Command pooldemo exercises object pools: it replays the reference
// checkout scenario, then drives a concurrent workload and prints a report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coachpo/objpool/config"
	"github.com/coachpo/objpool/internal/counter"
	"github.com/coachpo/objpool/internal/pool"
	"github.com/coachpo/objpool/internal/telemetry"
)

const (
	defaultConfigPath        = "config/objpool.yaml"
	demoLoggerPrefix         = "pooldemo "
	referencePoolName        = "reference"
	telemetryShutdownTimeout = 5 * time.Second
)

type counterPool = pool.Pool[*counter.Counter, counter.Args]

func main() {
	cfgPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	workers := flag.Int("workers", 0, "override workload worker count")
	iterations := flag.Int("iterations", 0, "override workload iterations per worker")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, demoLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
	if err := run(ctx, logger, *cfgPath, *workers, *iterations); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, cfgPath string, workers, iterations int) error {
	cfg, loadedFromFile, err := config.LoadOrDefault(ctx, cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	cfg = config.Apply(cfg, config.WithWorkload(workers, iterations))
	logger.Printf("configuration initialised: env=%s, pools=%d, workers=%d",
		cfg.Environment, len(cfg.Pools), cfg.Workload.Workers)

	runID := uuid.NewString()
	tel, err := telemetry.Init(ctx, cfg.Telemetry,
		telemetry.WithEnvironment(string(cfg.Environment)), telemetry.WithRunID(runID))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	metrics := pool.NewMetrics(prometheus.NewRegistry())
	manager := pool.NewManager(logger)

	reference, err := pool.New(0, 2, counter.Build, counter.Args{Initial: 5},
		pool.WithName(referencePoolName), pool.WithLogger(logger), pool.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("build reference pool: %w", err)
	}
	if err := manager.Register(reference); err != nil {
		return err
	}
	var workload *counterPool
	for _, ps := range cfg.Pools {
		p, err := pool.New(ps.InitialCount, ps.MaxSize, counter.Build, counter.Args{Initial: ps.InitialValue},
			pool.WithName(ps.Name), pool.WithLogger(logger), pool.WithMetrics(metrics))
		if err != nil {
			return fmt.Errorf("build pool %s: %w", ps.Name, err)
		}
		if err := manager.Register(p); err != nil {
			return err
		}
		if workload == nil {
			workload = p
		}
	}
	if err := tel.ObserveManager(manager); err != nil {
		logger.Printf("observe pools: %v", err)
	}

	tracer := tel.Tracer("objpool/pooldemo")
	ctx, span := tracer.Start(ctx, "pooldemo.run")
	span.SetAttributes(telemetry.AttrRunID.String(runID))
	defer span.End()

	scenario, err := runScenario(logger, reference)
	if err != nil {
		return fmt.Errorf("reference scenario: %w", err)
	}

	result, err := runWorkload(ctx, cfg.Workload, workload)
	if err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	logger.Printf("workload finished: completed=%d exhausted=%d gave_up=%d",
		result.Completed, result.Exhausted, result.GaveUp)

	report, err := encodeJSON(demoReport{
		RunID:       runID,
		Environment: string(cfg.Environment),
		Scenario:    scenario,
		Workload:    result,
		Pools:       manager.Snapshot(),
	})
	if err != nil {
		return err
	}
	fmt.Println(string(report))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Workload.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown pools: %w", err)
	}
	return nil
}
