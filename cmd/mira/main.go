// cmd/mira/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"mira/internal/adapters/output"
	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/core/usecases"
	"mira/internal/platform/config"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
	"mira/internal/platform/resilience"
	"mira/internal/platform/ui"

	// Import modules for auto-registration via init()
	_ "mira/internal/modules/dirscan"
	_ "mira/internal/modules/portscan"
	_ "mira/internal/modules/resolve"
	_ "mira/internal/modules/subdomains"
	_ "mira/internal/modules/webtech"
	_ "mira/internal/modules/whois"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Printf("mira %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}

	if len(cfg.Targets) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one target is required")
		fmt.Fprintln(os.Stderr, "Usage: mira -t <host|ip|cidr> [-t ...]")
		fmt.Fprintln(os.Stderr, "Try: mira -h for help")
		os.Exit(2)
	}

	logger := logx.NewWithLevel(logx.ParseLevel(cfg.LogLevel))

	logger.Info("mira starting",
		"version", version,
		"targets", len(cfg.Targets),
		"workers", cfg.Workers,
	)

	ctx, cancel := rootContextWithSignals(cfg.TimeoutS)
	defer cancel()

	// Módulos desde el registry, según la config.
	modules, metadata, err := registry.Global().Build(cfg.Modules, logger)
	if err != nil {
		logger.Err(err, "phase", "module-build")
		os.Exit(2)
	}
	defer func() {
		for _, mod := range modules {
			if err := mod.Close(); err != nil {
				logger.Warn("failed to close module", "module", mod.Name(), "error", err.Error())
			}
		}
	}()

	logger.Info("modules built", "count", len(modules))

	presenter := ui.ForMode(cfg.UI.Mode)
	defer presenter.Close()

	targetSet := usecases.NewTargetSet(usecases.TargetSetOptions{
		RangeCeiling:            cfg.Expansion.RangeCeiling,
		IncludeNetworkBroadcast: cfg.Expansion.IncludeNetworkBroadcast,
		Logger:                  logger,
	})

	controller := usecases.NewRunController(usecases.RunControllerOptions{
		Modules:   modules,
		Metadata:  metadata,
		Workers:   cfg.Workers,
		Retry:     retryPolicy(cfg),
		Breakers:  breakerFactory(cfg),
		TargetSet: targetSet,
		Logger:    logger,
		Notifiers: []ports.Notifier{output.NewPresenterNotifier(presenter)},
	})

	presenter.Start(ui.RunInfo{
		Targets:        len(cfg.Targets),
		Modules:        moduleNames(metadata),
		Workers:        cfg.Workers,
		TimeoutSeconds: cfg.TimeoutS,
	})

	start := time.Now()
	handle, err := controller.Start(ctx, cfg.Targets)
	if err != nil {
		logger.Err(err, "phase", "start")
		os.Exit(2)
	}

	report := handle.Await()
	elapsed := time.Since(start)

	if err := writeOutputs(cfg, report, presenter); err != nil {
		logger.Err(err, "phase", "output")
		os.Exit(1)
	}

	presenter.Finish(ui.RunSummary{
		Duration:   elapsed,
		Records:    len(report.Records),
		TotalUnits: report.Stats.TotalUnits,
		Succeeded:  report.Stats.Succeeded,
		Failed:     report.Stats.Failed,
		Cancelled:  report.Stats.Cancelled,
		Retries:    report.Stats.Retries,
		WasAborted: report.Cancelled,
	})

	logger.Info("mira finished",
		"elapsed_ms", elapsed.Milliseconds(),
		"records", len(report.Records),
		"units", report.Stats.TotalUnits,
		"failed", report.Stats.Failed,
	)

	if report.Cancelled {
		os.Exit(130)
	}
}

// retryPolicy construye la política de backoff desde la config.
func retryPolicy(cfg config.Config) resilience.RetryPolicy {
	policy := resilience.RetryPolicy{
		Base:       cfg.Resilience.BackoffBase,
		Multiplier: cfg.Resilience.BackoffMultiplier,
		Jitter:     cfg.Resilience.BackoffJitter,
		Max:        cfg.Resilience.BackoffMax,
	}
	return policy.Normalize()
}

// breakerFactory retorna la fábrica de circuit breakers por run, o nil si
// están deshabilitados.
func breakerFactory(cfg config.Config) func() *resilience.BreakerSet {
	if !cfg.Resilience.CircuitBreakerEnabled {
		return nil
	}
	return func() *resilience.BreakerSet {
		return resilience.NewBreakerSet(
			cfg.Resilience.CircuitBreakerThreshold,
			cfg.Resilience.CircuitBreakerCooldown,
			cfg.Resilience.CircuitBreakerHalfOpenMax,
		)
	}
}

// writeOutputs decide y ejecuta las salidas según la config.
func writeOutputs(cfg config.Config, report *domain.Report, presenter ui.Presenter) error {
	path, err := output.WriteJSON(cfg.OutputDir, report)
	if err != nil {
		return fmt.Errorf("json output: %w", err)
	}
	presenter.Info(fmt.Sprintf("report written to %s", path))

	if !cfg.Outputs.TableDisabled {
		if err := output.WriteTable(os.Stdout, report); err != nil {
			return fmt.Errorf("table output: %w", err)
		}
	}
	return nil
}

func moduleNames(metadata map[string]ports.ModuleMetadata) []string {
	names := make([]string, 0, len(metadata))
	for name := range metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rootContextWithSignals crea el contexto raíz con timeout global opcional y
// cancelación por señales del sistema.
func rootContextWithSignals(timeoutSeconds int) (context.Context, context.CancelFunc) {
	var base context.Context
	var baseCancel context.CancelFunc

	if timeoutSeconds > 0 {
		base, baseCancel = context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	} else {
		base, baseCancel = context.WithCancel(context.Background())
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			baseCancel()
		case <-base.Done():
		}
	}()

	cleanup := func() {
		signal.Stop(ch)
		baseCancel()
	}

	return base, cleanup
}
