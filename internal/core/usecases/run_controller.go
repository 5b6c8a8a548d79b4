// internal/core/usecases/run_controller.go
package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/logx"
	"mira/internal/platform/resilience"
)

// RunController es el punto de entrada del engine: expande la entrada,
// lanza el scheduler y entrega el reporte final. Todo el estado del run
// vive en el RunHandle; el controller es reutilizable entre runs.
type RunController struct {
	modules   []ports.Module
	metadata  map[string]ports.ModuleMetadata
	workers   int
	retry     resilience.RetryPolicy
	breakers  func() *resilience.BreakerSet
	targetSet *TargetSet
	logger    logx.Logger
	notifiers []ports.Notifier
}

// RunControllerOptions configura el controller.
type RunControllerOptions struct {
	Modules  []ports.Module
	Metadata map[string]ports.ModuleMetadata
	Workers  int
	Retry    resilience.RetryPolicy

	// Breakers fabrica el conjunto de circuit breakers de cada run.
	// nil = deshabilitado.
	Breakers func() *resilience.BreakerSet

	TargetSet *TargetSet
	Logger    logx.Logger
	Notifiers []ports.Notifier
}

// NewRunController crea un controller listo para lanzar runs.
func NewRunController(opts RunControllerOptions) *RunController {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.TargetSet == nil {
		opts.TargetSet = NewTargetSet(TargetSetOptions{Logger: opts.Logger})
	}

	return &RunController{
		modules:   opts.Modules,
		metadata:  opts.Metadata,
		workers:   opts.Workers,
		retry:     opts.Retry,
		breakers:  opts.Breakers,
		targetSet: opts.TargetSet,
		logger:    opts.Logger.With("component", "run-controller"),
		notifiers: opts.Notifiers,
	}
}

// RunHandle representa un run en curso. Permite esperar, consultar o
// cancelar sin exponer el estado interno del scheduler.
type RunHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	report *domain.Report
}

// Cancel aborta el run cooperativamente. Idempotente.
func (h *RunHandle) Cancel() {
	h.cancel()
}

// Done retorna un canal cerrado cuando el run termina.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Await bloquea hasta que el run termina y retorna el reporte.
func (h *RunHandle) Await() *domain.Report {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

func (h *RunHandle) setReport(r *domain.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.report = r
	close(h.done)
}

// Start expande los inputs y lanza el run en background.
// Falla sin arrancar si no hay módulos con los que trabajar.
func (c *RunController) Start(ctx context.Context, raws []string) (*RunHandle, error) {
	if len(c.modules) == 0 {
		return nil, domain.ErrNoModulesAvailable
	}

	expansion := c.targetSet.Expand(raws)

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	handle := &RunHandle{cancel: cancel, done: make(chan struct{})}

	c.logger.Info("run starting",
		"run_id", runID,
		"targets", len(expansion.Targets),
		"skipped", len(expansion.Warnings),
		"modules", len(c.modules),
		"workers", c.workers,
	)

	go func() {
		defer cancel()

		report := &domain.Report{
			RunID:     runID,
			Skipped:   expansion.Warnings,
			StartedAt: time.Now(),
		}

		aggregator := NewAggregator(c.logger)

		var breakers *resilience.BreakerSet
		if c.breakers != nil {
			breakers = c.breakers()
		}

		scheduler := NewScheduler(SchedulerOptions{
			Modules:    c.modules,
			Metadata:   c.metadata,
			Aggregator: aggregator,
			Workers:    c.workers,
			Retry:      c.retry,
			Breakers:   breakers,
			Logger:     c.logger,
			Notifiers:  c.notifiers,
		})

		report.Stats = scheduler.Run(runCtx, expansion.Targets)
		report.Records = aggregator.Records()
		report.Cancelled = runCtx.Err() != nil
		report.Finalize()

		c.logger.Info("run finished", "run_id", runID, "summary", report.Summary())

		handle.setReport(report)
	}()

	return handle, nil
}
