// internal/core/usecases/scheduler.go
package usecases

import (
	"context"
	"sort"
	"time"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
	"mira/internal/platform/rate"
	"mira/internal/platform/resilience"
	"mira/internal/platform/workerpool"
)

// Scheduler es el corazón de concurrencia del engine. Un event loop único
// es el dueño de todo el estado de unidades y targets: los workers ejecutan
// módulos y reportan por canal, el loop decide qué despachar, qué
// reintentar y cuándo asentar cada target. Los módulos se re-evalúan cada
// vez que un target gana campos nuevos, de modo que las dependencias se
// encadenan sin un grafo explícito.
type Scheduler struct {
	modules  map[string]ports.Module
	metadata map[string]ports.ModuleMetadata
	order    []string // módulos ordenados por prioridad de despacho

	aggregator *Aggregator
	limiters   map[string]*rate.Limiter
	breakers   *resilience.BreakerSet
	retry      resilience.RetryPolicy

	workers   int
	logger    logx.Logger
	notifiers []ports.Notifier
}

// SchedulerOptions configura el scheduler.
type SchedulerOptions struct {
	Modules    []ports.Module
	Metadata   map[string]ports.ModuleMetadata
	Aggregator *Aggregator
	Workers    int
	Retry      resilience.RetryPolicy
	Breakers   *resilience.BreakerSet // nil = circuit breaker deshabilitado
	Logger     logx.Logger
	Notifiers  []ports.Notifier
}

// NewScheduler crea un scheduler a partir de los módulos construidos por
// el registry.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	modules := make(map[string]ports.Module, len(opts.Modules))
	for _, m := range opts.Modules {
		modules[m.Name()] = m
	}

	limiters := make(map[string]*rate.Limiter)
	order := make([]string, 0, len(opts.Metadata))
	for name, meta := range opts.Metadata {
		order = append(order, name)
		if meta.Rate > 0 {
			burst := meta.Burst
			if burst <= 0 {
				burst = 1
			}
			limiters[name] = rate.New(meta.Rate, burst)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		pi, pj := opts.Metadata[order[i]].Priority, opts.Metadata[order[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return order[i] < order[j]
	})

	return &Scheduler{
		modules:    modules,
		metadata:   opts.Metadata,
		order:      order,
		aggregator: opts.Aggregator,
		limiters:   limiters,
		breakers:   opts.Breakers,
		retry:      opts.Retry.Normalize(),
		workers:    opts.Workers,
		logger:     opts.Logger.With("component", "scheduler"),
		notifiers:  opts.Notifiers,
	}
}

// targetState es el estado por target, propiedad exclusiva del event loop.
type targetState struct {
	target    *domain.Target
	attrs     map[string]bool
	scheduled map[string]bool
	active    int // unidades no terminales (pending, running o en espera de retry)
	settled   bool
}

// unitTask ejecuta una unidad en un worker. Los campos se capturan en el
// despacho; el loop solo lee result tras recibir el TaskResult por canal.
// runCtx es el contexto del run: el pool vive en un contexto propio para
// que la entrega de resultados sobreviva a la cancelación del run.
type unitTask struct {
	key     string
	unit    *domain.WorkUnit
	module  ports.Module
	target  domain.Target
	input   domain.FieldSnapshot
	timeout time.Duration
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	runCtx  context.Context

	result *domain.ModuleResult
}

func (t *unitTask) Name() string { return t.key }

func (t *unitTask) Execute(_ context.Context) error {
	if t.breaker != nil && !t.breaker.Allow() {
		return errors.Wrapf(resilience.ErrCircuitOpen, "module %s", t.module.Name())
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(t.runCtx); err != nil {
			return err
		}
	}

	execCtx := t.runCtx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(t.runCtx, t.timeout)
		defer cancel()
	}

	result, err := t.module.Execute(execCtx, t.target, t.input)
	if err != nil {
		if t.breaker != nil {
			t.breaker.RecordFailure()
		}
		if errors.Is(err, context.DeadlineExceeded) && t.runCtx.Err() == nil {
			return errors.Wrapf(errors.ErrTimeout, "module %s", t.module.Name())
		}
		return err
	}

	if t.breaker != nil {
		t.breaker.RecordSuccess()
	}
	t.result = result
	return nil
}

// Run ejecuta todas las unidades derivadas de los targets hasta que cada
// target queda asentado o el contexto se cancela. Retorna las estadísticas
// del run; el resultado consolidado queda en el Aggregator.
func (s *Scheduler) Run(ctx context.Context, targets []*domain.Target) domain.RunStats {
	var stats domain.RunStats

	states := make(map[string]*targetState, len(targets))
	var pending []*domain.WorkUnit
	retryCh := make(chan *domain.WorkUnit)
	retryTimers := make(map[string]*time.Timer)
	retryWaiting := make(map[string]*domain.WorkUnit)
	loopDone := make(chan struct{})
	defer close(loopDone)

	inflight := 0
	running := make(map[string]int) // unidades Running por módulo

	// El pool corre en su propio contexto: la cancelación del run llega a
	// las tareas via runCtx, pero los resultados siempre se entregan.
	pool := workerpool.New(s.workers, s.logger)
	pool.Start(context.Background())
	defer pool.Stop()

	// Siembra: estado inicial y unidades aplicables de salida.
	for _, target := range targets {
		if _, dup := states[target.Identity]; dup {
			continue
		}
		s.aggregator.Open(*target)

		st := &targetState{
			target:    target,
			attrs:     make(map[string]bool),
			scheduled: make(map[string]bool),
		}
		for _, f := range target.SeedFields() {
			st.attrs[f] = true
		}
		states[target.Identity] = st

		pending = append(pending, s.scheduleApplicable(st, &stats)...)
	}

	s.notify(ctx, ports.EventTypeRunStarted, map[string]any{"targets": len(states), "units": stats.TotalUnits})

	cancelled := false
	done := ctx.Done()

	unsettledRemain := func() bool {
		for _, st := range states {
			if !st.settled {
				return true
			}
		}
		return false
	}

	for unsettledRemain() {
		if !cancelled {
			pending = s.dispatch(ctx, pool, pending, running, &inflight)
		}

		if !cancelled && inflight == 0 && len(pending) == 0 && len(retryWaiting) == 0 {
			// Nada en vuelo ni por venir: asentar lo que quede.
			s.settleIdle(ctx, states)
			continue
		}
		if cancelled && inflight == 0 {
			s.settleIdle(ctx, states)
			continue
		}

		select {
		case <-done:
			done = nil // el canal cerrado no debe re-disparar el select
			cancelled = true
			s.logger.Warn("run cancelled, draining in-flight units", "inflight", inflight)

			// Pendientes y retries en espera pasan a Cancelled de inmediato.
			for _, unit := range pending {
				s.cancelUnit(unit, states, &stats)
			}
			pending = nil
			for key, timer := range retryTimers {
				timer.Stop()
				if unit, ok := retryWaiting[key]; ok {
					s.cancelUnit(unit, states, &stats)
					delete(retryWaiting, key)
				}
				delete(retryTimers, key)
			}

		case unit := <-retryCh:
			delete(retryWaiting, unit.Key())
			delete(retryTimers, unit.Key())
			if cancelled {
				s.cancelUnit(unit, states, &stats)
				continue
			}
			pending = append(pending, unit)

		case res, ok := <-pool.Results():
			if !ok {
				continue
			}
			task := res.Task.(*unitTask)
			inflight--
			running[task.unit.Module]--

			if cancelled {
				s.cancelUnit(task.unit, states, &stats)
				continue
			}

			s.handleResult(ctx, task, res.Error, states, &stats, &pending, retryCh, retryTimers, retryWaiting, loopDone)
		}
	}

	if cancelled {
		s.notify(ctx, ports.EventTypeRunCancelled, stats)
	} else {
		s.notify(ctx, ports.EventTypeRunCompleted, stats)
	}

	return stats
}

// scheduleApplicable crea unidades para los módulos recién habilitados por
// los atributos actuales del target.
func (s *Scheduler) scheduleApplicable(st *targetState, stats *domain.RunStats) []*domain.WorkUnit {
	var units []*domain.WorkUnit
	for _, name := range s.order {
		if st.scheduled[name] {
			continue
		}
		meta := s.metadata[name]
		if !meta.SatisfiedBy(st.attrs) {
			continue
		}
		st.scheduled[name] = true
		st.active++
		stats.TotalUnits++
		units = append(units, domain.NewWorkUnit(st.target, name))

		s.logger.Debug("unit scheduled", "target", st.target.Identity, "module", name)
	}
	return units
}

// dispatch envía unidades pendientes al pool respetando la concurrencia
// global y el peso por módulo. Retorna las que no cupieron.
func (s *Scheduler) dispatch(ctx context.Context, pool *workerpool.WorkerPool, pending []*domain.WorkUnit, running map[string]int, inflight *int) []*domain.WorkUnit {
	var held []*domain.WorkUnit

	for _, unit := range pending {
		if *inflight >= s.workers {
			held = append(held, unit)
			continue
		}

		meta := s.metadata[unit.Module]
		if meta.Weight > 0 && running[unit.Module] >= meta.Weight {
			held = append(held, unit)
			continue
		}

		input, err := s.aggregator.Snapshot(unit.Target.Identity)
		if err != nil {
			s.logger.Err(err, "phase", "dispatch-snapshot", "unit", unit.Key())
			held = append(held, unit)
			continue
		}

		if err := unit.BeginAttempt(); err != nil {
			s.logger.Err(err, "phase", "dispatch-transition", "unit", unit.Key())
			continue
		}

		task := &unitTask{
			key:     unit.Key(),
			unit:    unit,
			module:  s.modules[unit.Module],
			target:  *unit.Target,
			input:   input,
			timeout: meta.Timeout,
			limiter: s.limiters[unit.Module],
			runCtx:  ctx,
		}
		if s.breakers != nil {
			task.breaker = s.breakers.For(unit.Module)
		}

		if !pool.Submit(task) {
			// No debería ocurrir: la cola tiene capacidad 2×workers y el
			// loop limita inflight a workers. Revertir el intento.
			_ = unit.TransitionTo(domain.UnitFailed)
			_ = unit.TransitionTo(domain.UnitPending)
			unit.Attempt--
			held = append(held, unit)
			continue
		}

		*inflight++
		running[unit.Module]++
	}

	return held
}

// handleResult procesa el desenlace de una unidad ejecutada.
func (s *Scheduler) handleResult(
	ctx context.Context,
	task *unitTask,
	execErr error,
	states map[string]*targetState,
	stats *domain.RunStats,
	pending *[]*domain.WorkUnit,
	retryCh chan *domain.WorkUnit,
	retryTimers map[string]*time.Timer,
	retryWaiting map[string]*domain.WorkUnit,
	loopDone chan struct{},
) {
	unit := task.unit
	st := states[unit.Target.Identity]

	if execErr == nil {
		_ = unit.TransitionTo(domain.UnitSucceeded)
		stats.Succeeded++

		if task.result != nil {
			if err := s.aggregator.Merge(unit.Target.Identity, task.result); err != nil {
				s.logger.Err(err, "phase", "merge", "unit", unit.Key())
			} else {
				for _, field := range task.result.FieldNames() {
					st.attrs[field] = true
				}
			}
		}

		s.logger.Info("unit succeeded",
			"target", unit.Target.Identity,
			"module", unit.Module,
			"attempt", unit.Attempt,
		)
		s.notify(ctx, ports.EventTypeUnitSucceeded, ports.UnitEvent{
			Target: unit.Target.Identity, Module: unit.Module, Attempt: unit.Attempt,
		})

		// Los campos nuevos pueden habilitar módulos encadenados.
		*pending = append(*pending, s.scheduleApplicable(st, stats)...)

		st.active--
		s.maybeSettle(ctx, st, false)
		return
	}

	class := Classify(execErr)
	meta := s.metadata[unit.Module]

	switch class {
	case domain.FailureCancelled:
		s.cancelRunningUnit(unit, st, stats)

	case domain.FailureTransient:
		if unit.Attempt <= meta.MaxRetries {
			// Quedan reintentos: Failed → Pending tras el backoff.
			_ = unit.TransitionTo(domain.UnitFailed)
			_ = unit.TransitionTo(domain.UnitPending)
			delay := s.retry.Delay(unit.Attempt)

			s.logger.Warn("unit failed, retrying",
				"target", unit.Target.Identity,
				"module", unit.Module,
				"attempt", unit.Attempt,
				"max_retries", meta.MaxRetries,
				"delay_ms", delay.Milliseconds(),
				"error", execErr.Error(),
			)
			s.notify(ctx, ports.EventTypeUnitRetried, ports.UnitEvent{
				Target: unit.Target.Identity, Module: unit.Module, Attempt: unit.Attempt,
			})

			stats.Retries++
			retryWaiting[unit.Key()] = unit
			retryTimers[unit.Key()] = time.AfterFunc(delay, func() {
				select {
				case retryCh <- unit:
				case <-loopDone:
				}
			})
			return
		}
		s.failUnit(ctx, unit, st, stats, class, execErr)

	case domain.FailureFatal:
		s.failUnit(ctx, unit, st, stats, class, execErr)
	}
}

// failUnit marca la unidad como fallida terminal y lo refleja en el record.
func (s *Scheduler) failUnit(ctx context.Context, unit *domain.WorkUnit, st *targetState, stats *domain.RunStats, class domain.FailureClass, execErr error) {
	_ = unit.TransitionTo(domain.UnitFailed)
	stats.Failed++

	failure := domain.UnitFailure{
		Module:   unit.Module,
		Class:    class,
		Message:  execErr.Error(),
		Attempts: unit.Attempt,
		At:       time.Now(),
	}
	if err := s.aggregator.RecordFailure(unit.Target.Identity, failure); err != nil {
		s.logger.Err(err, "phase", "record-failure", "unit", unit.Key())
	}

	s.logger.Warn("unit failed",
		"target", unit.Target.Identity,
		"module", unit.Module,
		"class", string(class),
		"attempts", unit.Attempt,
		"error", execErr.Error(),
	)
	s.notify(ctx, ports.EventTypeUnitFailed, ports.UnitEvent{
		Target: unit.Target.Identity, Module: unit.Module, Attempt: unit.Attempt,
	})

	st.active--
	s.maybeSettle(ctx, st, false)
}

// cancelUnit cancela una unidad no terminal fuera de ejecución.
func (s *Scheduler) cancelUnit(unit *domain.WorkUnit, states map[string]*targetState, stats *domain.RunStats) {
	if unit.State.Terminal() {
		return
	}
	_ = unit.TransitionTo(domain.UnitCancelled)
	stats.Cancelled++

	if st, ok := states[unit.Target.Identity]; ok {
		st.active--
	}
}

// cancelRunningUnit cancela una unidad cuyo worker terminó por aborto.
func (s *Scheduler) cancelRunningUnit(unit *domain.WorkUnit, st *targetState, stats *domain.RunStats) {
	_ = unit.TransitionTo(domain.UnitCancelled)
	stats.Cancelled++
	st.active--
}

// maybeSettle asienta el target si no le quedan unidades vivas ni módulos
// por habilitar.
func (s *Scheduler) maybeSettle(ctx context.Context, st *targetState, asCancelled bool) {
	if st.settled || st.active > 0 {
		return
	}

	status := domain.RecordFinalized
	if asCancelled {
		status = domain.RecordCancelled
	}

	if err := s.aggregator.Complete(st.target.Identity, status); err != nil {
		s.logger.Err(err, "phase", "settle", "target", st.target.Identity)
		return
	}
	st.settled = true

	s.logger.Info("target settled", "target", st.target.Identity, "status", string(status))

	event := ports.TargetEvent{Identity: st.target.Identity}
	if record, err := s.aggregator.Finalize(st.target.Identity); err == nil {
		event.Fields = len(record.FieldNames())
		event.Failures = len(record.Failures)
	}
	s.notify(ctx, ports.EventTypeTargetSettled, event)
}

// settleIdle asienta todos los targets sin unidades vivas. Con el run
// cancelado, los que no llegaron a finalizar quedan Cancelled.
func (s *Scheduler) settleIdle(ctx context.Context, states map[string]*targetState) {
	for _, st := range states {
		if !st.settled && st.active == 0 {
			s.maybeSettle(ctx, st, ctx.Err() != nil)
		}
	}
}

func (s *Scheduler) notify(ctx context.Context, eventType ports.EventType, data any) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ports.NewEvent(eventType, "scheduler", data)); err != nil {
			s.logger.Debug("notifier error", "event", string(eventType), "error", err.Error())
		}
	}
}
