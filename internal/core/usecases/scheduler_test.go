package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
	"mira/internal/platform/resilience"
)

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		Base:       1 * time.Millisecond,
		Multiplier: 1.0,
		Jitter:     0,
		Max:        5 * time.Millisecond,
	}
}

func runScheduler(t *testing.T, modules []ports.Module, metadata map[string]ports.ModuleMetadata, workers int, targets []*domain.Target) (*Aggregator, domain.RunStats) {
	t.Helper()

	agg := NewAggregator(logx.New())
	sched := NewScheduler(SchedulerOptions{
		Modules:    modules,
		Metadata:   metadata,
		Aggregator: agg,
		Workers:    workers,
		Retry:      fastRetry(),
		Logger:     logx.New(),
	})

	done := make(chan domain.RunStats, 1)
	go func() { done <- sched.Run(context.Background(), targets) }()

	select {
	case stats := <-done:
		return agg, stats
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not terminate")
		return nil, domain.RunStats{}
	}
}

func TestSchedulerHappyPath(t *testing.T) {
	resolve := newMockModule("resolve", func(_ context.Context, target domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		res := domain.NewModuleResult("resolve")
		res.Set(domain.FieldIP, "93.184.216.34")
		return res, nil
	})

	metadata := map[string]ports.ModuleMetadata{
		"resolve": {Name: "resolve", RequiredFields: []string{domain.FieldHost}, ProducedFields: []string{domain.FieldIP}},
	}

	target := domain.NewHostTarget("example.com", true)
	agg, stats := runScheduler(t, []ports.Module{resolve}, metadata, 2, []*domain.Target{target})

	if stats.Succeeded != 1 || stats.TotalUnits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	record, err := agg.Finalize("example.com")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if record.Status != domain.RecordFinalized {
		t.Errorf("expected finalized record, got %s", record.Status)
	}
	if !record.HasField(domain.FieldIP) {
		t.Error("record should carry the resolved ip")
	}
}

func TestSchedulerDependencyChaining(t *testing.T) {
	var order []string
	var orderMu sync.Mutex
	logCall := func(name string) {
		orderMu.Lock()
		order = append(order, name)
		orderMu.Unlock()
	}

	resolve := newMockModule("resolve", func(_ context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		logCall("resolve")
		res := domain.NewModuleResult("resolve")
		res.Set(domain.FieldIP, "10.1.2.3")
		return res, nil
	})
	portscan := newMockModule("portscan", func(_ context.Context, _ domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
		logCall("portscan")
		if !input.Has(domain.FieldIP) {
			t.Error("portscan dispatched without the ip field merged")
		}
		res := domain.NewModuleResult("portscan")
		res.Set("open_ports", []string{"80/tcp"})
		return res, nil
	})

	metadata := map[string]ports.ModuleMetadata{
		"resolve":  {Name: "resolve", RequiredFields: []string{domain.FieldHost}, ProducedFields: []string{domain.FieldIP}},
		"portscan": {Name: "portscan", RequiredFields: []string{domain.FieldIP}, ProducedFields: []string{"open_ports"}},
	}

	target := domain.NewHostTarget("example.com", true)
	agg, stats := runScheduler(t, []ports.Module{resolve, portscan}, metadata, 4, []*domain.Target{target})

	if stats.Succeeded != 2 {
		t.Fatalf("expected 2 succeeded units, got %+v", stats)
	}

	orderMu.Lock()
	defer orderMu.Unlock()
	if len(order) != 2 || order[0] != "resolve" || order[1] != "portscan" {
		t.Errorf("expected resolve before portscan, got %v", order)
	}

	record, err := agg.Finalize("example.com")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !record.HasField("open_ports") {
		t.Error("chained module output missing from record")
	}
}

func TestSchedulerConcurrencyCap(t *testing.T) {
	const workers = 2
	var current, peak atomic.Int32

	slow := newMockModule("slow", func(ctx context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return domain.NewModuleResult("slow"), nil
	})

	metadata := map[string]ports.ModuleMetadata{
		"slow": {Name: "slow", RequiredFields: []string{domain.FieldIP}},
	}

	targets := make([]*domain.Target, 0, 8)
	for i := 0; i < 8; i++ {
		targets = append(targets, domain.NewIPTarget(fmt.Sprintf("10.0.0.%d", i+1)))
	}

	_, stats := runScheduler(t, []ports.Module{slow}, metadata, workers, targets)

	if stats.Succeeded != 8 {
		t.Fatalf("expected 8 succeeded units, got %+v", stats)
	}
	if peak.Load() > workers {
		t.Errorf("running units exceeded worker cap: peak %d > %d", peak.Load(), workers)
	}
}

func TestSchedulerModuleWeight(t *testing.T) {
	var current, peak atomic.Int32

	weighted := newMockModule("weighted", func(ctx context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return domain.NewModuleResult("weighted"), nil
	})

	metadata := map[string]ports.ModuleMetadata{
		"weighted": {Name: "weighted", RequiredFields: []string{domain.FieldIP}, Weight: 1},
	}

	targets := []*domain.Target{
		domain.NewIPTarget("10.0.0.1"),
		domain.NewIPTarget("10.0.0.2"),
		domain.NewIPTarget("10.0.0.3"),
	}

	// 4 workers disponibles pero peso 1: nunca más de una unidad del módulo.
	_, stats := runScheduler(t, []ports.Module{weighted}, metadata, 4, targets)

	if stats.Succeeded != 3 {
		t.Fatalf("expected 3 succeeded units, got %+v", stats)
	}
	if peak.Load() > 1 {
		t.Errorf("module weight violated: peak %d > 1", peak.Load())
	}
}

func TestSchedulerRetryExhaustion(t *testing.T) {
	flaky := newMockModule("flaky", func(_ context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		return nil, errors.Wrap(errors.ErrConnectionFailed, "synthetic outage")
	})

	metadata := map[string]ports.ModuleMetadata{
		"flaky": {Name: "flaky", RequiredFields: []string{domain.FieldIP}, MaxRetries: 2},
	}

	target := domain.NewIPTarget("10.0.0.1")
	agg, stats := runScheduler(t, []ports.Module{flaky}, metadata, 2, []*domain.Target{target})

	// maxRetries=2: ejecución original + 2 reintentos, ni uno más.
	if got := flaky.callCount(); got != 3 {
		t.Errorf("expected exactly 3 executions, got %d", got)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed unit, got %+v", stats)
	}
	if stats.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", stats.Retries)
	}

	record, err := agg.Finalize("10.0.0.1")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if len(record.Failures) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(record.Failures))
	}
	f := record.Failures[0]
	if f.Class != domain.FailureTransient {
		t.Errorf("expected transient class, got %s", f.Class)
	}
	if f.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", f.Attempts)
	}
	if record.Status != domain.RecordFinalized {
		t.Errorf("a fully failed target still settles finalized, got %s", record.Status)
	}
}

func TestSchedulerFatalFailureNoRetry(t *testing.T) {
	fatal := newMockModule("fatal", func(_ context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		return nil, domain.NewFatalModuleError("fatal", errors.New("unsupported target"))
	})

	metadata := map[string]ports.ModuleMetadata{
		"fatal": {Name: "fatal", RequiredFields: []string{domain.FieldIP}, MaxRetries: 5},
	}

	target := domain.NewIPTarget("10.0.0.1")
	agg, stats := runScheduler(t, []ports.Module{fatal}, metadata, 2, []*domain.Target{target})

	if got := fatal.callCount(); got != 1 {
		t.Errorf("fatal failures must not retry, got %d executions", got)
	}
	if stats.Retries != 0 {
		t.Errorf("expected 0 retries, got %d", stats.Retries)
	}

	record, _ := agg.Finalize("10.0.0.1")
	if !record.HasFatalFailures() {
		t.Error("record should carry the fatal failure")
	}
}

func TestSchedulerFailureDoesNotAbortSiblings(t *testing.T) {
	bad := newMockModule("bad", func(_ context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		return nil, domain.NewFatalModuleError("bad", errors.New("broken"))
	})
	good := newMockModule("good", func(_ context.Context, _ domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		res := domain.NewModuleResult("good")
		res.Set("banner", "ok")
		return res, nil
	})

	metadata := map[string]ports.ModuleMetadata{
		"bad":  {Name: "bad", RequiredFields: []string{domain.FieldIP}},
		"good": {Name: "good", RequiredFields: []string{domain.FieldIP}},
	}

	target := domain.NewIPTarget("10.0.0.1")
	agg, stats := runScheduler(t, []ports.Module{bad, good}, metadata, 2, []*domain.Target{target})

	if stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	record, err := agg.Finalize("10.0.0.1")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if !record.HasField("banner") {
		t.Error("sibling success must survive the failed unit")
	}
	if len(record.Failures) != 1 {
		t.Errorf("expected 1 failure alongside the merged field, got %d", len(record.Failures))
	}
}

func TestSchedulerCancelAfterPartialCompletion(t *testing.T) {
	firstDone := make(chan struct{})
	var once sync.Once

	mod := newMockModule("probe", func(ctx context.Context, target domain.Target, _ domain.FieldSnapshot) (*domain.ModuleResult, error) {
		if target.Identity == "10.0.0.1" {
			res := domain.NewModuleResult("probe")
			res.Set("banner", "hello")
			once.Do(func() { close(firstDone) })
			return res, nil
		}
		// El resto espera cooperativamente a la cancelación.
		<-ctx.Done()
		return nil, ctx.Err()
	})

	metadata := map[string]ports.ModuleMetadata{
		"probe": {Name: "probe", RequiredFields: []string{domain.FieldIP}},
	}

	agg := NewAggregator(logx.New())
	sched := NewScheduler(SchedulerOptions{
		Modules:    []ports.Module{mod},
		Metadata:   metadata,
		Aggregator: agg,
		Workers:    4,
		Retry:      fastRetry(),
		Logger:     logx.New(),
	})

	targets := []*domain.Target{
		domain.NewIPTarget("10.0.0.1"),
		domain.NewIPTarget("10.0.0.2"),
		domain.NewIPTarget("10.0.0.3"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	statsCh := make(chan domain.RunStats, 1)
	go func() { statsCh <- sched.Run(ctx, targets) }()

	<-firstDone
	time.Sleep(20 * time.Millisecond) // deja que el resultado se procese
	cancel()

	var stats domain.RunStats
	select {
	case stats = <-statsCh:
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler did not drain after cancel")
	}

	if stats.Cancelled == 0 {
		t.Errorf("expected cancelled units, got %+v", stats)
	}

	// El target completado conserva su record íntegro.
	done, err := agg.Finalize("10.0.0.1")
	if err != nil {
		t.Fatalf("completed target should finalize: %v", err)
	}
	if done.Status != domain.RecordFinalized || !done.HasField("banner") {
		t.Errorf("completed record corrupted by cancel: %s", done.Summary())
	}

	// Los abortados quedan Cancelled y sin campos parciales.
	for _, id := range []string{"10.0.0.2", "10.0.0.3"} {
		rec, err := agg.Finalize(id)
		if err != nil {
			t.Fatalf("cancelled target %s should still settle: %v", id, err)
		}
		if rec.Status != domain.RecordCancelled {
			t.Errorf("target %s: expected cancelled status, got %s", id, rec.Status)
		}
		if len(rec.FieldNames()) != 0 {
			t.Errorf("target %s: cancelled record must not carry partial fields", id)
		}
	}
}

func TestSchedulerEmitsEvents(t *testing.T) {
	notifier := &mockNotifier{}

	ok := newMockModule("ok", nil)
	metadata := map[string]ports.ModuleMetadata{
		"ok": {Name: "ok", RequiredFields: []string{domain.FieldIP}},
	}

	agg := NewAggregator(logx.New())
	sched := NewScheduler(SchedulerOptions{
		Modules:    []ports.Module{ok},
		Metadata:   metadata,
		Aggregator: agg,
		Workers:    2,
		Retry:      fastRetry(),
		Logger:     logx.New(),
		Notifiers:  []ports.Notifier{notifier},
	})

	sched.Run(context.Background(), []*domain.Target{domain.NewIPTarget("10.0.0.1")})

	if notifier.count(ports.EventTypeRunStarted) != 1 {
		t.Error("missing run.started event")
	}
	if notifier.count(ports.EventTypeUnitSucceeded) != 1 {
		t.Error("missing unit.succeeded event")
	}
	if notifier.count(ports.EventTypeTargetSettled) != 1 {
		t.Error("missing target.settled event")
	}
	if notifier.count(ports.EventTypeRunCompleted) != 1 {
		t.Error("missing run.completed event")
	}
}

func TestSchedulerTargetWithoutApplicableModules(t *testing.T) {
	hostOnly := newMockModule("hostonly", nil)
	metadata := map[string]ports.ModuleMetadata{
		"hostonly": {Name: "hostonly", RequiredFields: []string{domain.FieldHost}},
	}

	// Un target IP jamás habilita el módulo: debe asentarse vacío.
	agg, stats := runScheduler(t, []ports.Module{hostOnly}, metadata, 2, []*domain.Target{domain.NewIPTarget("10.0.0.9")})

	if stats.TotalUnits != 0 {
		t.Errorf("expected no units, got %+v", stats)
	}
	record, err := agg.Finalize("10.0.0.9")
	if err != nil {
		t.Fatalf("idle target should settle: %v", err)
	}
	if record.Status != domain.RecordFinalized {
		t.Errorf("expected finalized empty record, got %s", record.Status)
	}
}
