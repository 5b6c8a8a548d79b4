package usecases

import (
	"sync"
	"testing"

	"mira/internal/core/domain"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
)

func TestAggregatorFinalizeBeforeComplete(t *testing.T) {
	agg := NewAggregator(logx.New())
	agg.Open(*domain.NewIPTarget("10.0.0.1"))

	if _, err := agg.Finalize("10.0.0.1"); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}

	if err := agg.Complete("10.0.0.1", domain.RecordFinalized); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := agg.Finalize("10.0.0.1"); err != nil {
		t.Errorf("finalize after complete should succeed: %v", err)
	}
}

func TestAggregatorUnknownTarget(t *testing.T) {
	agg := NewAggregator(logx.New())

	res := domain.NewModuleResult("resolve")
	if err := agg.Merge("ghost", res); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Errorf("expected ErrUnknownTarget, got %v", err)
	}
	if _, err := agg.Snapshot("ghost"); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Errorf("expected ErrUnknownTarget, got %v", err)
	}
}

func TestAggregatorMergeIdempotent(t *testing.T) {
	agg := NewAggregator(logx.New())
	agg.Open(*domain.NewIPTarget("10.0.0.1"))

	res := domain.NewModuleResult("resolve")
	res.Set("hostname", "a.example.com")

	// Entrega duplicada (p.ej. reintento tras un fallo parcial).
	if err := agg.Merge("10.0.0.1", res); err != nil {
		t.Fatal(err)
	}
	if err := agg.Merge("10.0.0.1", res); err != nil {
		t.Fatal(err)
	}

	agg.Complete("10.0.0.1", domain.RecordFinalized)
	record, _ := agg.Finalize("10.0.0.1")

	if got := len(record.Fields["hostname"]); got != 1 {
		t.Errorf("duplicate delivery must not duplicate values, got %d", got)
	}
}

func TestAggregatorCrossModuleConflict(t *testing.T) {
	agg := NewAggregator(logx.New())
	agg.Open(*domain.NewHostTarget("example.com", true))

	a := domain.NewModuleResult("resolve")
	a.Set("server", "nginx")
	b := domain.NewModuleResult("webtech")
	b.Set("server", "nginx/1.25")

	agg.Merge("example.com", a)
	agg.Merge("example.com", b)

	agg.Complete("example.com", domain.RecordFinalized)
	record, _ := agg.Finalize("example.com")

	if got := len(record.Fields["server"]); got != 2 {
		t.Fatalf("conflicting modules must both be retained, got %d values", got)
	}
}

func TestAggregatorFrozenAfterComplete(t *testing.T) {
	agg := NewAggregator(logx.New())
	agg.Open(*domain.NewIPTarget("10.0.0.1"))
	agg.Complete("10.0.0.1", domain.RecordFinalized)

	res := domain.NewModuleResult("late")
	res.Set("x", 1)
	if err := agg.Merge("10.0.0.1", res); !errors.Is(err, domain.ErrRecordFrozen) {
		t.Errorf("expected ErrRecordFrozen, got %v", err)
	}
	if err := agg.RecordFailure("10.0.0.1", domain.UnitFailure{Module: "late"}); !errors.Is(err, domain.ErrRecordFrozen) {
		t.Errorf("expected ErrRecordFrozen, got %v", err)
	}
}

func TestAggregatorConcurrentMerges(t *testing.T) {
	agg := NewAggregator(logx.New())

	identities := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}
	for _, id := range identities {
		agg.Open(*domain.NewIPTarget(id))
	}

	var wg sync.WaitGroup
	for _, id := range identities {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(id string, i int) {
				defer wg.Done()
				res := domain.NewModuleResult("probe")
				res.Set("seq", i)
				if err := agg.Merge(id, res); err != nil {
					t.Errorf("merge failed: %v", err)
				}
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range identities {
		agg.Complete(id, domain.RecordFinalized)
		record, err := agg.Finalize(id)
		if err != nil {
			t.Fatalf("finalize %s: %v", id, err)
		}
		// Mismo módulo, mismo campo: un único valor superviviente.
		if got := len(record.Fields["seq"]); got != 1 {
			t.Errorf("%s: expected 1 surviving value, got %d", id, got)
		}
	}
}

func TestAggregatorRecordsSorted(t *testing.T) {
	agg := NewAggregator(logx.New())
	for _, id := range []string{"zeta.example.com", "alpha.example.com"} {
		agg.Open(*domain.NewHostTarget(id, false))
		agg.Complete(id, domain.RecordFinalized)
	}

	records := agg.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Target.Identity != "alpha.example.com" {
		t.Errorf("records should be sorted by identity, got %s first", records[0].Target.Identity)
	}
}
