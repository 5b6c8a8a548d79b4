// internal/core/usecases/aggregator.go
package usecases

import (
	"fmt"
	"sort"
	"sync"

	"mira/internal/core/domain"
	"mira/internal/platform/logx"
)

// Aggregator consolida los resultados de módulos en un record canónico
// por target. Cada record tiene su propio lock: los merges del mismo
// target se serializan, los de targets distintos proceden en paralelo.
type Aggregator struct {
	mu      sync.RWMutex
	records map[string]*recordSlot
	logger  logx.Logger
}

// recordSlot envuelve un record con su lock y su estado de settlement.
type recordSlot struct {
	mu       sync.Mutex
	record   *domain.TargetRecord
	complete bool
}

// NewAggregator crea un aggregator vacío.
func NewAggregator(logger logx.Logger) *Aggregator {
	if logger == nil {
		logger = logx.New()
	}
	return &Aggregator{
		records: make(map[string]*recordSlot),
		logger:  logger.With("component", "aggregator"),
	}
}

// Open crea el record de un target. Idempotente.
func (a *Aggregator) Open(target domain.Target) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.records[target.Identity]; exists {
		return
	}
	a.records[target.Identity] = &recordSlot{record: domain.NewTargetRecord(target)}
}

// Merge incorpora el resultado de un módulo al record del target.
// La misma pareja módulo+campo reemplaza el valor anterior de ese módulo,
// lo que hace el merge idempotente bajo reintentos; módulos distintos
// sobre el mismo campo retienen ambos valores.
func (a *Aggregator) Merge(identity string, result *domain.ModuleResult) error {
	slot, err := a.slot(identity)
	if err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.record.Status != domain.RecordPending {
		return fmt.Errorf("%w: %s", domain.ErrRecordFrozen, identity)
	}

	slot.record.ApplyResult(result)

	a.logger.Debug("result merged",
		"target", identity,
		"module", result.Module,
		"fields", len(result.Fields),
	)
	return nil
}

// RecordFailure adjunta un fallo terminal de unidad al record.
func (a *Aggregator) RecordFailure(identity string, failure domain.UnitFailure) error {
	slot, err := a.slot(identity)
	if err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.record.Status != domain.RecordPending {
		return fmt.Errorf("%w: %s", domain.ErrRecordFrozen, identity)
	}

	slot.record.AddFailure(failure)
	return nil
}

// Snapshot retorna la vista actual de campos del target, usada como input
// de los módulos encadenados.
func (a *Aggregator) Snapshot(identity string) (domain.FieldSnapshot, error) {
	slot, err := a.slot(identity)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.record.Snapshot(), nil
}

// Complete marca el target como asentado: el scheduler determinó que no
// quedan unidades pendientes ni módulos por habilitar para él.
func (a *Aggregator) Complete(identity string, status domain.RecordStatus) error {
	slot, err := a.slot(identity)
	if err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.complete {
		return nil
	}
	slot.complete = true
	slot.record.Settle(status)

	a.logger.Debug("target settled", "target", identity, "status", status)
	return nil
}

// Finalize retorna el record inmutable del target. Falla con ErrNotReady
// si el scheduler aún no lo marcó como completo.
func (a *Aggregator) Finalize(identity string) (*domain.TargetRecord, error) {
	slot, err := a.slot(identity)
	if err != nil {
		return nil, err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if !slot.complete {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotReady, identity)
	}
	return slot.record, nil
}

// Records retorna todos los records asentados, ordenados por identidad.
func (a *Aggregator) Records() []*domain.TargetRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	identities := make([]string, 0, len(a.records))
	for identity, slot := range a.records {
		slot.mu.Lock()
		done := slot.complete
		slot.mu.Unlock()
		if done {
			identities = append(identities, identity)
		}
	}
	sort.Strings(identities)

	records := make([]*domain.TargetRecord, 0, len(identities))
	for _, identity := range identities {
		records = append(records, a.records[identity].record)
	}
	return records
}

func (a *Aggregator) slot(identity string) (*recordSlot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	slot, exists := a.records[identity]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTarget, identity)
	}
	return slot, nil
}
