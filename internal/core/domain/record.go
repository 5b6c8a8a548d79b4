// internal/core/domain/record.go
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FieldValue es un valor observado para un campo, con su procedencia.
type FieldValue struct {
	// Module módulo que observó el valor
	Module string

	// Value valor observado
	Value any

	// ObservedAt momento de la observación
	ObservedAt time.Time
}

// UnitFailure es un fallo terminal de una unidad, adjuntado al record.
type UnitFailure struct {
	// Module módulo cuya unidad falló
	Module string

	// Class clasificación del fallo (transient | fatal | cancelled)
	Class FailureClass

	// Message descripción del último error
	Message string

	// Attempts ejecuciones realizadas antes del fallo terminal
	Attempts int

	// At momento del fallo terminal
	At time.Time
}

// TargetRecord es el resultado canónico agregado por target: el mapa de
// campos fusionados, los módulos contribuyentes y los fallos terminales.
// Solo el Aggregator lo muta, bajo acceso serializado por target.
type TargetRecord struct {
	// ID identificador único del record
	ID string

	// Target objetivo del record
	Target Target

	// Fields mapa campo → valores observados. Política de conflictos:
	// un mismo módulo reemplaza su contribución previa al campo
	// (idempotente bajo retry); módulos distintos conservan ambos
	// valores en la lista (sin sobreescritura silenciosa).
	Fields map[string][]FieldValue

	// Contributors módulos que fusionaron al menos un resultado
	Contributors []string

	// Failures fallos terminales de unidades de este target
	Failures []UnitFailure

	// Status estado del record (pending | finalized | cancelled)
	Status RecordStatus

	// CreatedAt / SettledAt ciclo de vida del record
	CreatedAt time.Time
	SettledAt time.Time
}

// NewTargetRecord crea un record vacío para un target.
func NewTargetRecord(target Target) *TargetRecord {
	return &TargetRecord{
		ID:        uuid.NewString(),
		Target:    target,
		Fields:    make(map[string][]FieldValue),
		Status:    RecordPending,
		CreatedAt: time.Now(),
	}
}

// ApplyResult fusiona un ModuleResult en el record.
// La re-entrega del resultado de un módulo (retry que finalmente tuvo
// éxito, entrega duplicada) reemplaza la contribución previa de ese
// módulo campo a campo, dejando intactas las de otros módulos.
func (r *TargetRecord) ApplyResult(res *ModuleResult) {
	if res == nil {
		return
	}

	for field, value := range res.Fields {
		values := r.Fields[field]

		replaced := false
		for i, existing := range values {
			if existing.Module == res.Module {
				values[i] = FieldValue{Module: res.Module, Value: value, ObservedAt: res.At}
				replaced = true
				break
			}
		}
		if !replaced {
			values = append(values, FieldValue{Module: res.Module, Value: value, ObservedAt: res.At})
		}

		r.Fields[field] = values
	}

	r.addContributor(res.Module)
}

// AddFailure adjunta un fallo terminal al record.
func (r *TargetRecord) AddFailure(f UnitFailure) {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	r.Failures = append(r.Failures, f)
}

// FieldNames retorna los campos presentes en orden estable.
func (r *TargetRecord) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasField indica si el record tiene al menos un valor para el campo.
func (r *TargetRecord) HasField(field string) bool {
	return len(r.Fields[field]) > 0
}

// Snapshot retorna una vista de solo lectura de los campos actuales.
func (r *TargetRecord) Snapshot() FieldSnapshot {
	snap := make(FieldSnapshot, len(r.Fields))
	for field, values := range r.Fields {
		out := make([]any, 0, len(values))
		for _, v := range values {
			out = append(out, v.Value)
		}
		snap[field] = out
	}
	return snap
}

// HasFatalFailures indica si algún fallo terminal fue fatal.
func (r *TargetRecord) HasFatalFailures() bool {
	for _, f := range r.Failures {
		if f.Class == FailureFatal {
			return true
		}
	}
	return false
}

// Settle marca el record con su estado terminal.
func (r *TargetRecord) Settle(status RecordStatus) {
	r.Status = status
	r.SettledAt = time.Now()
}

// Summary retorna un resumen legible del record.
func (r *TargetRecord) Summary() string {
	return fmt.Sprintf("TargetRecord{target=%s, fields=%d, contributors=%d, failures=%d, status=%s}",
		r.Target.Identity, len(r.Fields), len(r.Contributors), len(r.Failures), r.Status)
}

func (r *TargetRecord) addContributor(module string) {
	for _, m := range r.Contributors {
		if m == module {
			return
		}
	}
	r.Contributors = append(r.Contributors, module)
}
