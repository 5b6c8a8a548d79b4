// internal/core/domain/enums.go
package domain

// TargetKind clasifica la identidad de un target.
type TargetKind string

const (
	// TargetKindHost representa un hostname (resuelto más tarde por módulos)
	TargetKindHost TargetKind = "host"

	// TargetKindIP representa una dirección IP atómica
	TargetKindIP TargetKind = "ip"
)

// IsValid verifica si el kind es válido.
func (k TargetKind) IsValid() bool {
	switch k {
	case TargetKindHost, TargetKindIP:
		return true
	default:
		return false
	}
}

// String retorna la representación string del kind.
func (k TargetKind) String() string {
	return string(k)
}

// UnitState define el estado de una unidad de trabajo (target × módulo).
// Las transiciones son monótonas: un estado terminal nunca se abandona.
type UnitState int

const (
	UnitPending UnitState = iota
	UnitRunning
	UnitSucceeded
	UnitFailed
	UnitCancelled
)

// Terminal indica si el estado es terminal.
// Failed es terminal solo cuando el presupuesto de retries se agotó;
// el scheduler re-encola la unidad (Failed → Pending) mientras quede presupuesto.
func (s UnitState) Terminal() bool {
	switch s {
	case UnitSucceeded, UnitFailed, UnitCancelled:
		return true
	default:
		return false
	}
}

// String retorna la representación legible del estado.
func (s UnitState) String() string {
	switch s {
	case UnitPending:
		return "pending"
	case UnitRunning:
		return "running"
	case UnitSucceeded:
		return "succeeded"
	case UnitFailed:
		return "failed"
	case UnitCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FailureClass clasifica un fallo terminal de una unidad.
type FailureClass string

const (
	// FailureTransient retries agotados sobre un error recuperable (timeout, reset)
	FailureTransient FailureClass = "transient"

	// FailureFatal condición irrecuperable reportada por el módulo, sin retry
	FailureFatal FailureClass = "fatal"

	// FailureCancelled la ejecución del run fue abortada
	FailureCancelled FailureClass = "cancelled"
)

// RecordStatus define el estado de un TargetRecord.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordFinalized RecordStatus = "finalized"
	RecordCancelled RecordStatus = "cancelled"
)
