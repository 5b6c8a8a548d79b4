// internal/core/domain/unit.go
package domain

import "fmt"

// WorkUnit es el emparejamiento (target, módulo) más su contador de intentos
// y estado. El Scheduler la crea cuando las dependencias del módulo quedan
// satisfechas y es el único que la muta junto al coordinador de retries.
type WorkUnit struct {
	// Target referenciado (no poseído) por la unidad
	Target *Target

	// Module identidad del módulo a ejecutar
	Module string

	// Attempt número de ejecuciones realizadas (0 = nunca despachada)
	Attempt int

	// State estado actual de la unidad
	State UnitState
}

// NewWorkUnit crea una unidad pendiente.
func NewWorkUnit(target *Target, module string) *WorkUnit {
	return &WorkUnit{
		Target: target,
		Module: module,
		State:  UnitPending,
	}
}

// Key retorna la clave única de la unidad dentro de un run.
func (u *WorkUnit) Key() string {
	return u.Target.Identity + "/" + u.Module
}

// TransitionTo aplica una transición de estado validada.
// Transiciones legales: Pending→Running, Running→{Succeeded,Failed},
// Failed→Pending (re-encolado con presupuesto de retry) y
// {Pending,Running}→Cancelled. Los estados terminales son definitivos.
func (u *WorkUnit) TransitionTo(next UnitState) error {
	if u.State == next {
		return nil
	}

	legal := false
	switch u.State {
	case UnitPending:
		legal = next == UnitRunning || next == UnitCancelled
	case UnitRunning:
		legal = next == UnitSucceeded || next == UnitFailed || next == UnitCancelled
	case UnitFailed:
		// re-encolado por el coordinador de retries
		legal = next == UnitPending
	}

	if !legal {
		return fmt.Errorf("%w: %s → %s for %s", ErrInvalidTransition, u.State, next, u.Key())
	}

	if u.State == UnitFailed && next == UnitPending {
		// la unidad re-encolada no es una unidad nueva: conserva su Attempt
		u.State = next
		return nil
	}

	u.State = next
	return nil
}

// BeginAttempt marca la unidad como Running e incrementa el contador.
func (u *WorkUnit) BeginAttempt() error {
	if err := u.TransitionTo(UnitRunning); err != nil {
		return err
	}
	u.Attempt++
	return nil
}

// String retorna una representación legible de la unidad.
func (u *WorkUnit) String() string {
	return fmt.Sprintf("WorkUnit{%s, attempt=%d, state=%s}", u.Key(), u.Attempt, u.State)
}
