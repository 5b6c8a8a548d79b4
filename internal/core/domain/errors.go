// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio comunes.
var (
	// Target errors
	ErrEmptyTarget         = errors.New("target cannot be empty")
	ErrInvalidTarget       = errors.New("invalid target")
	ErrTargetRangeTooLarge = errors.New("target range exceeds host ceiling")

	// Registry errors
	ErrDuplicateModule = errors.New("module already registered")
	ErrModuleNotFound  = errors.New("module not found")

	// Aggregation errors
	ErrNotReady       = errors.New("target record not ready for finalization")
	ErrUnknownTarget  = errors.New("unknown target")
	ErrRecordFrozen   = errors.New("target record already finalized")

	// Run errors
	ErrNoModulesAvailable = errors.New("no modules available for run")
	ErrRunCancelled       = errors.New("run was cancelled")

	// Unit errors
	ErrInvalidTransition = errors.New("invalid work unit state transition")
)

// ModuleError representa un fallo reportado por un módulo.
// Fatal marca condiciones irrecuperables (p.ej. target malformado para ese
// módulo) que no deben reintentarse.
type ModuleError struct {
	Module string
	Err    error
	Fatal  bool
}

// NewModuleError crea un error transitorio de módulo.
func NewModuleError(module string, err error) *ModuleError {
	return &ModuleError{Module: module, Err: err}
}

// NewFatalModuleError crea un error fatal de módulo (sin retry).
func NewFatalModuleError(module string, err error) *ModuleError {
	return &ModuleError{Module: module, Err: err, Fatal: true}
}

// Error implementa la interfaz error.
func (e *ModuleError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("module %s: fatal: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

// Unwrap retorna el error subyacente.
func (e *ModuleError) Unwrap() error {
	return e.Err
}

// IsFatalModuleError reporta si err contiene un ModuleError fatal.
func IsFatalModuleError(err error) bool {
	var me *ModuleError
	if errors.As(err, &me) {
		return me.Fatal
	}
	return false
}
