// internal/platform/ui/presenter.go
package ui

import (
	"time"
)

// UIMode define el modo de visualización.
type UIMode string

const (
	UIModePretty UIMode = "pretty" // colores y spinners (default)
	UIModePlain  UIMode = "plain"  // texto plano, apto para pipes
	UIModeQuiet  UIMode = "quiet"  // sin UI visual
)

// Presenter define la interfaz para presentar el progreso del run de
// reconocimiento en la terminal.
type Presenter interface {
	// Start inicia la presentación con información del run
	Start(info RunInfo)

	// UnitFinished notifica el desenlace de una unidad de trabajo
	UnitFinished(target, module string, status Status, attempt int)

	// TargetSettled notifica que un target quedó asentado
	TargetSettled(identity string, fields int, failures int)

	// Info muestra un mensaje informativo
	Info(msg string)

	// Warning muestra una advertencia
	Warning(msg string)

	// Error muestra un error
	Error(msg string)

	// Finish finaliza la presentación con las estadísticas del run
	Finish(stats RunSummary)

	// Close limpia recursos del presenter
	Close() error
}

// Status estado visual de una unidad.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRetried   Status = "retried"
	StatusCancelled Status = "cancelled"
)

// RunInfo contiene la información inicial del run.
type RunInfo struct {
	RunID          string
	Targets        int
	Skipped        int
	Modules        []string
	Workers        int
	TimeoutSeconds int
}

// RunSummary contiene las estadísticas finales del run.
type RunSummary struct {
	Duration   time.Duration
	Records    int
	TotalUnits int
	Succeeded  int
	Failed     int
	Cancelled  int
	Retries    int
	WasAborted bool
}

// ForMode retorna el presenter correspondiente al modo configurado.
func ForMode(mode string) Presenter {
	switch UIMode(mode) {
	case UIModePlain:
		return NewPlainPresenter()
	case UIModeQuiet:
		return NewNoopPresenter()
	default:
		return NewPTermPresenter()
	}
}
