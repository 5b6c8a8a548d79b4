// internal/core/domain/report.go
package domain

import (
	"fmt"
	"time"
)

// Warning es una advertencia no fatal del run (p.ej. un input inválido).
type Warning struct {
	// Input entrada cruda que originó la advertencia
	Input string

	// Message descripción de la advertencia
	Message string

	// At momento de la advertencia
	At time.Time
}

// NewWarning crea una advertencia con timestamp actual.
func NewWarning(input, message string) Warning {
	return Warning{Input: input, Message: message, At: time.Now()}
}

// RunStats agrega las estadísticas de unidades del run.
type RunStats struct {
	// TotalUnits unidades creadas durante el run
	TotalUnits int

	// Succeeded unidades que terminaron en Succeeded
	Succeeded int

	// Failed unidades que terminaron en Failed
	Failed int

	// Cancelled unidades que terminaron en Cancelled
	Cancelled int

	// Retries re-encolados por fallo transitorio
	Retries int
}

// Report es la estructura final que consume el renderer externo:
// la secuencia ordenada de records finalizados más el resumen del run.
type Report struct {
	// RunID identificador único del run
	RunID string

	// Records records finalizados, ordenados por identidad de target
	Records []*TargetRecord

	// Skipped advertencias de inputs inválidos u omitidos
	Skipped []Warning

	// Stats estadísticas de unidades
	Stats RunStats

	// Cancelled indica si el run fue abortado explícitamente
	Cancelled bool

	// StartedAt / FinishedAt / Duration ciclo de vida del run
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// AddWarning añade una advertencia al reporte.
func (r *Report) AddWarning(input, message string) {
	r.Skipped = append(r.Skipped, Warning{
		Input:   input,
		Message: message,
		At:      time.Now(),
	})
}

// Finalize cierra el reporte y calcula la duración.
func (r *Report) Finalize() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// Summary retorna un resumen legible del reporte.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"Report{run=%s, records=%d, skipped=%d, units=%d/%d ok, cancelled=%v, duration=%s}",
		r.RunID, len(r.Records), len(r.Skipped),
		r.Stats.Succeeded, r.Stats.TotalUnits, r.Cancelled, r.Duration,
	)
}
