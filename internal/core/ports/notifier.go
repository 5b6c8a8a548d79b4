// internal/core/ports/notifier.go
package ports

import (
	"context"
	"time"
)

// Notifier es el port para notificaciones de eventos del run.
// Implementa el patrón Observer para desacoplar el core de los
// mecanismos de notificación (webhooks, métricas, etc.).
type Notifier interface {
	// Notify envía una notificación para un evento
	Notify(ctx context.Context, event Event) error

	// Close cierra el notifier y libera recursos
	Close() error
}

// Event representa un evento del run.
type Event struct {
	// Type tipo de evento
	Type EventType

	// Timestamp momento del evento
	Timestamp time.Time

	// Source componente que generó el evento
	Source string

	// Target identidad del target relacionado (opcional)
	Target string

	// Data datos específicos del evento
	Data any
}

// EventType define los tipos de eventos del run.
type EventType string

const (
	// Run events
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunCancelled EventType = "run.cancelled"

	// Unit events
	EventTypeUnitSucceeded EventType = "unit.succeeded"
	EventTypeUnitFailed    EventType = "unit.failed"
	EventTypeUnitRetried   EventType = "unit.retried"

	// Target events
	EventTypeTargetSettled EventType = "target.settled"
)

// UnitEvent es el payload de los eventos de unidad.
type UnitEvent struct {
	Target  string
	Module  string
	Attempt int
}

// TargetEvent es el payload de los eventos de target.
type TargetEvent struct {
	Identity string
	Fields   int
	Failures int
}

// NewEvent crea un evento con timestamp actual.
func NewEvent(eventType EventType, source string, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}
