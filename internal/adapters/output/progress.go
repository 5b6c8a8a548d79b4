// internal/adapters/output/progress.go
package output

import (
	"context"

	"mira/internal/core/ports"
	"mira/internal/platform/ui"
)

// PresenterNotifier adapta los eventos del scheduler al Presenter de la
// terminal. Es el puente entre el core (que solo conoce ports.Notifier)
// y la capa de visualización.
type PresenterNotifier struct {
	presenter ui.Presenter
}

// NewPresenterNotifier crea el adaptador sobre un presenter.
func NewPresenterNotifier(presenter ui.Presenter) *PresenterNotifier {
	if presenter == nil {
		presenter = ui.NewNoopPresenter()
	}
	return &PresenterNotifier{presenter: presenter}
}

// Notify traduce un evento del run a la llamada de presenter equivalente.
func (p *PresenterNotifier) Notify(_ context.Context, event ports.Event) error {
	switch event.Type {
	case ports.EventTypeUnitSucceeded:
		if unit, ok := event.Data.(ports.UnitEvent); ok {
			p.presenter.UnitFinished(unit.Target, unit.Module, ui.StatusSucceeded, unit.Attempt)
		}
	case ports.EventTypeUnitFailed:
		if unit, ok := event.Data.(ports.UnitEvent); ok {
			p.presenter.UnitFinished(unit.Target, unit.Module, ui.StatusFailed, unit.Attempt)
		}
	case ports.EventTypeUnitRetried:
		if unit, ok := event.Data.(ports.UnitEvent); ok {
			p.presenter.UnitFinished(unit.Target, unit.Module, ui.StatusRetried, unit.Attempt)
		}
	case ports.EventTypeTargetSettled:
		if target, ok := event.Data.(ports.TargetEvent); ok {
			p.presenter.TargetSettled(target.Identity, target.Fields, target.Failures)
		}
	}
	return nil
}

// Close cierra el presenter subyacente.
func (p *PresenterNotifier) Close() error {
	return p.presenter.Close()
}
