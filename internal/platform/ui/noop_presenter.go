// internal/platform/ui/noop_presenter.go
package ui

// NoopPresenter es una implementación vacía del Presenter
// que no produce ninguna salida. Útil para modo quiet o headless.
type NoopPresenter struct{}

// NewNoopPresenter crea una instancia del presenter sin salida
func NewNoopPresenter() *NoopPresenter {
	return &NoopPresenter{}
}

// Start no hace nada
func (n *NoopPresenter) Start(info RunInfo) {}

// UnitFinished no hace nada
func (n *NoopPresenter) UnitFinished(target, module string, status Status, attempt int) {}

// TargetSettled no hace nada
func (n *NoopPresenter) TargetSettled(identity string, fields int, failures int) {}

// Info no hace nada
func (n *NoopPresenter) Info(msg string) {}

// Warning no hace nada
func (n *NoopPresenter) Warning(msg string) {}

// Error no hace nada
func (n *NoopPresenter) Error(msg string) {}

// Finish no hace nada
func (n *NoopPresenter) Finish(stats RunSummary) {}

// Close no hace nada
func (n *NoopPresenter) Close() error {
	return nil
}
