// internal/platform/ui/plain_presenter.go
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// PlainPresenter implementa el Presenter en texto plano sin escapes de
// color, apto para pipes y CI.
type PlainPresenter struct {
	mu        sync.Mutex
	startTime time.Time
}

// NewPlainPresenter crea un nuevo PlainPresenter
func NewPlainPresenter() *PlainPresenter {
	return &PlainPresenter{startTime: time.Now()}
}

func (r *PlainPresenter) line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// Start imprime el encabezado del run
func (r *PlainPresenter) Start(info RunInfo) {
	r.line("mira run %s: %d targets (%d skipped), modules [%s], workers %d",
		info.RunID, info.Targets, info.Skipped, strings.Join(info.Modules, " "), info.Workers)
}

// UnitFinished imprime el desenlace de una unidad
func (r *PlainPresenter) UnitFinished(target, module string, status Status, attempt int) {
	r.line("[%s] %s %s attempt=%d", status, module, target, attempt)
}

// TargetSettled imprime el asentamiento de un target
func (r *PlainPresenter) TargetSettled(identity string, fields int, failures int) {
	r.line("settled %s fields=%d failures=%d", identity, fields, failures)
}

// Info imprime un mensaje informativo
func (r *PlainPresenter) Info(msg string) {
	r.line("INFO %s", msg)
}

// Warning imprime una advertencia
func (r *PlainPresenter) Warning(msg string) {
	r.line("WARN %s", msg)
}

// Error imprime un error
func (r *PlainPresenter) Error(msg string) {
	r.line("ERROR %s", msg)
}

// Finish imprime el resumen final
func (r *PlainPresenter) Finish(stats RunSummary) {
	state := "completed"
	if stats.WasAborted {
		state = "cancelled"
	}
	r.line("run %s in %s: records=%d units=%d ok=%d failed=%d cancelled=%d retries=%d",
		state, stats.Duration.Round(time.Millisecond), stats.Records,
		stats.TotalUnits, stats.Succeeded, stats.Failed, stats.Cancelled, stats.Retries)
}

// Close no hace nada
func (r *PlainPresenter) Close() error {
	return nil
}
