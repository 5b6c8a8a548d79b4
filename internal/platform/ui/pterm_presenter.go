// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// PTermPresenter implementa Presenter usando la biblioteca pterm
// para renderizar colores y símbolos en la terminal.
type PTermPresenter struct {
	mu        sync.Mutex
	startTime time.Time
	runInfo   RunInfo
}

// NewPTermPresenter crea una nueva instancia del presenter con pterm
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{}
}

// Start inicia la presentación mostrando el header del run
func (p *PTermPresenter) Start(info RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runInfo = info
	p.startTime = time.Now()

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("mira - Reconnaissance Engine")

	pterm.Println()

	infoPanel := pterm.DefaultBox.
		WithTitle("Run Configuration").
		WithTitleTopCenter().
		WithRightPadding(4).
		WithLeftPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan))

	runText := fmt.Sprintf("Run: %s\n", pterm.Cyan(info.RunID))
	runText += fmt.Sprintf("Targets: %d", info.Targets)
	if info.Skipped > 0 {
		runText += fmt.Sprintf(" (%s)", pterm.Yellow(fmt.Sprintf("%d skipped", info.Skipped)))
	}
	runText += "\n"
	runText += fmt.Sprintf("Modules: %s\n", strings.Join(info.Modules, ", "))
	runText += fmt.Sprintf("Workers: %d\n", info.Workers)
	if info.TimeoutSeconds > 0 {
		runText += fmt.Sprintf("Timeout: %ds", info.TimeoutSeconds)
	} else {
		runText += "Timeout: none"
	}

	infoPanel.Println(runText)
	pterm.Println()
}

// UnitFinished imprime una línea por desenlace de unidad
func (p *PTermPresenter) UnitFinished(target, module string, status Status, attempt int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := fmt.Sprintf("%s %s", pterm.Cyan(module), target)

	switch status {
	case StatusSucceeded:
		pterm.Success.Println(label)
	case StatusFailed:
		pterm.Error.Printfln("%s (after %d attempts)", label, attempt)
	case StatusRetried:
		pterm.Warning.Printfln("%s (retrying, attempt %d)", label, attempt)
	case StatusCancelled:
		pterm.Info.Printfln("%s (cancelled)", label)
	}
}

// TargetSettled imprime el asentamiento de un target
func (p *PTermPresenter) TargetSettled(identity string, fields int, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("%s settled: %d fields", pterm.Bold.Sprint(identity), fields)
	if failures > 0 {
		line += fmt.Sprintf(", %s", pterm.Red(fmt.Sprintf("%d failures", failures)))
	}
	pterm.Info.Println(line)
}

// Info muestra un mensaje informativo
func (p *PTermPresenter) Info(msg string) {
	pterm.Info.Println(msg)
}

// Warning muestra una advertencia
func (p *PTermPresenter) Warning(msg string) {
	pterm.Warning.Println(msg)
}

// Error muestra un error
func (p *PTermPresenter) Error(msg string) {
	pterm.Error.Println(msg)
}

// Finish muestra el resumen final del run
func (p *PTermPresenter) Finish(stats RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.Println()

	title := "Run Completed"
	style := pterm.NewStyle(pterm.FgGreen)
	if stats.WasAborted {
		title = "Run Cancelled"
		style = pterm.NewStyle(pterm.FgYellow)
	}

	summary := fmt.Sprintf("Duration: %s\n", stats.Duration.Round(time.Millisecond))
	summary += fmt.Sprintf("Records: %d\n", stats.Records)
	summary += fmt.Sprintf("Units: %d total, %s, %s, %s\n",
		stats.TotalUnits,
		pterm.Green(fmt.Sprintf("%d ok", stats.Succeeded)),
		pterm.Red(fmt.Sprintf("%d failed", stats.Failed)),
		pterm.Yellow(fmt.Sprintf("%d cancelled", stats.Cancelled)),
	)
	summary += fmt.Sprintf("Retries: %d", stats.Retries)

	pterm.DefaultBox.
		WithTitle(title).
		WithTitleTopCenter().
		WithBoxStyle(style).
		Println(summary)
}

// Close limpia recursos del presenter
func (p *PTermPresenter) Close() error {
	return nil
}
