// internal/core/usecases/failures.go
package usecases

import (
	"context"
	"net"

	"mira/internal/core/domain"
	"mira/internal/platform/errors"
	"mira/internal/platform/resilience"
)

// Classify determina la clase de un fallo de ejecución de módulo.
// La clase decide la política: los transitorios consumen presupuesto de
// reintentos, los fatales se registran de inmediato sin reintento, y los
// cancelados no cuentan como fallo del módulo.
func Classify(err error) domain.FailureClass {
	if err == nil {
		return ""
	}

	// El aborto del run domina cualquier otra causa.
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrRunCancelled) {
		return domain.FailureCancelled
	}

	// Fallos que el módulo declara irrecuperables para este target.
	if domain.IsFatalModuleError(err) {
		return domain.FailureFatal
	}
	if errors.Is(err, errors.ErrInvalidInput) || errors.Is(err, errors.ErrInvalidResponse) {
		return domain.FailureFatal
	}

	// Transitorios conocidos.
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, errors.ErrTimeout) ||
		errors.Is(err, errors.ErrRateLimit) ||
		errors.Is(err, errors.ErrConnectionFailed) ||
		errors.Is(err, errors.ErrServiceUnavailable) ||
		errors.Is(err, resilience.ErrCircuitOpen) {
		return domain.FailureTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureTransient
	}

	// Errores no reconocidos se tratan como transitorios.
	return domain.FailureTransient
}
