// internal/platform/resilience/backoff.go
package resilience

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy define cómo se espacian los reintentos de una unidad de
// trabajo fallida. El delay crece exponencialmente con el número de
// intento y lleva jitter para evitar que reintentos simultáneos golpeen
// al mismo servicio en sincronía.
type RetryPolicy struct {
	Base       time.Duration // delay para el primer reintento
	Multiplier float64       // factor de crecimiento exponencial
	Jitter     float64       // fracción aleatoria [0,Jitter) añadida al delay
	Max        time.Duration // techo absoluto del delay
}

// DefaultRetryPolicy retorna la política usada cuando la configuración
// no especifica otra.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.25,
		Max:        60 * time.Second,
	}
}

// Normalize corrige valores fuera de rango in-place y retorna la política.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.Base <= 0 {
		p.Base = 1 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Max <= 0 {
		p.Max = 60 * time.Second
	}
	return p
}

// Delay calcula el delay antes del reintento número attempt.
// attempt=1 es el primer reintento (la ejecución original ya falló).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.Normalize()

	if attempt < 1 {
		attempt = 1
	}

	// Exponential backoff: base * multiplier^(attempt-1)
	backoff := time.Duration(float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1)))
	if backoff > p.Max || backoff <= 0 {
		backoff = p.Max
	}

	if p.Jitter > 0 {
		jitter := time.Duration(rand.Float64() * p.Jitter * float64(backoff))
		backoff += jitter
		if backoff > p.Max {
			backoff = p.Max
		}
	}

	return backoff
}
