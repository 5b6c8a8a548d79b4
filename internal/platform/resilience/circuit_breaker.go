// internal/platform/resilience/circuit_breaker.go
package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State representa el estado del circuit breaker.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, rejecting requests
	StateHalfOpen              // Testing if service recovered
)

// CircuitBreaker implementa el patrón Circuit Breaker para prevenir
// cascadas de fallos contra módulos cuyo servicio externo está caído.
// El scheduler consulta Allow antes de despachar cada unidad y registra
// el resultado tras la ejecución; un rechazo cuenta como fallo
// transitorio de la unidad, no como fallo del breaker.
type CircuitBreaker struct {
	mu              sync.RWMutex
	module          string
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time

	failureThreshold int           // Failures to open circuit
	cooldown         time.Duration // Time to wait before half-open
	halfOpenMax      int           // Max probes in half-open state
}

// NewCircuitBreaker crea un circuit breaker para un módulo.
func NewCircuitBreaker(module string, failureThreshold int, cooldown time.Duration, halfOpenMax int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	if halfOpenMax <= 0 {
		halfOpenMax = 3
	}

	return &CircuitBreaker{
		module:           module,
		state:            StateClosed,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		halfOpenMax:      halfOpenMax,
	}
}

// Module retorna el módulo al que protege este breaker.
func (cb *CircuitBreaker) Module() string {
	return cb.module
}

// Allow verifica si una ejecución puede pasar.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailureTime) > cb.cooldown {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.failureCount = 0
			return true
		}
		return false

	case StateHalfOpen:
		// Allow limited probes to test recovery.
		if cb.successCount+cb.failureCount < cb.halfOpenMax {
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess registra una ejecución exitosa.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastSuccessTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
		}
	}
}

// RecordFailure registra una ejecución fallida.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()
	cb.failureCount++

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
		}

	case StateHalfOpen:
		// Failure in half-open re-opens the circuit immediately.
		cb.state = StateOpen
		cb.successCount = 0
		cb.failureCount = 0
	}
}

// State retorna el estado actual del circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset resetea el circuit breaker al estado cerrado.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
}

// Stats retorna estadísticas del circuit breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		Module:          cb.module,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
		LastSuccessTime: cb.lastSuccessTime,
	}
}

// CircuitBreakerStats contiene estadísticas del circuit breaker.
type CircuitBreakerStats struct {
	Module          string
	State           State
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
	LastSuccessTime time.Time
}

// String retorna una representación legible del estado.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSet agrupa los circuit breakers por módulo. El scheduler crea
// uno perezosamente por módulo con una configuración compartida.
type BreakerSet struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	failureThreshold int
	cooldown         time.Duration
	halfOpenMax      int
}

// NewBreakerSet crea un conjunto de breakers con la configuración dada.
func NewBreakerSet(failureThreshold int, cooldown time.Duration, halfOpenMax int) *BreakerSet {
	return &BreakerSet{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		halfOpenMax:      halfOpenMax,
	}
}

// For retorna el breaker del módulo, creándolo si no existe.
func (bs *BreakerSet) For(module string) *CircuitBreaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	cb, ok := bs.breakers[module]
	if !ok {
		cb = NewCircuitBreaker(module, bs.failureThreshold, bs.cooldown, bs.halfOpenMax)
		bs.breakers[module] = cb
	}
	return cb
}

// Stats retorna las estadísticas de todos los breakers activos.
func (bs *BreakerSet) Stats() []CircuitBreakerStats {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	stats := make([]CircuitBreakerStats, 0, len(bs.breakers))
	for _, cb := range bs.breakers {
		stats = append(stats, cb.Stats())
	}
	return stats
}
