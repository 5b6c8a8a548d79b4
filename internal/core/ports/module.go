// internal/core/ports/module.go
package ports

import (
	"context"
	"time"

	"mira/internal/core/domain"
)

// Module es el port primario para todas las unidades de sondeo en mira.
// Cualquier implementación (DNS, portscan, whois, builtin o externa) debe
// implementar esta interfaz; el core solo depende de este contrato.
type Module interface {
	// Name retorna la identidad única del módulo (ej: "resolve", "portscan")
	Name() string

	// Execute ejecuta el módulo contra el target. input es la vista de los
	// campos ya fusionados del target (satisface los RequiredFields
	// declarados en metadata). El deadline llega por ctx.
	Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error)

	// Close libera recursos utilizados por el módulo
	Close() error
}

// ModuleMetadata declara el contrato de datos de un módulo: qué capacidades
// necesita de un target y qué campos produce. Inmutable, propiedad del
// registry; el Scheduler lo usa para el encadenamiento de dependencias.
type ModuleMetadata struct {
	Name        string
	Description string

	// RequiredFields capacidades que el target debe tener ya (vacío = aplicable de inicio)
	RequiredFields []string

	// ProducedFields campos que el módulo declara producir
	ProducedFields []string

	// Timeout por ejecución de unidad
	Timeout time.Duration

	// Weight máximo de unidades de este módulo ejecutando a la vez
	Weight int

	// MaxRetries presupuesto de reintentos por unidad
	MaxRetries int

	// Rate / Burst token bucket por módulo (0 = sin límite)
	Rate  float64
	Burst int

	// Priority orden de despacho (mayor = antes)
	Priority int
}

// SatisfiedBy reporta si los RequiredFields están cubiertos por attrs.
func (m ModuleMetadata) SatisfiedBy(attrs map[string]bool) bool {
	for _, field := range m.RequiredFields {
		if !attrs[field] {
			return false
		}
	}
	return true
}

// ModuleConfig contiene la configuración de runtime de un módulo.
type ModuleConfig struct {
	// Enabled indica si el módulo está habilitado
	Enabled bool

	// Timeout tiempo máximo de ejecución (0 = usar default del módulo)
	Timeout time.Duration

	// Retries override del presupuesto de reintentos (-1 = default del módulo)
	Retries int

	// Rate / Burst override del rate limit (0 = default del módulo)
	Rate  float64
	Burst int

	// Weight override de concurrencia por módulo (0 = default)
	Weight int

	// Priority prioridad de despacho
	Priority int

	// Custom configuración específica del módulo (wordlists, puertos, etc.)
	Custom map[string]any
}

// DefaultModuleConfig retorna una configuración por defecto.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		Enabled: true,
		Retries: -1,
		Custom:  make(map[string]any),
	}
}

// ApplyDefaults completa metadata con los overrides de la configuración.
func (m ModuleMetadata) ApplyDefaults(cfg ModuleConfig) ModuleMetadata {
	out := m
	if cfg.Timeout > 0 {
		out.Timeout = cfg.Timeout
	}
	if cfg.Retries >= 0 {
		out.MaxRetries = cfg.Retries
	}
	if cfg.Rate > 0 {
		out.Rate = cfg.Rate
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.Weight > 0 {
		out.Weight = cfg.Weight
	}
	if cfg.Priority != 0 {
		out.Priority = cfg.Priority
	}
	return out
}
