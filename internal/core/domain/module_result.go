// internal/core/domain/module_result.go
package domain

import (
	"sort"
	"time"
)

// ModuleResult es la salida cruda de una ejecución exitosa de un módulo
// contra un target: un mapeo de nombre de campo a valor más procedencia.
// Inmutable una vez producido; el Scheduler lo posee transitoriamente y
// el Aggregator lo consume.
type ModuleResult struct {
	// Module identidad del módulo que produjo el resultado
	Module string

	// Fields mapeo campo → valor descubierto
	Fields map[string]any

	// At timestamp de producción
	At time.Time
}

// NewModuleResult crea un resultado vacío para un módulo.
func NewModuleResult(module string) *ModuleResult {
	return &ModuleResult{
		Module: module,
		Fields: make(map[string]any),
		At:     time.Now(),
	}
}

// Set escribe un campo del resultado. Valores nil se ignoran.
func (r *ModuleResult) Set(field string, value any) {
	if field == "" || value == nil {
		return
	}
	r.Fields[field] = value
}

// FieldNames retorna los nombres de campo en orden estable.
func (r *ModuleResult) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty indica si el resultado no aportó campos.
func (r *ModuleResult) IsEmpty() bool {
	return len(r.Fields) == 0
}

// FieldSnapshot es una vista de solo lectura de los campos fusionados de un
// target en un instante dado. Se entrega a los módulos como input para que
// resuelvan sus dependencias (p.ej. portscan lee las IPs que resolvió resolve).
type FieldSnapshot map[string][]any

// First retorna el primer valor observado para un campo.
func (s FieldSnapshot) First(field string) (any, bool) {
	values, ok := s[field]
	if !ok || len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// Strings retorna todos los valores string de un campo, aplanando slices.
func (s FieldSnapshot) Strings(field string) []string {
	var out []string
	for _, v := range s[field] {
		switch value := v.(type) {
		case string:
			out = append(out, value)
		case []string:
			out = append(out, value...)
		}
	}
	return out
}

// Has indica si el snapshot contiene un campo.
func (s FieldSnapshot) Has(field string) bool {
	return len(s[field]) > 0
}
