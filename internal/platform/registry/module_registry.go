// internal/platform/registry/module_registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/logx"
)

// ModuleRegistry gestiona el registro y construcción de módulos.
// Implementa el patrón Registry + Factory para desacoplar la creación
// de módulos del código de aplicación.
type ModuleRegistry struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
	metadata  map[string]ports.ModuleMetadata
	logger    logx.Logger
}

// ModuleFactory es una función que crea una instancia de Module.
type ModuleFactory func(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error)

// globalRegistry es la instancia global del registry.
var globalRegistry *ModuleRegistry
var once sync.Once

// Global retorna la instancia global del registry.
func Global() *ModuleRegistry {
	once.Do(func() {
		globalRegistry = NewModuleRegistry(logx.New())
	})
	return globalRegistry
}

// NewModuleRegistry crea un nuevo registry de módulos.
func NewModuleRegistry(logger logx.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		factories: make(map[string]ModuleFactory),
		metadata:  make(map[string]ports.ModuleMetadata),
		logger:    logger.With("component", "module-registry"),
	}
}

// Register registra una module factory con su metadata.
// Típicamente llamado desde init() de cada module package.
// Falla con domain.ErrDuplicateModule si la identidad ya existe.
func (r *ModuleRegistry) Register(name string, factory ModuleFactory, meta ports.ModuleMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil for module %s", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateModule, name)
	}

	r.factories[name] = factory
	r.metadata[name] = meta
	r.logger.Debug("module registered",
		"name", name,
		"requires", meta.RequiredFields,
		"produces", meta.ProducedFields,
	)

	return nil
}

// MustRegister registra y hace panic en caso de error.
// Uso exclusivo en init() de module packages, donde un duplicado es un
// defecto de programación.
func (r *ModuleRegistry) MustRegister(name string, factory ModuleFactory, meta ports.ModuleMetadata) {
	if err := r.Register(name, factory, meta); err != nil {
		panic(err)
	}
}

// Build construye todos los módulos habilitados según la configuración.
// Los errores de setup son fatales y se devuelven al caller antes de
// cualquier scheduling.
func (r *ModuleRegistry) Build(configs map[string]ports.ModuleConfig, logger logx.Logger) ([]ports.Module, map[string]ports.ModuleMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if logger == nil {
		return nil, nil, fmt.Errorf("logger cannot be nil")
	}

	modules := make([]ports.Module, 0, len(r.factories))
	metadata := make(map[string]ports.ModuleMetadata, len(r.factories))

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg, hasCfg := configs[name]
		if !hasCfg {
			cfg = ports.DefaultModuleConfig()
		}
		if !cfg.Enabled {
			r.logger.Debug("module disabled, skipping", "module", name)
			continue
		}

		module, err := r.factories[name](cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build module %s: %w", name, err)
		}

		modules = append(modules, module)
		metadata[name] = r.metadata[name].ApplyDefaults(cfg)

		r.logger.Debug("module built", "name", name, "priority", metadata[name].Priority)
	}

	if len(modules) == 0 {
		return nil, nil, domain.ErrNoModulesAvailable
	}

	logger.Info("modules built", "count", len(modules), "registered", len(r.factories))
	return modules, metadata, nil
}

// Applicable retorna, en orden estable, los módulos cuyos RequiredFields
// están satisfechos por el conjunto de atributos dado. Se recalcula a medida
// que los targets ganan atributos, habilitando el encadenamiento de
// dependencias sin una estructura de grafo explícita.
func (r *ModuleRegistry) Applicable(attrs map[string]bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	applicable := make([]string, 0, len(r.metadata))
	for name, meta := range r.metadata {
		if meta.SatisfiedBy(attrs) {
			applicable = append(applicable, name)
		}
	}
	sort.Strings(applicable)
	return applicable
}

// List retorna los nombres de todos los módulos registrados.
func (r *ModuleRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMetadata retorna el metadata de un módulo.
func (r *ModuleRegistry) GetMetadata(name string) (ports.ModuleMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, exists := r.metadata[name]
	return meta, exists
}

// IsRegistered verifica si un módulo está registrado.
func (r *ModuleRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[name]
	return exists
}

// Clear elimina todos los módulos registrados (útil para testing).
func (r *ModuleRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]ModuleFactory)
	r.metadata = make(map[string]ports.ModuleMetadata)
}
