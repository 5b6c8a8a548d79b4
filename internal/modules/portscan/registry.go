// internal/modules/portscan/registry.go
package portscan

import (
	"time"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
)

// Auto-registro del módulo al importar el package.
func init() {
	if err := registry.Global().Register(
		"portscan",
		factory,
		ports.ModuleMetadata{
			Name:        "portscan",
			Description: "TCP port and service discovery via nmap",

			// Depende de "ip": aplica de inicio a targets IP y se encadena
			// tras resolve para los hostnames.
			RequiredFields: []string{domain.FieldIP},
			ProducedFields: []string{"open_ports", "services"},

			Timeout:    120 * time.Second,
			Weight:     2, // nmap es pesado, como mucho dos escaneos a la vez
			MaxRetries: 1,
			Priority:   10,
		},
	); err != nil {
		logx.New().Warn("failed to register portscan module", "error", err.Error())
	}
}

// factory crea el módulo desde la configuración usando los helpers del registry.
func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	opts := Options{
		Ports:             registry.GetStringConfig(cfg.Custom, "ports", ""),
		TopPorts:          registry.GetIntConfig(cfg.Custom, "top_ports", defaultTopPorts),
		ServiceDetection:  registry.GetBoolConfig(cfg.Custom, "service_detection", true),
		SkipHostDiscovery: registry.GetBoolConfig(cfg.Custom, "skip_host_discovery", true),
		MinRate:           registry.GetIntConfig(cfg.Custom, "min_rate", 0),
	}
	return New(opts, logger), nil
}
