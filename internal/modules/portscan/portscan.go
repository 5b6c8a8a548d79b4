// internal/modules/portscan/portscan.go
package portscan

import (
	"context"
	"fmt"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"

	"mira/internal/core/domain"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
)

const defaultTopPorts = 100

// Options controla el comportamiento del escaneo nmap.
type Options struct {
	// Ports expresión de puertos nmap ("80,443", "1-1024"). Vacío usa TopPorts.
	Ports string

	// TopPorts número de puertos más comunes a escanear cuando Ports está vacío.
	TopPorts int

	// ServiceDetection habilita -sV
	ServiceDetection bool

	// SkipHostDiscovery habilita -Pn
	SkipHostDiscovery bool

	// MinRate paquetes por segundo mínimos (0 = default de nmap)
	MinRate int
}

// Scanner descubre puertos TCP abiertos y servicios delegando en el binario
// nmap del sistema. Escanea todas las IPs conocidas del target en una sola
// pasada.
type Scanner struct {
	opts   Options
	logger logx.Logger
}

// New crea una nueva instancia del módulo portscan.
func New(opts Options, logger logx.Logger) *Scanner {
	if opts.TopPorts <= 0 {
		opts.TopPorts = defaultTopPorts
	}
	return &Scanner{
		opts:   opts,
		logger: logger.With("module", "portscan"),
	}
}

// Name retorna el nombre del módulo.
func (s *Scanner) Name() string {
	return "portscan"
}

// Execute escanea las IPs del target y reporta puertos abiertos y servicios.
func (s *Scanner) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	ips := input.Strings(domain.FieldIP)
	if len(ips) == 0 && target.Kind == domain.TargetKindIP {
		ips = []string{target.Identity}
	}
	if len(ips) == 0 {
		return nil, domain.NewFatalModuleError(s.Name(), fmt.Errorf("target %s has no resolved addresses", target.Identity))
	}

	s.logger.Debug("starting port scan", "target", target.Identity, "ips", len(ips))

	scanOpts := []nmap.Option{
		nmap.WithTargets(ips...),
		nmap.WithDisabledDNSResolution(),
	}
	if s.opts.Ports != "" {
		scanOpts = append(scanOpts, nmap.WithPorts(s.opts.Ports))
	} else {
		scanOpts = append(scanOpts, nmap.WithMostCommonPorts(s.opts.TopPorts))
	}
	if s.opts.ServiceDetection {
		scanOpts = append(scanOpts, nmap.WithServiceInfo())
	}
	if s.opts.SkipHostDiscovery {
		scanOpts = append(scanOpts, nmap.WithSkipHostDiscovery())
	}
	if s.opts.MinRate > 0 {
		scanOpts = append(scanOpts, nmap.WithMinRate(s.opts.MinRate))
	}

	scanner, err := nmap.NewScanner(ctx, scanOpts...)
	if err != nil {
		// Sin binario nmap no hay nada que reintentar.
		return nil, domain.NewFatalModuleError(s.Name(), fmt.Errorf("create nmap scanner: %w", err))
	}

	scan, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(errors.ErrConnectionFailed, "nmap run failed: %v", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.logger.Warn("nmap produced warnings", "target", target.Identity, "warnings", strings.Join(*warnings, "; "))
	}

	openPorts, services := collectPorts(scan)

	result := domain.NewModuleResult(s.Name())
	if len(openPorts) > 0 {
		result.Set("open_ports", openPorts)
	}
	if len(services) > 0 {
		result.Set("services", services)
	}

	s.logger.Debug("port scan complete", "target", target.Identity, "open", len(openPorts))
	return result, nil
}

// Close libera recursos del módulo.
func (s *Scanner) Close() error {
	return nil
}

// collectPorts aplana los hosts del run de nmap a listas de puertos abiertos
// ("80/tcp") y servicios ("80/tcp http nginx").
func collectPorts(scan *nmap.Run) (openPorts, services []string) {
	seen := make(map[string]bool)
	for _, host := range scan.Hosts {
		for _, port := range host.Ports {
			state := strings.ToLower(port.State.State)
			if !strings.HasPrefix(state, "open") {
				continue
			}
			key := fmt.Sprintf("%d/%s", port.ID, port.Protocol)
			if seen[key] {
				continue
			}
			seen[key] = true

			openPorts = append(openPorts, key)
			if port.Service.Name != "" {
				svc := fmt.Sprintf("%s %s", key, port.Service.Name)
				if port.Service.Product != "" {
					svc += " " + port.Service.Product
				}
				services = append(services, svc)
			}
		}
	}
	return openPorts, services
}
