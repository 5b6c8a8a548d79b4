// internal/modules/resolve/resolve.go
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
)

// Auto-registro del módulo al importar el package.
func init() {
	if err := registry.Global().Register(
		"resolve",
		factory,
		ports.ModuleMetadata{
			Name:        "resolve",
			Description: "DNS resolution via direct queries to configurable resolvers",

			RequiredFields: []string{domain.FieldHost},
			ProducedFields: []string{domain.FieldIP, "ipv6", "cname", "nameservers", "mx"},

			Timeout:    10 * time.Second,
			Weight:     0,
			MaxRetries: 2,
			Priority:   30, // resolve habilita al resto, despacha primero
		},
	); err != nil {
		logx.New().Warn("failed to register resolve module", "error", err.Error())
	}
}

func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	resolvers := registry.GetSliceConfig(cfg.Custom, "resolvers", []string{"1.1.1.1:53", "8.8.8.8:53"})
	queryTimeout := registry.GetDurationConfig(cfg.Custom, "query_timeout", 5*time.Second)
	return New(resolvers, queryTimeout, logger), nil
}

// Resolver consulta registros DNS de un hostname contra una lista de
// resolvers, con fallback entre ellos. Produce el campo "ip" que habilita
// los módulos encadenados sobre direcciones (portscan).
type Resolver struct {
	resolvers []string
	client    *mdns.Client
	logger    logx.Logger
}

// New crea una nueva instancia del módulo resolve.
func New(resolvers []string, queryTimeout time.Duration, logger logx.Logger) *Resolver {
	client := new(mdns.Client)
	client.Timeout = queryTimeout

	return &Resolver{
		resolvers: resolvers,
		client:    client,
		logger:    logger.With("module", "resolve"),
	}
}

// Name retorna el nombre del módulo.
func (r *Resolver) Name() string {
	return "resolve"
}

// Execute resuelve los registros A, AAAA, CNAME, NS y MX del target.
func (r *Resolver) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	host := target.Identity
	if v, ok := input.First(domain.FieldHost); ok {
		if s, ok := v.(string); ok && s != "" {
			host = s
		}
	}

	r.logger.Debug("resolving host", "host", host)

	result := domain.NewModuleResult(r.Name())

	ipv4, err := r.queryA(ctx, host, mdns.TypeA)
	if err != nil {
		return nil, err
	}
	ipv6, _ := r.queryA(ctx, host, mdns.TypeAAAA)

	if len(ipv4) > 0 {
		result.Set(domain.FieldIP, ipv4)
	}
	if len(ipv6) > 0 {
		result.Set("ipv6", ipv6)
	}

	// Registros auxiliares; sus fallos no invalidan la resolución principal.
	if cname := r.queryCNAME(ctx, host); cname != "" {
		result.Set("cname", cname)
	}
	if ns := r.queryNS(ctx, host); len(ns) > 0 {
		result.Set("nameservers", ns)
	}
	if mx := r.queryMX(ctx, host); len(mx) > 0 {
		result.Set("mx", mx)
	}

	r.logger.Debug("resolution complete", "host", host, "ipv4", len(ipv4), "ipv6", len(ipv6))
	return result, nil
}

// Close libera recursos del módulo.
func (r *Resolver) Close() error {
	return nil
}

// exchange consulta un tipo de registro con fallback entre resolvers.
func (r *Resolver) exchange(ctx context.Context, host string, qtype uint16) (*mdns.Msg, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, resolver := range r.resolvers {
		reply, _, err := r.client.ExchangeContext(ctx, msg, resolver)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if reply.Rcode == mdns.RcodeServerFailure {
			lastErr = fmt.Errorf("resolver %s returned SERVFAIL", resolver)
			continue
		}
		return reply, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no resolvers configured")
	}
	return nil, errors.Wrapf(errors.ErrConnectionFailed, "dns query %s failed: %v", mdns.TypeToString[qtype], lastErr)
}

func (r *Resolver) queryA(ctx context.Context, host string, qtype uint16) ([]string, error) {
	reply, err := r.exchange(ctx, host, qtype)
	if err != nil {
		return nil, err
	}
	if reply.Rcode == mdns.RcodeNameError {
		// NXDOMAIN: el hostname no existe, reintentar no va a cambiarlo.
		return nil, domain.NewFatalModuleError(r.Name(), fmt.Errorf("host %s does not exist (NXDOMAIN)", host))
	}

	var out []string
	for _, ans := range reply.Answer {
		switch rec := ans.(type) {
		case *mdns.A:
			out = append(out, rec.A.String())
		case *mdns.AAAA:
			out = append(out, rec.AAAA.String())
		}
	}
	return out, nil
}

func (r *Resolver) queryCNAME(ctx context.Context, host string) string {
	reply, err := r.exchange(ctx, host, mdns.TypeCNAME)
	if err != nil {
		return ""
	}
	for _, ans := range reply.Answer {
		if rec, ok := ans.(*mdns.CNAME); ok {
			return strings.TrimSuffix(rec.Target, ".")
		}
	}
	return ""
}

func (r *Resolver) queryNS(ctx context.Context, host string) []string {
	reply, err := r.exchange(ctx, host, mdns.TypeNS)
	if err != nil {
		return nil
	}
	var out []string
	for _, ans := range reply.Answer {
		if rec, ok := ans.(*mdns.NS); ok {
			out = append(out, strings.TrimSuffix(rec.Ns, "."))
		}
	}
	return out
}

func (r *Resolver) queryMX(ctx context.Context, host string) []string {
	reply, err := r.exchange(ctx, host, mdns.TypeMX)
	if err != nil {
		return nil
	}
	var out []string
	for _, ans := range reply.Answer {
		if rec, ok := ans.(*mdns.MX); ok {
			out = append(out, fmt.Sprintf("%s (pref %d)", strings.TrimSuffix(rec.Mx, "."), rec.Preference))
		}
	}
	return out
}
