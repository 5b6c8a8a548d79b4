// internal/modules/whois/whois.go
package whois

import (
	"context"
	"fmt"
	"strings"
	"time"

	likwhois "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
)

// Auto-registro del módulo al importar el package.
func init() {
	if err := registry.Global().Register(
		"whois",
		factory,
		ports.ModuleMetadata{
			Name:        "whois",
			Description: "Registration data lookup via WHOIS protocol",

			RequiredFields: []string{domain.FieldDomain},
			ProducedFields: []string{"registrar", "created", "expires", "updated", "whois_nameservers", "dnssec"},

			Timeout:    20 * time.Second,
			Weight:     2,
			MaxRetries: 2,
			// Los servidores WHOIS banean con facilidad; una consulta por segundo.
			Rate:     1,
			Burst:    1,
			Priority: 20,
		},
	); err != nil {
		logx.New().Warn("failed to register whois module", "error", err.Error())
	}
}

func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	server := registry.GetStringConfig(cfg.Custom, "server", "")
	return New(server, logger), nil
}

// Whois consulta los datos de registro de un dominio y los parsea a campos
// estructurados. Solo aplica a targets con capacidad "domain" (eTLD+1);
// los subdominios y las IPs quedan fuera.
type Whois struct {
	client *likwhois.Client
	server string
	logger logx.Logger
}

// New crea una nueva instancia del módulo whois. server fuerza un servidor
// WHOIS concreto; vacío delega la selección en la librería. Con servidor
// fijado no se siguen referrals: la respuesta del servidor elegido es la
// autoritativa.
func New(server string, logger logx.Logger) *Whois {
	client := likwhois.NewClient()
	if server != "" {
		client.SetDisableReferral(true)
	}
	return &Whois{
		client: client,
		server: server,
		logger: logger.With("module", "whois"),
	}
}

// Name retorna el nombre del módulo.
func (w *Whois) Name() string {
	return "whois"
}

// Execute realiza la consulta WHOIS del dominio del target.
func (w *Whois) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	name := target.Identity
	if v, ok := input.First(domain.FieldDomain); ok {
		if s, ok := v.(string); ok && s != "" {
			name = s
		}
	}

	w.logger.Debug("querying whois", "domain", name)

	raw, err := w.query(ctx, name)
	if err != nil {
		return nil, err
	}

	// Detección de no-registrado sobre el texto crudo: el parser no
	// clasifica todas las variantes de "no match" de los registries.
	if isNotFound(raw) {
		return nil, domain.NewFatalModuleError(w.Name(), fmt.Errorf("domain %s is not registered", name))
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		switch {
		case errors.Is(err, whoisparser.ErrNotFoundDomain):
			return nil, domain.NewFatalModuleError(w.Name(), fmt.Errorf("domain %s is not registered", name))
		case errors.Is(err, whoisparser.ErrDomainLimitExceed):
			return nil, errors.Wrapf(errors.ErrRateLimit, "whois server throttled query for %s", name)
		default:
			return nil, errors.Wrapf(errors.ErrInvalidResponse, "whois parse failed for %s: %v", name, err)
		}
	}

	result := domain.NewModuleResult(w.Name())
	if parsed.Registrar != nil && parsed.Registrar.Name != "" {
		result.Set("registrar", parsed.Registrar.Name)
	}
	if d := parsed.Domain; d != nil {
		if d.CreatedDate != "" {
			result.Set("created", d.CreatedDate)
		}
		if d.ExpirationDate != "" {
			result.Set("expires", d.ExpirationDate)
		}
		if d.UpdatedDate != "" {
			result.Set("updated", d.UpdatedDate)
		}
		if len(d.NameServers) > 0 {
			result.Set("whois_nameservers", d.NameServers)
		}
		if d.DNSSec {
			result.Set("dnssec", "enabled")
		}
	}

	return result, nil
}

// Close libera recursos del módulo.
func (w *Whois) Close() error {
	return nil
}

// notFoundMarkers son las variantes de "dominio no registrado" que emiten
// los distintos registries.
var notFoundMarkers = []string{
	"no match for",
	"no match!!",
	"not found",
	"no data found",
	"no entries found",
	"domain not found",
	"the queried object does not exist",
	"status: free",
	"status: available",
}

// isNotFound reporta si la respuesta cruda indica dominio no registrado.
func isNotFound(raw string) bool {
	lowered := strings.ToLower(raw)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// query ejecuta la consulta WHOIS en una goroutine para poder respetar la
// cancelación del contexto (la librería no acepta ctx).
func (w *Whois) query(ctx context.Context, name string) (string, error) {
	type reply struct {
		raw string
		err error
	}
	ch := make(chan reply, 1)

	go func() {
		var raw string
		var err error
		if w.server != "" {
			raw, err = w.client.Whois(name, w.server)
		} else {
			raw, err = w.client.Whois(name)
		}
		ch <- reply{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", errors.Wrapf(errors.ErrConnectionFailed, "whois query for %s: %v", name, r.err)
		}
		return r.raw, nil
	}
}
