// internal/modules/subdomains/subdomains.go
package subdomains

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/errors"
	"mira/internal/platform/httpclient"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
	"mira/internal/platform/validator"
)

// Auto-registro del módulo al importar el package.
func init() {
	if err := registry.Global().Register(
		"subdomains",
		factory,
		ports.ModuleMetadata{
			Name:        "subdomains",
			Description: "Passive subdomain discovery via Certificate Transparency logs (crt.sh)",

			RequiredFields: []string{domain.FieldDomain},
			ProducedFields: []string{"subdomains"},

			Timeout:    60 * time.Second,
			Weight:     2,
			MaxRetries: 2,
			// crt.sh no documenta límite, pero responde mal al abuso.
			Rate:     2,
			Burst:    1,
			Priority: 20,
		},
	); err != nil {
		logx.New().Warn("failed to register subdomains module", "error", err.Error())
	}
}

func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	baseURL := registry.GetStringConfig(cfg.Custom, "base_url", defaultBaseURL)
	limit := registry.GetIntConfig(cfg.Custom, "limit", defaultLimit)
	module := New(baseURL, limit, logger)
	module.wordlist = registry.GetSliceConfig(cfg.Custom, "wordlist", nil)
	return module, nil
}

const (
	defaultBaseURL = "https://crt.sh"
	defaultLimit   = 500
)

// certRecord es una entrada de la respuesta JSON de crt.sh.
type certRecord struct {
	NameValue  string `json:"name_value"`
	CommonName string `json:"common_name"`
	IssuerName string `json:"issuer_name"`
}

// CertSearch descubre subdominios consultando los logs de Certificate
// Transparency vía crt.sh. Descubrimiento pasivo: no toca la
// infraestructura del target. Con una wordlist configurada añade una fase
// activa de sondeo HTTP de candidatos.
type CertSearch struct {
	client   *httpclient.Client
	baseURL  string
	limit    int
	wordlist []string
	logger   logx.Logger
}

// New crea una nueva instancia del módulo subdomains.
func New(baseURL string, limit int, logger logx.Logger) *CertSearch {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &CertSearch{
		client: httpclient.New(httpclient.Config{
			Timeout:        45 * time.Second,
			RateLimit:      2.0,
			RateLimitBurst: 1,
		}, logger),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limit:   limit,
		logger:  logger.With("module", "subdomains"),
	}
}

// Name retorna el nombre del módulo.
func (c *CertSearch) Name() string {
	return "subdomains"
}

// Execute consulta crt.sh por certificados emitidos bajo el dominio del
// target y extrae los subdominios únicos en scope.
func (c *CertSearch) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	root := target.Identity
	if v, ok := input.First(domain.FieldDomain); ok {
		if s, ok := v.(string); ok && s != "" {
			root = s
		}
	}

	queryURL := fmt.Sprintf("%s/?q=%s&output=json", c.baseURL, url.QueryEscape("%."+root))
	c.logger.Debug("querying certificate transparency logs", "domain", root)

	body, err := c.client.FetchJSON(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	var records []certRecord
	if err := json.Unmarshal(body, &records); err != nil {
		// crt.sh devuelve HTML cuando está sobrecargado; tratarlo como
		// indisponibilidad transitoria.
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "crt.sh returned non-JSON response: %v", err)
	}

	found := c.extract(ctx, records, root)
	if len(c.wordlist) > 0 {
		found = c.probeWordlist(ctx, root, found)
	}

	result := domain.NewModuleResult(c.Name())
	if len(found) > 0 {
		result.Set("subdomains", found)
	}

	c.logger.Debug("subdomain discovery complete", "domain", root, "records", len(records), "subdomains", len(found))
	return result, nil
}

// Close libera recursos del módulo.
func (c *CertSearch) Close() error {
	return nil
}

// extract deduplica los hosts de los certificados y descarta wildcards,
// hosts fuera de scope y el propio apex.
func (c *CertSearch) extract(ctx context.Context, records []certRecord, root string) []string {
	seen := make(map[string]bool)
	suffix := "." + root

	for _, record := range records {
		select {
		case <-ctx.Done():
			return sortedKeys(seen)
		default:
		}

		// name_value puede traer varios hosts separados por \n
		for _, host := range strings.Split(record.NameValue, "\n") {
			host = validator.NormalizeDomain(strings.TrimSpace(host))
			host = strings.TrimPrefix(host, "*.")
			if host == "" || host == root {
				continue
			}
			if !strings.HasSuffix(host, suffix) {
				continue
			}
			if !validator.IsDomain(host) {
				continue
			}
			if len(seen) >= c.limit {
				return sortedKeys(seen)
			}
			seen[host] = true
		}
	}
	return sortedKeys(seen)
}

// probeWordlist comprueba por HTTP los candidatos de la wordlist que los
// logs de certificados no hayan aportado ya.
func (c *CertSearch) probeWordlist(ctx context.Context, root string, known []string) []string {
	set := make(map[string]bool, len(known))
	for _, host := range known {
		set[host] = true
	}

	for _, word := range c.wordlist {
		candidate := word + "." + root
		if set[candidate] || len(set) >= c.limit {
			continue
		}
		select {
		case <-ctx.Done():
			return sortedKeys(set)
		default:
		}
		resp, err := c.client.Get(ctx, "http://"+candidate+"/", nil)
		if err != nil {
			continue
		}
		resp.Body.Close()
		set[candidate] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
