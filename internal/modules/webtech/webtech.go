// internal/modules/webtech/webtech.go
package webtech

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/httpclient"
	"mira/internal/platform/logx"
	"mira/internal/platform/registry"
)

// Auto-registro del módulo al importar el package.
func init() {
	if err := registry.Global().Register(
		"webtech",
		factory,
		ports.ModuleMetadata{
			Name:        "webtech",
			Description: "Web server and technology fingerprinting via HTTP probing",

			RequiredFields: []string{domain.FieldHost},
			ProducedFields: []string{"server", "technologies", "title", "status_code"},

			Timeout:    15 * time.Second,
			Weight:     4,
			MaxRetries: 2,
			Priority:   10,
		},
	); err != nil {
		logx.New().Warn("failed to register webtech module", "error", err.Error())
	}
}

func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	schemes := registry.GetSliceConfig(cfg.Custom, "schemes", []string{"https", "http"})
	userAgent := registry.GetStringConfig(cfg.Custom, "user_agent", "")
	return New(schemes, userAgent, logger), nil
}

// headerTech mapea cabeceras HTTP a la tecnología que delatan.
var headerTech = map[string]string{
	"X-Powered-By":     "",
	"X-Generator":      "",
	"X-Drupal-Cache":   "Drupal",
	"X-Varnish":        "Varnish",
	"X-AspNet-Version": "ASP.NET",
	"Via":              "",
}

// bodyTech mapea marcadores en el HTML a tecnologías.
var bodyTech = map[string]string{
	"wp-content":         "WordPress",
	"wp-includes":        "WordPress",
	"/sites/default/":    "Drupal",
	"Joomla!":            "Joomla",
	"data-reactroot":     "React",
	"ng-version":         "Angular",
	"__NUXT__":           "Nuxt.js",
	"__NEXT_DATA__":      "Next.js",
	"cdn.shopify.com":    "Shopify",
	"static.squarespace": "Squarespace",
}

// Fingerprinter sondea el servidor web de un target y deduce el stack a
// partir de cabeceras y marcadores del HTML.
type Fingerprinter struct {
	client  *httpclient.Client
	schemes []string
	logger  logx.Logger
}

// New crea una nueva instancia del módulo webtech.
func New(schemes []string, userAgent string, logger logx.Logger) *Fingerprinter {
	if len(schemes) == 0 {
		schemes = []string{"https", "http"}
	}
	return &Fingerprinter{
		client: httpclient.New(httpclient.Config{
			Timeout:   10 * time.Second,
			UserAgent: userAgent,
		}, logger),
		schemes: schemes,
		logger:  logger.With("module", "webtech"),
	}
}

// Name retorna el nombre del módulo.
func (f *Fingerprinter) Name() string {
	return "webtech"
}

// Execute sondea el host por HTTPS con fallback a HTTP y extrae servidor,
// título y tecnologías detectadas.
func (f *Fingerprinter) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	host := target.Identity
	if v, ok := input.First(domain.FieldHost); ok {
		if s, ok := v.(string); ok && s != "" {
			host = s
		}
	}

	var lastErr error
	for _, scheme := range f.schemes {
		probeURL := fmt.Sprintf("%s://%s/", scheme, host)
		result, err := f.probe(ctx, probeURL)
		if err != nil {
			f.logger.Debug("probe failed", "url", probeURL, "error", err.Error())
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return result, nil
	}
	return nil, lastErr
}

// Close libera recursos del módulo.
func (f *Fingerprinter) Close() error {
	return nil
}

func (f *Fingerprinter) probe(ctx context.Context, probeURL string) (*domain.ModuleResult, error) {
	resp, err := f.client.Get(ctx, probeURL, nil)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	result := domain.NewModuleResult(f.Name())
	result.Set("status_code", fmt.Sprintf("%d", resp.StatusCode))

	if server := resp.Header.Get("Server"); server != "" {
		result.Set("server", server)
	}

	techs := make(map[string]bool)
	for header, tech := range headerTech {
		value := resp.Header.Get(header)
		if value == "" {
			continue
		}
		if tech == "" {
			tech = value
		}
		techs[tech] = true
	}

	page := string(body)
	for marker, tech := range bodyTech {
		if strings.Contains(page, marker) {
			techs[tech] = true
		}
	}

	if title := extractTitle(page); title != "" {
		result.Set("title", title)
	}
	if len(techs) > 0 {
		names := make([]string, 0, len(techs))
		for name := range techs {
			names = append(names, name)
		}
		sort.Strings(names)
		result.Set("technologies", names)
	}

	return result, nil
}

// extractTitle saca el contenido de <title> del HTML.
func extractTitle(page string) string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
