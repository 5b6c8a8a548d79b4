// internal/modules/dirscan/dirscan.go
package dirscan

import (
	"context"
	"fmt"
	"net/url"
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
		"dirscan",
		factory,
		ports.ModuleMetadata{
			Name:        "dirscan",
			Description: "Directory discovery via landing page crawling and common path probing",

			RequiredFields: []string{domain.FieldHost},
			ProducedFields: []string{"directories"},

			Timeout:    60 * time.Second,
			Weight:     2,
			MaxRetries: 1,
			// Sondea varias rutas por target, mantener el ritmo bajo.
			Rate:     10,
			Burst:    5,
			Priority: 5,
		},
	); err != nil {
		logx.New().Warn("failed to register dirscan module", "error", err.Error())
	}
}

func factory(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
	scheme := registry.GetStringConfig(cfg.Custom, "scheme", "https")
	wordlist := registry.GetSliceConfig(cfg.Custom, "wordlist", defaultWordlist())
	maxDirs := registry.GetIntConfig(cfg.Custom, "max_dirs", defaultMaxDirs)
	return New(scheme, wordlist, maxDirs, logger), nil
}

const defaultMaxDirs = 50

// defaultWordlist retorna las rutas comunes a sondear cuando la config no
// aporta una wordlist propia.
func defaultWordlist() []string {
	return []string{
		"admin", "api", "assets", "backup", "blog", "css", "docs",
		"images", "js", "login", "media", "static", "uploads", "wp-admin",
	}
}

// Crawler descubre directorios de un host combinando dos fuentes: los
// enlaces internos de la landing page y el sondeo de una wordlist de rutas
// comunes. Deshabilitado por defecto por ser la operación más ruidosa.
type Crawler struct {
	client   *httpclient.Client
	scheme   string
	wordlist []string
	maxDirs  int
	logger   logx.Logger
}

// New crea una nueva instancia del módulo dirscan.
func New(scheme string, wordlist []string, maxDirs int, logger logx.Logger) *Crawler {
	if maxDirs <= 0 {
		maxDirs = defaultMaxDirs
	}
	return &Crawler{
		client: httpclient.New(httpclient.Config{
			Timeout:        10 * time.Second,
			RateLimit:      10,
			RateLimitBurst: 5,
		}, logger),
		scheme:   scheme,
		wordlist: wordlist,
		maxDirs:  maxDirs,
		logger:   logger.With("module", "dirscan"),
	}
}

// Name retorna el nombre del módulo.
func (c *Crawler) Name() string {
	return "dirscan"
}

// Execute descubre directorios del host del target.
func (c *Crawler) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	host := target.Identity
	if v, ok := input.First(domain.FieldHost); ok {
		if s, ok := v.(string); ok && s != "" {
			host = s
		}
	}

	base := fmt.Sprintf("%s://%s", c.scheme, host)
	found := make(map[string]bool)

	// Fase 1: enlaces internos de la landing page.
	if dirs, err := c.crawlLanding(ctx, base, host); err == nil {
		for _, d := range dirs {
			found[d] = true
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Fase 2: sondeo de rutas comunes.
	for _, path := range c.wordlist {
		if len(found) >= c.maxDirs {
			break
		}
		if found["/"+path] {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if c.probePath(ctx, base, path) {
			found["/"+path] = true
		}
	}

	result := domain.NewModuleResult(c.Name())
	if len(found) > 0 {
		dirs := make([]string, 0, len(found))
		for d := range found {
			dirs = append(dirs, d)
		}
		sort.Strings(dirs)
		if len(dirs) > c.maxDirs {
			dirs = dirs[:c.maxDirs]
		}
		result.Set("directories", dirs)
	}

	c.logger.Debug("directory scan complete", "host", host, "found", len(found))
	return result, nil
}

// Close libera recursos del módulo.
func (c *Crawler) Close() error {
	return nil
}

// crawlLanding extrae los primeros segmentos de ruta de los enlaces internos
// de la página principal.
func (c *Crawler) crawlLanding(ctx context.Context, base, host string) ([]string, error) {
	resp, err := c.client.Get(ctx, base+"/", nil)
	if err != nil {
		return nil, err
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if dir := internalDir(attr.Val, host); dir != "" {
					seen[dir] = true
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	return out, nil
}

// internalDir reduce un href al primer segmento de ruta si apunta al propio
// host. Retorna "" para enlaces externos, anchors y la raíz.
func internalDir(href, host string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if parsed.Host != "" && !strings.EqualFold(parsed.Host, host) {
		return ""
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return ""
	}
	segment := strings.SplitN(path, "/", 2)[0]
	if segment == "" || strings.Contains(segment, ".") {
		return ""
	}
	return "/" + segment
}

// probePath comprueba si una ruta existe (cualquier estado que no sea 404).
func (c *Crawler) probePath(ctx context.Context, base, path string) bool {
	resp, err := c.client.Get(ctx, base+"/"+path+"/", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode != 404
}
