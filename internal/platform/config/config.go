// internal/platform/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"mira/internal/core/ports"
)

type Config struct {
	// App
	Targets      []string `yaml:"targets"`
	Workers      int      `yaml:"workers"`
	TimeoutS     int      `yaml:"timeout"` // segundos (0 = sin timeout global)
	PrintVersion bool     `yaml:"-"`
	ConfigFile   string   `yaml:"-"`
	LogLevel     string   `yaml:"log_level"`

	// IO
	OutputDir string `yaml:"output_dir"`

	// Expansion
	Expansion Expansion `yaml:"expansion"`

	// Modules: mapa dinámico de configuraciones por módulo.
	// Key = module name (ej: "resolve", "whois", "portscan")
	Modules map[string]ports.ModuleConfig `yaml:"modules"`

	// Outputs
	Outputs Outputs `yaml:"outputs"`

	// Resilience
	Resilience Resilience `yaml:"resilience"`

	// UI
	UI UI `yaml:"ui"`
}

type Expansion struct {
	// RangeCeiling limita cuántas direcciones puede producir un rango CIDR.
	RangeCeiling int `yaml:"range_ceiling"`
	// IncludeNetworkBroadcast incluye las direcciones de red y broadcast
	// al expandir rangos IPv4.
	IncludeNetworkBroadcast bool `yaml:"include_network_broadcast"`
}

type Outputs struct {
	TableDisabled bool `yaml:"no_table"`
	// JSON output is always generated.
}

type Resilience struct {
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffJitter     float64       `yaml:"backoff_jitter"`
	BackoffMax        time.Duration `yaml:"backoff_max"`

	CircuitBreakerEnabled     bool          `yaml:"cb_enabled"`
	CircuitBreakerThreshold   int           `yaml:"cb_threshold"`
	CircuitBreakerCooldown    time.Duration `yaml:"cb_cooldown"`
	CircuitBreakerHalfOpenMax int           `yaml:"cb_half_open_max"`
}

type UI struct {
	Mode string `yaml:"mode"` // "pretty" | "plain" | "quiet"
}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Workers:  8,
		TimeoutS: 0,
		LogLevel: "info",

		OutputDir: "mira_out",

		Expansion: Expansion{
			RangeCeiling:            4096,
			IncludeNetworkBroadcast: false,
		},

		Modules: map[string]ports.ModuleConfig{
			"resolve": {
				Enabled: true,
				Timeout: 10 * time.Second,
				Retries: -1,
				Custom:  make(map[string]any),
			},
			"whois": {
				Enabled: true,
				Timeout: 20 * time.Second,
				Retries: -1,
				Rate:    1,
				Burst:   1,
				Custom:  make(map[string]any),
			},
			"portscan": {
				Enabled: true,
				Timeout: 120 * time.Second,
				Retries: -1,
				Custom:  make(map[string]any),
			},
			"subdomains": {
				Enabled: true,
				Timeout: 60 * time.Second,
				Retries: -1,
				Custom:  make(map[string]any),
			},
			"webtech": {
				Enabled: true,
				Timeout: 15 * time.Second,
				Retries: -1,
				Custom:  make(map[string]any),
			},
			"dirscan": {
				Enabled: false,
				Timeout: 60 * time.Second,
				Retries: -1,
				Rate:    10,
				Burst:   5,
				Custom:  make(map[string]any),
			},
		},

		Outputs: Outputs{
			TableDisabled: false,
		},

		Resilience: Resilience{
			BackoffBase:               1 * time.Second,
			BackoffMultiplier:         2.0,
			BackoffJitter:             0.25,
			BackoffMax:                60 * time.Second,
			CircuitBreakerEnabled:     true,
			CircuitBreakerThreshold:   5,
			CircuitBreakerCooldown:    60 * time.Second,
			CircuitBreakerHalfOpenMax: 3,
		},

		UI: UI{Mode: "pretty"},
	}
}

// Load inicializa la configuración con precedencia creciente:
// defaults -> fichero YAML -> ENV -> flags.
func Load(args []string) (Config, error) {
	cfg := DefaultConfig()

	// El fichero puede venir por flag o por ENV; hace falta un pre-parse
	// del flag -config antes de cargarlo.
	if path := configFilePath(args); path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, err
		}
		cfg.ConfigFile = path
	}

	loadFromEnv(&cfg)

	if err := loadFromFlags(&cfg, args); err != nil {
		return cfg, err
	}

	normalize(&cfg)
	return cfg, nil
}

func configFilePath(args []string) string {
	pre := pflag.NewFlagSet("mira-pre", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	pre.SetOutput(discard{})
	path := pre.String("config", "", "")
	_ = pre.Parse(args)

	if *path != "" {
		return *path
	}
	return getenv("MIRA_CONFIG", "")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// loadFromFile mezcla un fichero YAML sobre la configuración actual.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv carga configuración desde variables de entorno.
func loadFromEnv(cfg *Config) {
	if v := getenv("MIRA_TARGETS", ""); v != "" {
		cfg.Targets = splitList(v)
	}
	if v := getenv("MIRA_WORKERS", ""); v != "" {
		cfg.Workers = parseInt(v, cfg.Workers)
	}
	if v := getenv("MIRA_TIMEOUT", ""); v != "" {
		cfg.TimeoutS = parseInt(v, cfg.TimeoutS)
	}
	if v := getenv("MIRA_OUTPUT_DIR", ""); v != "" {
		cfg.OutputDir = v
	}
	if v := getenv("MIRA_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("MIRA_RANGE_CEILING", ""); v != "" {
		cfg.Expansion.RangeCeiling = parseInt(v, cfg.Expansion.RangeCeiling)
	}
	if v := getenv("MIRA_INCLUDE_NETWORK_BROADCAST", ""); v != "" {
		cfg.Expansion.IncludeNetworkBroadcast = parseBool(v)
	}
	if v := getenv("MIRA_UI_MODE", ""); v != "" {
		cfg.UI.Mode = v
	}

	// Modules config desde ENV.
	// Formato: MIRA_MODULES_RESOLVE_ENABLED=true
	//          MIRA_MODULES_PORTSCAN_TIMEOUT=180
	//          MIRA_MODULES_WHOIS_RATE=2
	for name := range cfg.Modules {
		prefix := fmt.Sprintf("MIRA_MODULES_%s_", strings.ToUpper(name))

		moduleCfg := cfg.Modules[name]

		if v := getenv(prefix+"ENABLED", ""); v != "" {
			moduleCfg.Enabled = parseBool(v)
		}
		if v := getenv(prefix+"TIMEOUT", ""); v != "" {
			moduleCfg.Timeout = time.Duration(parseInt(v, int(moduleCfg.Timeout.Seconds()))) * time.Second
		}
		if v := getenv(prefix+"RETRIES", ""); v != "" {
			moduleCfg.Retries = parseInt(v, moduleCfg.Retries)
		}
		if v := getenv(prefix+"RATE", ""); v != "" {
			moduleCfg.Rate = parseFloat(v, moduleCfg.Rate)
		}
		if v := getenv(prefix+"BURST", ""); v != "" {
			moduleCfg.Burst = parseInt(v, moduleCfg.Burst)
		}
		if v := getenv(prefix+"WEIGHT", ""); v != "" {
			moduleCfg.Weight = parseInt(v, moduleCfg.Weight)
		}
		if v := getenv(prefix+"PRIORITY", ""); v != "" {
			moduleCfg.Priority = parseInt(v, moduleCfg.Priority)
		}

		cfg.Modules[name] = moduleCfg
	}

	// Outputs
	if v := getenv("MIRA_OUTPUTS_TABLE_DISABLED", ""); v != "" {
		cfg.Outputs.TableDisabled = parseBool(v)
	}

	// Resilience
	if v := getenv("MIRA_RESILIENCE_BACKOFF_BASE", ""); v != "" {
		cfg.Resilience.BackoffBase = time.Duration(parseInt(v, int(cfg.Resilience.BackoffBase.Seconds()))) * time.Second
	}
	if v := getenv("MIRA_RESILIENCE_CB_ENABLED", ""); v != "" {
		cfg.Resilience.CircuitBreakerEnabled = parseBool(v)
	}
	if v := getenv("MIRA_RESILIENCE_CB_THRESHOLD", ""); v != "" {
		cfg.Resilience.CircuitBreakerThreshold = parseInt(v, cfg.Resilience.CircuitBreakerThreshold)
	}
}

// loadFromFlags parsea flags de CLI sobre la configuración actual.
func loadFromFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("mira", pflag.ContinueOnError)

	fs.StringSliceVarP(&cfg.Targets, "target", "t", cfg.Targets,
		"Target a escanear: hostname, IP o rango CIDR (repetible)")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Concurrencia máxima de unidades de trabajo")
	fs.IntVar(&cfg.TimeoutS, "timeout", cfg.TimeoutS, "Timeout global en segundos (0 = sin timeout)")
	fs.StringVarP(&cfg.OutputDir, "out", "o", cfg.OutputDir, "Directorio de salida")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Nivel de log (debug|info|warn|error)")
	fs.BoolVarP(&cfg.PrintVersion, "version", "V", false, "Imprimir versión y salir")
	fs.String("config", cfg.ConfigFile, "Fichero de configuración YAML")

	fs.IntVar(&cfg.Expansion.RangeCeiling, "range-ceiling", cfg.Expansion.RangeCeiling,
		"Máximo de direcciones expandibles desde un rango CIDR")
	fs.BoolVar(&cfg.Expansion.IncludeNetworkBroadcast, "include-network-broadcast",
		cfg.Expansion.IncludeNetworkBroadcast,
		"Incluir direcciones de red y broadcast al expandir rangos IPv4")

	// Module configs (solo enabled via flags, el resto via ENV, YAML o defaults).
	for name := range cfg.Modules {
		moduleCfg := cfg.Modules[name]
		fs.BoolVar(&moduleCfg.Enabled, fmt.Sprintf("mod.%s", name), moduleCfg.Enabled,
			fmt.Sprintf("Habilitar módulo %s", name))
		cfg.Modules[name] = moduleCfg
	}

	fs.BoolVar(&cfg.Outputs.TableDisabled, "no-table", cfg.Outputs.TableDisabled,
		"Desactivar salida en tabla (JSON siempre se genera)")
	fs.StringVar(&cfg.UI.Mode, "ui", cfg.UI.Mode, "Modo de UI (pretty|plain|quiet)")

	fs.BoolVar(&cfg.Resilience.CircuitBreakerEnabled, "cb", cfg.Resilience.CircuitBreakerEnabled,
		"Habilitar circuit breaker por módulo")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Los flags bool de módulos escriben sobre copias del map; re-leer.
	fs.Visit(func(f *pflag.Flag) {
		if !strings.HasPrefix(f.Name, "mod.") {
			return
		}
		name := strings.TrimPrefix(f.Name, "mod.")
		if moduleCfg, ok := cfg.Modules[name]; ok {
			moduleCfg.Enabled = parseBool(f.Value.String())
			cfg.Modules[name] = moduleCfg
		}
	})

	return nil
}

func normalize(c *Config) {
	targets := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		t = strings.TrimSpace(t)
		if t != "" {
			targets = append(targets, t)
		}
	}
	c.Targets = targets

	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TimeoutS < 0 {
		c.TimeoutS = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = "mira_out"
	}
	if c.Expansion.RangeCeiling < 1 {
		c.Expansion.RangeCeiling = 4096
	}
	if c.Resilience.BackoffBase <= 0 {
		c.Resilience.BackoffBase = 1 * time.Second
	}
	if c.Resilience.BackoffMultiplier < 1.0 {
		c.Resilience.BackoffMultiplier = 2.0
	}
	switch c.UI.Mode {
	case "pretty", "plain", "quiet":
	default:
		c.UI.Mode = "pretty"
	}
}

// ToJSON serializa la configuración a JSON (útil para debugging).
func (c Config) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Timeout devuelve el timeout global como duración (0 = sin límite).
func (c Config) Timeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutS) * time.Second
}

// Helpers

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func parseFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
