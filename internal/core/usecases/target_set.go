// internal/core/usecases/target_set.go
package usecases

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/net/publicsuffix"

	"mira/internal/core/domain"
	"mira/internal/platform/logx"
	"mira/internal/platform/validator"
)

// TargetSet normaliza y expande la entrada cruda del usuario en targets
// atómicos deduplicados. Las entradas inválidas se registran como warnings
// y no abortan la expansión; los rangos CIDR por encima del techo
// configurado fallan esa entrada con ErrTargetRangeTooLarge.
type TargetSet struct {
	rangeCeiling            int
	includeNetworkBroadcast bool
	logger                  logx.Logger
}

// TargetSetOptions configura el TargetSet.
type TargetSetOptions struct {
	// RangeCeiling máximo de direcciones que un rango puede producir.
	RangeCeiling int

	// IncludeNetworkBroadcast incluye las direcciones de red y broadcast
	// al expandir rangos IPv4 con prefijo menor que /31.
	IncludeNetworkBroadcast bool

	Logger logx.Logger
}

// ExpandResult es el producto de una expansión: targets deduplicados más
// los warnings de las entradas descartadas.
type ExpandResult struct {
	Targets  []*domain.Target
	Warnings []domain.Warning
}

// NewTargetSet crea un TargetSet con las opciones dadas.
func NewTargetSet(opts TargetSetOptions) *TargetSet {
	if opts.RangeCeiling <= 0 {
		opts.RangeCeiling = 4096
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	return &TargetSet{
		rangeCeiling:            opts.RangeCeiling,
		includeNetworkBroadcast: opts.IncludeNetworkBroadcast,
		logger:                  opts.Logger.With("component", "target-set"),
	}
}

// Expand parsea cada entrada como hostname, IP única o rango CIDR.
// Retorna el conjunto deduplicado por identidad normalizada.
func (ts *TargetSet) Expand(raws []string) ExpandResult {
	var result ExpandResult
	seen := make(map[string]bool)

	add := func(t *domain.Target) {
		if seen[t.Identity] {
			return
		}
		seen[t.Identity] = true
		result.Targets = append(result.Targets, t)
	}

	warn := func(input string, err error) {
		ts.logger.Warn("target skipped", "input", input, "reason", err.Error())
		result.Warnings = append(result.Warnings, domain.NewWarning(input, err.Error()))
	}

	for _, raw := range raws {
		input := strings.TrimSpace(raw)
		if input == "" {
			warn(raw, domain.ErrEmptyTarget)
			continue
		}

		switch {
		case strings.Contains(input, "/"):
			targets, err := ts.expandPrefix(input)
			if err != nil {
				warn(input, err)
				continue
			}
			for _, t := range targets {
				add(t)
			}

		case validator.IsIP(input):
			add(domain.NewIPTarget(input))

		default:
			t, err := ts.hostTarget(input)
			if err != nil {
				warn(input, err)
				continue
			}
			add(t)
		}
	}

	ts.logger.Info("targets expanded",
		"inputs", len(raws),
		"targets", len(result.Targets),
		"skipped", len(result.Warnings),
	)

	return result
}

// hostTarget normaliza un hostname y determina si es un dominio registrable
// (eTLD+1), lo que concede la capacidad de dominio a los módulos whois y
// subdomains.
func (ts *TargetSet) hostTarget(input string) (*domain.Target, error) {
	host := validator.NormalizeDomain(input)
	if !validator.IsDomain(host) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTarget, input)
	}

	registrable := false
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && etld1 == host {
		registrable = true
	}

	return domain.NewHostTarget(host, registrable), nil
}

// expandPrefix expande un rango CIDR IPv4 en targets individuales.
func (ts *TargetSet) expandPrefix(input string) ([]*domain.Target, error) {
	prefix, err := netip.ParsePrefix(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTarget, input)
	}
	prefix = prefix.Masked()

	addr := prefix.Addr()
	if !addr.Is4() {
		if prefix.Bits() == 128 {
			return []*domain.Target{domain.NewIPTarget(addr.String())}, nil
		}
		return nil, fmt.Errorf("%w: IPv6 range expansion not supported: %s", domain.ErrInvalidTarget, input)
	}

	hostBits := 32 - prefix.Bits()
	if hostBits > 30 {
		// Un /0 o /1 jamás cabe bajo un techo razonable.
		return nil, fmt.Errorf("%w: %s", domain.ErrTargetRangeTooLarge, input)
	}

	count := 1 << hostBits
	if count > ts.rangeCeiling {
		return nil, fmt.Errorf("%w: %s expands to %d addresses (ceiling %d)",
			domain.ErrTargetRangeTooLarge, input, count, ts.rangeCeiling)
	}

	// /31 y /32 no tienen direcciones de red/broadcast.
	skipEdges := hostBits >= 2 && !ts.includeNetworkBroadcast

	targets := make([]*domain.Target, 0, count)
	current := addr
	for i := 0; i < count; i++ {
		if !skipEdges || (i != 0 && i != count-1) {
			targets = append(targets, domain.NewIPTarget(current.String()))
		}
		current = current.Next()
	}

	return targets, nil
}
