// internal/core/domain/target.go
package domain

import (
	"fmt"

	"mira/internal/platform/validator"
)

// Nombres de campos semilla. Un target nace con un conjunto de atributos
// derivado de su identidad; los módulos amplían ese conjunto con los campos
// que producen, habilitando el encadenamiento de dependencias.
const (
	// FieldHost hostname conocido del target
	FieldHost = "host"

	// FieldIP dirección IPv4 conocida del target
	FieldIP = "ip"

	// FieldDomain dominio registrable (habilita whois, subdomains)
	FieldDomain = "domain"
)

// Target representa una unidad atómica de escaneo.
// Inmutable una vez creado; el Target Set es su dueño y las work units
// lo referencian sin apropiárselo.
type Target struct {
	// Identity hostname o IP normalizada
	Identity string

	// Kind clasifica la identidad (host | ip)
	Kind TargetKind

	// Registrable indica que Identity es un dominio registrable
	// (eTLD+1), lo que concede la capacidad "domain"
	Registrable bool

	// Tags adicionales para el target
	Tags []string
}

// NewHostTarget crea un target a partir de un hostname normalizado.
func NewHostTarget(host string, registrable bool) *Target {
	return &Target{
		Identity:    validator.NormalizeDomain(host),
		Kind:        TargetKindHost,
		Registrable: registrable,
		Tags:        []string{},
	}
}

// NewIPTarget crea un target a partir de una dirección IP.
func NewIPTarget(ip string) *Target {
	return &Target{
		Identity: ip,
		Kind:     TargetKindIP,
		Tags:     []string{},
	}
}

// Validate verifica que el target sea consistente.
func (t *Target) Validate() error {
	if t.Identity == "" {
		return ErrEmptyTarget
	}
	if !t.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, t.Kind)
	}

	switch t.Kind {
	case TargetKindHost:
		if !validator.IsDomain(t.Identity) {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, t.Identity)
		}
	case TargetKindIP:
		if !validator.IsIP(t.Identity) {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, t.Identity)
		}
	}

	return nil
}

// SeedFields retorna los atributos con los que nace el target.
func (t *Target) SeedFields() []string {
	switch t.Kind {
	case TargetKindIP:
		return []string{FieldIP}
	case TargetKindHost:
		if t.Registrable {
			return []string{FieldHost, FieldDomain}
		}
		return []string{FieldHost}
	default:
		return nil
	}
}

// AddTag añade un tag sin duplicados.
func (t *Target) AddTag(tag string) {
	if tag == "" {
		return
	}
	for _, existing := range t.Tags {
		if existing == tag {
			return
		}
	}
	t.Tags = append(t.Tags, tag)
}

// String retorna una representación legible del target.
func (t *Target) String() string {
	return fmt.Sprintf("Target{identity=%s, kind=%s}", t.Identity, t.Kind)
}
