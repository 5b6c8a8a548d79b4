// internal/platform/validator/validator.go
package validator

import (
	"net"
	"regexp"
	"strings"
)

var domainRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)

// IsDomain verifica si un string es un hostname válido.
// Soporta dominios internacionales (IDN) y punycode.
func IsDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}

	if !domainRegex.MatchString(domain) {
		return false
	}

	// Una IP no es un dominio
	if net.ParseIP(domain) != nil {
		return false
	}

	return true
}

// NormalizeDomain normaliza un hostname a su forma canónica.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimPrefix(domain, "*.")
	return domain
}

// IsIP verifica si un string es una dirección IP válida (v4 o v6).
func IsIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// IsIPv4 verifica si un string es una dirección IPv4.
func IsIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil
}

// IsSubdomain verifica si subdomain es un subdominio válido de baseDomain.
func IsSubdomain(subdomain, baseDomain string) bool {
	subdomain = NormalizeDomain(subdomain)
	baseDomain = NormalizeDomain(baseDomain)

	if subdomain == baseDomain {
		return false
	}

	return strings.HasSuffix(subdomain, "."+baseDomain)
}
