// internal/testutil/fixtures.go
package testutil

// Fixture data para tests (valores primitivos solamente, sin dependencias de domain)

// FixtureHosts contiene hostnames de prueba válidos.
var FixtureHosts = []string{
	"example.com",
	"www.example.com",
	"api.test.example.com",
}

// FixtureInvalidTargets contiene entradas que la expansión debe rechazar.
var FixtureInvalidTargets = []string{
	"",
	"not a target",
	"-invalid.com",
	".example.com",
	"example..com",
	"10.0.0.0/33",
}

// FixtureIPs contiene IPs de prueba.
var FixtureIPs = []string{
	"192.168.1.1",
	"10.0.0.1",
	"172.16.0.1",
	"8.8.8.8",
}

// FixtureCIDRs contiene rangos de prueba válidos.
var FixtureCIDRs = []string{
	"192.168.1.0/30",
	"10.0.0.0/29",
	"172.16.0.0/31",
}
