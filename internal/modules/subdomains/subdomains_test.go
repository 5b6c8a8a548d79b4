package subdomains

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mira/internal/core/domain"
	"mira/internal/platform/errors"
	"mira/internal/platform/logx"
)

const sampleCrtshResponse = `[
	{"name_value": "www.example.com\ndev.example.com", "common_name": "www.example.com", "issuer_name": "C=US, O=Let's Encrypt"},
	{"name_value": "*.example.com", "common_name": "*.example.com", "issuer_name": "C=US, O=Let's Encrypt"},
	{"name_value": "api.example.com", "common_name": "api.example.com", "issuer_name": "C=US, O=DigiCert"},
	{"name_value": "www.example.com", "common_name": "www.example.com", "issuer_name": "C=US, O=DigiCert"},
	{"name_value": "evil.other.org", "common_name": "evil.other.org", "issuer_name": "C=US"}
]`

func TestNew(t *testing.T) {
	module := New(defaultBaseURL, 0, logx.NewSilent())

	if module == nil {
		t.Fatal("New() returned nil")
	}
	if module.Name() != "subdomains" {
		t.Errorf("expected name 'subdomains', got %s", module.Name())
	}
	if module.limit != defaultLimit {
		t.Errorf("expected default limit %d, got %d", defaultLimit, module.limit)
	}
}

func TestExecuteExtractsSubdomains(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("output") != "json" {
			t.Errorf("expected output=json query, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleCrtshResponse))
	}))
	defer server.Close()

	module := New(server.URL, 0, logx.NewSilent())
	target := domain.NewHostTarget("example.com", true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := module.Execute(ctx, *target, domain.FieldSnapshot{
		domain.FieldDomain: {"example.com"},
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	subs, ok := result.Fields["subdomains"].([]string)
	if !ok {
		t.Fatalf("expected []string subdomains field, got %T", result.Fields["subdomains"])
	}

	// www, dev y api deduplicados; el wildcard se reduce al apex y se
	// descarta; evil.other.org queda fuera de scope.
	expected := []string{"api.example.com", "dev.example.com", "www.example.com"}
	if len(subs) != len(expected) {
		t.Fatalf("expected %d subdomains, got %d: %v", len(expected), len(subs), subs)
	}
	for i, want := range expected {
		if subs[i] != want {
			t.Errorf("subdomain %d: expected %s, got %s", i, want, subs[i])
		}
	}
}

func TestExecuteNonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>crt.sh is overloaded</html>"))
	}))
	defer server.Close()

	module := New(server.URL, 0, logx.NewSilent())
	target := domain.NewHostTarget("example.com", true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := module.Execute(ctx, *target, domain.FieldSnapshot{})
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	if !errors.Is(err, errors.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got: %v", err)
	}
}

func TestExecuteHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCrtshResponse))
	}))
	defer server.Close()

	module := New(server.URL, 2, logx.NewSilent())
	target := domain.NewHostTarget("example.com", true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := module.Execute(ctx, *target, domain.FieldSnapshot{})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	subs, _ := result.Fields["subdomains"].([]string)
	if len(subs) != 2 {
		t.Errorf("expected limit of 2 subdomains, got %d: %v", len(subs), subs)
	}
}
