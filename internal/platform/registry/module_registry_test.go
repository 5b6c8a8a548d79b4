package registry

import (
	"context"
	"errors"
	"testing"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
	"mira/internal/platform/logx"
)

type stubModule struct {
	name string
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	return domain.NewModuleResult(m.name), nil
}

func (m *stubModule) Close() error { return nil }

func stubFactory(name string) ModuleFactory {
	return func(cfg ports.ModuleConfig, logger logx.Logger) (ports.Module, error) {
		return &stubModule{name: name}, nil
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewModuleRegistry(logx.New())

	meta := ports.ModuleMetadata{Name: "resolve", RequiredFields: []string{domain.FieldHost}}
	if err := r.Register("resolve", stubFactory("resolve"), meta); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := r.Register("resolve", stubFactory("resolve"), meta)
	if !errors.Is(err, domain.ErrDuplicateModule) {
		t.Errorf("expected ErrDuplicateModule, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewModuleRegistry(logx.New())

	if err := r.Register("", stubFactory("x"), ports.ModuleMetadata{}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register("x", nil, ports.ModuleMetadata{}); err == nil {
		t.Error("expected error for nil factory")
	}
}

func TestBuildSkipsDisabled(t *testing.T) {
	r := NewModuleRegistry(logx.New())
	r.MustRegister("resolve", stubFactory("resolve"), ports.ModuleMetadata{Name: "resolve"})
	r.MustRegister("whois", stubFactory("whois"), ports.ModuleMetadata{Name: "whois"})

	configs := map[string]ports.ModuleConfig{
		"resolve": {Enabled: true, Retries: -1},
		"whois":   {Enabled: false, Retries: -1},
	}

	modules, metadata, err := r.Build(configs, logx.New())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(modules))
	}
	if modules[0].Name() != "resolve" {
		t.Errorf("expected resolve, got %s", modules[0].Name())
	}
	if _, ok := metadata["whois"]; ok {
		t.Error("disabled module should not have metadata")
	}
}

func TestBuildNoModules(t *testing.T) {
	r := NewModuleRegistry(logx.New())
	r.MustRegister("resolve", stubFactory("resolve"), ports.ModuleMetadata{Name: "resolve"})

	configs := map[string]ports.ModuleConfig{
		"resolve": {Enabled: false, Retries: -1},
	}

	_, _, err := r.Build(configs, logx.New())
	if !errors.Is(err, domain.ErrNoModulesAvailable) {
		t.Errorf("expected ErrNoModulesAvailable, got %v", err)
	}
}

func TestBuildAppliesDefaults(t *testing.T) {
	r := NewModuleRegistry(logx.New())
	r.MustRegister("portscan", stubFactory("portscan"), ports.ModuleMetadata{
		Name:       "portscan",
		MaxRetries: 2,
		Weight:     3,
	})

	configs := map[string]ports.ModuleConfig{
		"portscan": {Enabled: true, Retries: -1},
	}

	_, metadata, err := r.Build(configs, logx.New())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if metadata["portscan"].MaxRetries != 2 {
		t.Errorf("expected default MaxRetries 2, got %d", metadata["portscan"].MaxRetries)
	}
	if metadata["portscan"].Weight != 3 {
		t.Errorf("expected default Weight 3, got %d", metadata["portscan"].Weight)
	}
}

func TestApplicable(t *testing.T) {
	r := NewModuleRegistry(logx.New())
	r.MustRegister("resolve", stubFactory("resolve"), ports.ModuleMetadata{
		Name:           "resolve",
		RequiredFields: []string{domain.FieldHost},
		ProducedFields: []string{domain.FieldIP},
	})
	r.MustRegister("portscan", stubFactory("portscan"), ports.ModuleMetadata{
		Name:           "portscan",
		RequiredFields: []string{domain.FieldIP},
	})
	r.MustRegister("whois", stubFactory("whois"), ports.ModuleMetadata{
		Name:           "whois",
		RequiredFields: []string{domain.FieldDomain},
	})

	attrs := map[string]bool{domain.FieldHost: true}
	got := r.Applicable(attrs)
	if len(got) != 1 || got[0] != "resolve" {
		t.Fatalf("expected [resolve], got %v", got)
	}

	// Tras la resolución el target gana la IP y portscan pasa a ser aplicable.
	attrs[domain.FieldIP] = true
	got = r.Applicable(attrs)
	if len(got) != 2 || got[0] != "portscan" || got[1] != "resolve" {
		t.Fatalf("expected [portscan resolve], got %v", got)
	}
}

func TestClear(t *testing.T) {
	r := NewModuleRegistry(logx.New())
	r.MustRegister("resolve", stubFactory("resolve"), ports.ModuleMetadata{Name: "resolve"})

	r.Clear()
	if r.IsRegistered("resolve") {
		t.Error("registry should be empty after Clear")
	}
	if len(r.List()) != 0 {
		t.Error("List should be empty after Clear")
	}
}
