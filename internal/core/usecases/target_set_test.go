package usecases

import (
	"strings"
	"testing"

	"mira/internal/core/domain"
	"mira/internal/platform/logx"
)

func newTestTargetSet(ceiling int, includeEdges bool) *TargetSet {
	return NewTargetSet(TargetSetOptions{
		RangeCeiling:            ceiling,
		IncludeNetworkBroadcast: includeEdges,
		Logger:                  logx.New(),
	})
}

func TestExpandHostname(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"Example.COM."})
	if len(res.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(res.Targets))
	}
	tgt := res.Targets[0]
	if tgt.Identity != "example.com" {
		t.Errorf("expected normalized example.com, got %s", tgt.Identity)
	}
	if tgt.Kind != domain.TargetKindHost {
		t.Errorf("expected host kind, got %s", tgt.Kind)
	}
	if !tgt.Registrable {
		t.Error("example.com should be registrable")
	}
}

func TestExpandSubdomainNotRegistrable(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"www.example.com"})
	if len(res.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(res.Targets))
	}
	if res.Targets[0].Registrable {
		t.Error("www.example.com should not be registrable")
	}

	fields := res.Targets[0].SeedFields()
	for _, f := range fields {
		if f == domain.FieldDomain {
			t.Error("non-registrable host must not seed the domain field")
		}
	}
}

func TestExpandSingleIP(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"192.168.1.10"})
	if len(res.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(res.Targets))
	}
	if res.Targets[0].Kind != domain.TargetKindIP {
		t.Errorf("expected ip kind, got %s", res.Targets[0].Kind)
	}
}

func TestExpandCIDRWithEdges(t *testing.T) {
	ts := newTestTargetSet(10, true)

	res := ts.Expand([]string{"10.0.0.0/30"})
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if len(res.Targets) != 4 {
		t.Fatalf("expected 4 targets, got %d", len(res.Targets))
	}
	want := []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"}
	for i, w := range want {
		if res.Targets[i].Identity != w {
			t.Errorf("target %d: expected %s, got %s", i, w, res.Targets[i].Identity)
		}
	}
}

func TestExpandCIDRExcludesNetworkBroadcast(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"10.0.0.0/30"})
	if len(res.Targets) != 2 {
		t.Fatalf("expected 2 usable hosts, got %d", len(res.Targets))
	}
	if res.Targets[0].Identity != "10.0.0.1" || res.Targets[1].Identity != "10.0.0.2" {
		t.Errorf("unexpected hosts: %s, %s", res.Targets[0].Identity, res.Targets[1].Identity)
	}
}

func TestExpandSlash31KeepsBothAddresses(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"10.0.0.0/31"})
	if len(res.Targets) != 2 {
		t.Fatalf("point-to-point /31 should keep both addresses, got %d", len(res.Targets))
	}
}

func TestExpandCIDROverCeiling(t *testing.T) {
	ts := newTestTargetSet(10, true)

	res := ts.Expand([]string{"10.0.0.0/8"})
	if len(res.Targets) != 0 {
		t.Fatalf("expected no targets, got %d", len(res.Targets))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(res.Warnings))
	}
	if !strings.Contains(res.Warnings[0].Message, domain.ErrTargetRangeTooLarge.Error()) {
		t.Errorf("warning should mention range too large: %s", res.Warnings[0].Message)
	}
}

func TestExpandInvalidInputDoesNotAbort(t *testing.T) {
	ts := newTestTargetSet(10, false)

	res := ts.Expand([]string{"not a host!", "example.com", ""})
	if len(res.Targets) != 1 {
		t.Fatalf("expected the valid target to survive, got %d", len(res.Targets))
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(res.Warnings))
	}
}

func TestExpandDeduplicates(t *testing.T) {
	ts := newTestTargetSet(10, true)

	res := ts.Expand([]string{"example.com", "EXAMPLE.com.", "10.0.0.1", "10.0.0.0/31"})
	// example.com once, 10.0.0.1 once (also inside the /31), 10.0.0.0.
	if len(res.Targets) != 3 {
		identities := make([]string, 0, len(res.Targets))
		for _, tgt := range res.Targets {
			identities = append(identities, tgt.Identity)
		}
		t.Fatalf("expected 3 deduplicated targets, got %v", identities)
	}
}
