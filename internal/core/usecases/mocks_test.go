package usecases

import (
	"context"
	"sync"

	"mira/internal/core/domain"
	"mira/internal/core/ports"
)

// mockModule es un módulo configurable para tests del scheduler.
type mockModule struct {
	name string
	fn   func(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error)

	mu    sync.Mutex
	calls []mockCall
}

type mockCall struct {
	target string
	input  domain.FieldSnapshot
}

func newMockModule(name string, fn func(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error)) *mockModule {
	return &mockModule{name: name, fn: fn}
}

func (m *mockModule) Name() string { return m.name }

func (m *mockModule) Execute(ctx context.Context, target domain.Target, input domain.FieldSnapshot) (*domain.ModuleResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{target: target.Identity, input: input})
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, target, input)
	}
	return domain.NewModuleResult(m.name), nil
}

func (m *mockModule) Close() error { return nil }

func (m *mockModule) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockModule) callsFor(identity string) []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockCall
	for _, c := range m.calls {
		if c.target == identity {
			out = append(out, c)
		}
	}
	return out
}

// mockNotifier acumula eventos emitidos durante el run.
type mockNotifier struct {
	mu     sync.Mutex
	events []ports.Event
}

func (n *mockNotifier) Notify(_ context.Context, event ports.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *mockNotifier) Close() error { return nil }

func (n *mockNotifier) count(eventType ports.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == eventType {
			c++
		}
	}
	return c
}
