// internal/platform/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"testing"
)

func TestWrap(t *testing.T) {
	base := New("base failure")
	wrapped := Wrap(base, "context")

	if wrapped.Error() != "context: base failure" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base via Is")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestWrapf(t *testing.T) {
	base := ErrTimeout
	wrapped := Wrapf(base, "module %s attempt %d", "portscan", 2)

	want := "module portscan attempt 2: operation timed out"
	if wrapped.Error() != want {
		t.Errorf("got %q, want %q", wrapped.Error(), want)
	}
	if !IsTimeout(wrapped) {
		t.Error("wrapped timeout should classify as timeout")
	}
}

func TestUnwrap(t *testing.T) {
	base := New("inner")
	wrapped := Wrap(base, "outer")

	if Unwrap(wrapped) != base {
		t.Error("Unwrap should return the cause")
	}
}

func TestSentinelClassifiers(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
	}{
		{ErrTimeout, IsTimeout},
		{ErrRateLimit, IsRateLimit},
		{ErrConnectionFailed, IsConnectionFailed},
		{ErrInvalidInput, IsInvalidInput},
	}

	for _, c := range cases {
		if !c.pred(Wrap(c.err, "ctx")) {
			t.Errorf("classifier failed for %v", c.err)
		}
		if c.pred(stderrors.New("other")) {
			t.Errorf("classifier matched unrelated error for %v", c.err)
		}
	}
}

func TestJoin(t *testing.T) {
	a := New("a")
	b := New("b")
	joined := Join(a, nil, b)

	if !Is(joined, a) || !Is(joined, b) {
		t.Error("joined error should match both members")
	}
}
