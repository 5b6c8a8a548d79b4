package usecases

import (
	"context"
	"testing"

	"mira/internal/core/domain"
	"mira/internal/platform/errors"
	"mira/internal/platform/resilience"
)

func TestClassifyCancellation(t *testing.T) {
	if got := Classify(context.Canceled); got != domain.FailureCancelled {
		t.Errorf("context.Canceled: expected cancelled, got %s", got)
	}
	if got := Classify(errors.Wrap(domain.ErrRunCancelled, "run aborted")); got != domain.FailureCancelled {
		t.Errorf("ErrRunCancelled: expected cancelled, got %s", got)
	}
}

func TestClassifyFatal(t *testing.T) {
	fatal := domain.NewFatalModuleError("whois", errors.New("tld not supported"))
	if got := Classify(fatal); got != domain.FailureFatal {
		t.Errorf("fatal module error: expected fatal, got %s", got)
	}
	if got := Classify(errors.ErrInvalidInput); got != domain.FailureFatal {
		t.Errorf("invalid input: expected fatal, got %s", got)
	}
}

func TestClassifyTransient(t *testing.T) {
	cases := []error{
		context.DeadlineExceeded,
		errors.ErrTimeout,
		errors.ErrRateLimit,
		errors.ErrConnectionFailed,
		errors.ErrServiceUnavailable,
		resilience.ErrCircuitOpen,
		errors.Wrapf(resilience.ErrCircuitOpen, "module portscan"),
		errors.New("something unrecognized"),
	}

	for _, err := range cases {
		if got := Classify(err); got != domain.FailureTransient {
			t.Errorf("%v: expected transient, got %s", err, got)
		}
	}
}

func TestClassifyNonFatalModuleErrorIsTransient(t *testing.T) {
	err := domain.NewModuleError("resolve", errors.ErrConnectionFailed)
	if got := Classify(err); got != domain.FailureTransient {
		t.Errorf("non-fatal module error: expected transient, got %s", got)
	}
}
