package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	if Result(nil) != "ok" {
		t.Error("nil error should be ok")
	}
	if Result(errors.New("x")) != "error" {
		t.Error("non-nil error should be error")
	}
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(ConversionAttempts.WithLabelValues("fallback", "ok"))
	ConversionAttempts.WithLabelValues("fallback", "ok").Inc()
	after := testutil.ToFloat64(ConversionAttempts.WithLabelValues("fallback", "ok"))
	if after-before != 1 {
		t.Errorf("delta = %v, want 1", after-before)
	}
}
