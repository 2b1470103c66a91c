package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestEmitter_counts_events(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	e := NewEmitter(zap.NewNop(), m)

	e.EmitEvent("customer_selected", map[string]any{"customer_id": "CUST-0001"})
	e.EmitEvent("customer_selected", nil)
	e.EmitError("run_failed", errors.New("boom"), map[string]any{"trace_id": "t1"})

	if got := testutil.ToFloat64(m.TelemetryEventsTotal.WithLabelValues("customer_selected")); got != 2 {
		t.Errorf("customer_selected count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TelemetryEventsTotal.WithLabelValues("run_failed")); got != 1 {
		t.Errorf("run_failed count = %v, want 1", got)
	}
}

func TestEmitter_never_fails(t *testing.T) {
	// Nil logger and nil metrics must be tolerated.
	e := NewEmitter(nil, nil)
	e.EmitEvent("anything", map[string]any{"k": "v"})
	e.EmitError("anything", nil, nil)
}
