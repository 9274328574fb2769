package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.Decision("view", "ALLOWED")
	m.Decision("view", "ALLOWED")
	m.Decision("delete", "DENIED")
	m.Escalation("capability_bypass")
	m.AuditFailure()

	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("view", "ALLOWED")); got != 2 {
		t.Fatalf("view/ALLOWED count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("delete", "DENIED")); got != 1 {
		t.Fatalf("delete/DENIED count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("capability_bypass")); got != 1 {
		t.Fatalf("escalation count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AuditFailuresTotal); got != 1 {
		t.Fatalf("audit failure count = %v, want 1", got)
	}
}

func TestIsolatedRegistries(t *testing.T) {
	// Two instances on separate registries must not share counters.
	a := NewWith(prometheus.NewRegistry())
	b := NewWith(prometheus.NewRegistry())

	a.Decision("view", "ALLOWED")

	if got := testutil.ToFloat64(b.DecisionsTotal.WithLabelValues("view", "ALLOWED")); got != 0 {
		t.Fatalf("second registry saw %v decisions, want 0", got)
	}
}
