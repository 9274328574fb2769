package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal     *prometheus.CounterVec
	EscalationsTotal   *prometheus.CounterVec
	AuditFailuresTotal prometheus.Counter
}

// New registers the collectors on the default registry. Call once per
// process; use NewWith for an isolated registry (tests).
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventguard_decisions_total",
			Help: "Guard decisions by action and audited outcome",
		}, []string{"action", "outcome"}),
		EscalationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventguard_escalation_attempts_total",
			Help: "Classified escalation attempts by type",
		}, []string{"type"}),
		AuditFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventguard_audit_write_failures_total",
			Help: "Audit sink write failures; each one blocked an action",
		}),
	}
}

func (m *Metrics) Decision(action, outcome string) {
	m.DecisionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) Escalation(escalationType string) {
	m.EscalationsTotal.WithLabelValues(escalationType).Inc()
}

func (m *Metrics) AuditFailure() {
	m.AuditFailuresTotal.Inc()
}
