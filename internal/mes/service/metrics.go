package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics 业务指标
type Metrics struct {
	Transitions       *prometheus.CounterVec
	RejectedActions   *prometheus.CounterVec
	AnalyticsDegraded *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "operation_transitions_total",
			Help:      "Work order operation state transitions committed, by action.",
		}, []string{"action"}),
		RejectedActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "operation_actions_rejected_total",
			Help:      "Work order operation actions rejected, by action and error code.",
		}, []string{"action", "code"}),
		AnalyticsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mes",
			Name:      "analytics_degraded_total",
			Help:      "Analytics views served as zeroed fallbacks after an internal failure.",
		}, []string{"view"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.RejectedActions, m.AnalyticsDegraded)
	}
	return m
}
