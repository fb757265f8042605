package scene

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Attempts  *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
}

func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scene_describe_attempts_total",
			Help: "Upstream scene description calls, by result.",
		}, []string{"status"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scene_fallbacks_total",
			Help: "Descriptions served from the fallback pool, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Attempts, m.Fallbacks)
	return m
}

func (m *Metrics) attempt(status string) {
	if m != nil {
		m.Attempts.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) fallback(reason string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(reason).Inc()
	}
}
