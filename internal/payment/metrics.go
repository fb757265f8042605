package payment

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Verifications *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
}

func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verification strategy results, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_verification_duration_seconds",
			Help:    "Time spent verifying one payment claim.",
			Buckets: []float64{0.1, 0.5, 1, 3, 6, 10, 20},
		}, []string{"result"}),
	}
	reg.MustRegister(m.Verifications, m.Duration)
	return m
}

func (m *Metrics) observe(results []Result) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.Verifications.WithLabelValues(r.Strategy, r.Outcome.String()).Inc()
	}
}
