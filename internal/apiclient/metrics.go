package apiclient

import "github.com/prometheus/client_golang/prometheus"

// clientMetrics tracks indexer request outcomes, labeled by endpoint.
// Same constructor-plus-optional-Registerer shape as walletsync.Metrics.
type clientMetrics struct {
	requestErrors  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apiclient_request_errors_total",
			Help: "Number of indexer requests that ultimately failed, by endpoint.",
		}, []string{"endpoint"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apiclient_request_duration_seconds",
			Help:    "Indexer request round-trip time, by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestErrors, m.requestLatency)
	}
	return m
}
