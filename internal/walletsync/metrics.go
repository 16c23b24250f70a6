package walletsync

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors a Manager updates as it runs.
// A nil Registerer disables registration so tests and short-lived demos
// don't collide on the default global registry.
type Metrics struct {
	SyncStarted        prometheus.Counter
	SyncStoppedSuccess prometheus.Counter
	SyncStoppedError   prometheus.Counter
	BlockHeightUpdates prometheus.Counter
	TxnSubmitSuccess   prometheus.Counter
	TxnSubmitFailure   prometheus.Counter
	GetTransactionsRT  prometheus.Histogram
}

// NewMetrics builds a Metrics set and, if reg is non-nil, registers every
// collector with it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_scan_started_total",
			Help: "Number of full scans started.",
		}),
		SyncStoppedSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_scan_stopped_success_total",
			Help: "Number of full scans that completed successfully.",
		}),
		SyncStoppedError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_scan_stopped_error_total",
			Help: "Number of full scans that stopped due to failure or disconnect.",
		}),
		BlockHeightUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_block_height_updates_total",
			Help: "Number of times the network block height advanced.",
		}),
		TxnSubmitSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_txn_submit_success_total",
			Help: "Number of transaction submissions that succeeded.",
		}),
		TxnSubmitFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "walletsync_txn_submit_failure_total",
			Help: "Number of transaction submissions that failed.",
		}),
		GetTransactionsRT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletsync_get_transactions_round_trip_seconds",
			Help:    "Time between issuing getTransactions and its matching announce.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SyncStarted, m.SyncStoppedSuccess, m.SyncStoppedError,
			m.BlockHeightUpdates, m.TxnSubmitSuccess, m.TxnSubmitFailure,
			m.GetTransactionsRT,
		)
	}

	return m
}

// nopMetrics is used internally whenever a caller constructs an engine
// without supplying metrics, so call sites never need a nil check.
func nopMetrics() *Metrics {
	return NewMetrics(nil)
}
