// Package observability holds the Prometheus metrics for stonekeeper.
// Metrics are registered via promauto at package load and exposed on
// /metrics when enabled in the config.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Store Metrics ──────────────────────────────────────────────────────────

// SnapshotsAccepted counts change-feed snapshots merged into local state.
var SnapshotsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "snapshots_accepted_total",
	Help:      "Total change-feed snapshots accepted and merged.",
})

// SnapshotsRejected counts snapshots dropped by an acceptance filter.
var SnapshotsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "snapshots_rejected_total",
	Help:      "Total change-feed snapshots rejected, by filter.",
}, []string{"reason"})

// MutationsRejected counts mutations attempted outside the Live state.
var MutationsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "mutations_rejected_total",
	Help:      "Total mutations rejected because the session was not live.",
})

// WritesCoalesced counts mutations absorbed into an already-pending write.
var WritesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "writes_coalesced_total",
	Help:      "Total mutations that restarted the debounce window instead of scheduling a new write.",
})

// PersistTotal counts persistence attempts by outcome.
var PersistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "persist_total",
	Help:      "Total document writes by outcome.",
}, []string{"outcome"})

// PersistDuration tracks wall time of document writes.
var PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "persist_duration_seconds",
	Help:      "Wall time of document writes.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// StoreErrors counts transitions into the terminal Error state.
var StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "store",
	Name:      "errors_total",
	Help:      "Total sessions that entered the terminal error state.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// MutationsTotal counts ledger mutations by kind and outcome.
var MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Total ledger mutations by kind and outcome.",
}, []string{"kind", "outcome"})

// StonesMoved tracks absolute stone amounts moved per mutation kind.
var StonesMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stonekeeper",
	Subsystem: "ledger",
	Name:      "stones_moved_total",
	Help:      "Total absolute stone amounts moved, by mutation kind.",
}, []string{"kind"})

// ─── Feed Metrics ───────────────────────────────────────────────────────────

// FeedClients tracks currently connected change-feed websocket clients.
var FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "stonekeeper",
	Subsystem: "feed",
	Name:      "clients",
	Help:      "Currently connected change-feed clients.",
})

// LiveLedgerClients tracks currently connected SSE ledger-feed clients.
var LiveLedgerClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "stonekeeper",
	Subsystem: "feed",
	Name:      "ledger_sse_clients",
	Help:      "Currently connected live ledger SSE clients.",
})
