// Package observability exposes Prometheus metrics for the credit ledger.
// Collectors are package-level promauto vars, registered at init and served
// from the API server's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerOps counts ledger operations by kind and outcome.
// Outcomes: ok, invalid, not_found, insufficient_funds, storage_error,
// replayed, rejected, error.
var LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "webledger",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Total ledger operations by kind and outcome.",
}, []string{"op", "outcome"})

// LedgerOpDuration tracks end-to-end operation latency, including the time
// spent queued behind other operations on the same shard.
var LedgerOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "webledger",
	Subsystem: "ledger",
	Name:      "operation_seconds",
	Help:      "Ledger operation latency in seconds.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
}, []string{"op"})

// BonusCredited counts total bonus cents granted on deposits.
var BonusCredited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "webledger",
	Subsystem: "ledger",
	Name:      "bonus_credited_cents_total",
	Help:      "Total deposit bonus credited, in cents.",
})

// IdempotentReplays counts operations answered from the idempotency cache
// instead of being re-applied.
var IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "webledger",
	Subsystem: "ledger",
	Name:      "idempotent_replays_total",
	Help:      "Total operations replayed from the idempotency cache.",
})

// ─── Storage Metrics ────────────────────────────────────────────────────────

// StorageErrors counts transient persistence failures.
var StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "webledger",
	Subsystem: "storage",
	Name:      "errors_total",
	Help:      "Total transient storage failures surfaced to callers.",
})
