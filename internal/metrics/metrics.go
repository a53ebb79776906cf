// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the oracle:
// - log subscription health and notification flow
// - per-transaction fulfillment outcomes
// - transaction submission retry behavior
// - backfill scan progress

var (
	// Ingestion metrics
	NotificationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_notifications_received_total",
			Help: "Total log notifications received from the subscription",
		},
		[]string{"program"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_notifications_skipped_total",
			Help: "Total notifications skipped before processing",
		},
		[]string{"program", "reason"}, // "tx_failed", "duplicate"
	)

	WatcherRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_watcher_restarts_total",
			Help: "Total times a program watcher lost its subscription and restarted",
		},
		[]string{"program"},
	)

	// Fulfillment metrics
	Fulfillments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_fulfillments_total",
			Help: "Total processed randomness requests by terminal status",
		},
		[]string{"status", "source"}, // status: "fulfilled", "failed", "skipped"
	)

	FulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_fulfillment_duration_seconds",
			Help:    "Wall time from notification to confirmed callback",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_log_parse_errors_total",
			Help: "Total per-line log parse diagnostics by kind",
		},
		[]string{"kind"},
	)

	// Submission metrics
	SubmissionAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_submission_attempts_total",
			Help: "Total callback transaction send attempts, including retries",
		},
	)

	SubmissionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_submission_retries_total",
			Help: "Total callback transaction resends after a retryable failure",
		},
	)

	// Backfill metrics
	BackfillSignaturesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_backfill_signatures_scanned_total",
			Help: "Total historical signatures examined by the backfill scan",
		},
	)

	BackfillTransactionsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_backfill_transactions_processed_total",
			Help: "Total historical transactions run through the fulfillment pipeline",
		},
	)

	BackfillBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_backfill_breaker_state",
			Help: "Circuit breaker state of backfill transaction fetches (0=closed, 1=half-open, 2=open)",
		},
	)

	// Journal metrics
	JournalWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_journal_writes_total",
			Help: "Total fulfillment records written to the journal",
		},
		[]string{"status"},
	)
)

// ObserveFulfillment records one terminal pipeline outcome and its duration.
func ObserveFulfillment(status, source string, start time.Time) {
	Fulfillments.WithLabelValues(status, source).Inc()
	FulfillmentDuration.Observe(time.Since(start).Seconds())
}
