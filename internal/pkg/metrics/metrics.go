// Package metrics holds the Prometheus collectors for the ingestion and
// reconciliation pipeline. Collectors are registered on the default registry
// and exposed via promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksReceived counts inbound webhook deliveries by provider and
	// outcome (accepted, duplicate, rejected).
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerlink_webhooks_received_total",
		Help: "Inbound webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})

	// JobsProcessed counts finished job attempts by type and outcome
	// (completed, retried, dead).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerlink_jobs_processed_total",
		Help: "Finished job attempts by job type and outcome.",
	}, []string{"type", "outcome"})

	// MatchesCreated counts reconciliation matches by match reason.
	MatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerlink_matches_created_total",
		Help: "Reconciliation matches created, labeled by match reason.",
	}, []string{"reason"})

	// AnomaliesOpen tracks currently open anomalies by type.
	AnomaliesOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledgerlink_anomalies_open",
		Help: "Currently open anomalies by anomaly type.",
	}, []string{"type"})

	// StatementLinesImported counts imported bank statement lines by account
	// and outcome (inserted, duplicate, invalid).
	StatementLinesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgerlink_statement_lines_imported_total",
		Help: "Bank statement lines processed during import by outcome.",
	}, []string{"account", "outcome"})

	// ReconcileRunDuration observes full reconciliation sweep durations.
	ReconcileRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerlink_reconcile_run_duration_seconds",
		Help:    "Duration of full reconciliation sweeps.",
		Buckets: prometheus.DefBuckets,
	})
)
