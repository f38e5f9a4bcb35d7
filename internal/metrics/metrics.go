// Package metrics provides Prometheus metrics for the catalog sync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks finished sync runs by type and status
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by type and status",
		},
		[]string{"sync_type", "status"},
	)

	// SyncRunsSkipped tracks runs rejected because the tenant already had one in flight
	SyncRunsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "sync",
			Name:      "runs_skipped_total",
			Help:      "Total number of sync runs skipped by the tenant guard",
		},
		[]string{"sync_type"},
	)

	// SyncRunDuration tracks sync run duration in seconds
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog_sync",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"sync_type"},
	)

	// SyncItemsTotal tracks reconciled products by result
	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Total number of products reconciled by result",
		},
		[]string{"result"},
	)

	// SyncRunsInFlight tracks runs currently executing
	SyncRunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "catalog_sync",
			Subsystem: "sync",
			Name:      "runs_in_flight",
			Help:      "Number of sync runs currently executing",
		},
	)

	// SourceFetchAttempts tracks source fetch attempts by outcome kind
	SourceFetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "source",
			Name:      "fetch_attempts_total",
			Help:      "Total number of product source fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SchedulerTicks tracks scheduler ticks
	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks",
		},
	)

	// SchedulerDispatched tracks runs started by the scheduler
	SchedulerDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "scheduler",
			Name:      "dispatched_total",
			Help:      "Total number of scheduled runs dispatched",
		},
	)

	// SchedulerDeferred tracks due schedules left for the next tick
	SchedulerDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "scheduler",
			Name:      "deferred_total",
			Help:      "Total number of due schedules deferred because no slot was free",
		},
	)

	// WebhookDeliveries tracks completed webhook deliveries by type and status
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries by type and status",
		},
		[]string{"type", "status"},
	)

	// WebhookAttempts tracks individual webhook HTTP attempts
	WebhookAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "webhook",
			Name:      "attempts_total",
			Help:      "Total number of webhook HTTP attempts by status",
		},
		[]string{"status"},
	)

	// WebhookAttemptDuration tracks webhook request latency
	WebhookAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "catalog_sync",
			Subsystem: "webhook",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of webhook HTTP attempts in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// NotificationsSent tracks outcome emails by result
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Subsystem: "notification",
			Name:      "emails_total",
			Help:      "Total number of outcome emails by result",
		},
		[]string{"result"},
	)
)
