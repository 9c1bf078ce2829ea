package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Save pipeline metrics
	SaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_save_total",
			Help: "Total number of save operations",
		},
		[]string{"status"},
	)

	SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "savekit_save_duration_seconds",
			Help:    "Save latencies in seconds, from serialize to durable write",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	PayloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "savekit_payload_bytes",
			Help:    "Size of framed payloads written and read",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"direction"},
	)

	LoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_load_total",
			Help: "Total number of load operations by payload source",
		},
		[]string{"source", "status"},
	)

	// Backup metrics
	BackupsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savekit_backups_created_total",
			Help: "Total number of backup copies created",
		},
	)

	BackupsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savekit_backups_pruned_total",
			Help: "Total number of backups deleted by rotation",
		},
	)

	BackupRestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_backup_restores_total",
			Help: "Total number of backup restores",
		},
		[]string{"status"},
	)

	// Schema metrics
	ValidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_validation_total",
			Help: "Total number of document validations by outcome",
		},
		[]string{"result"},
	)

	ValidationRuleFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_validation_rule_failures_total",
			Help: "Total number of failed validation rules by severity",
		},
		[]string{"rule", "severity"},
	)

	MigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_migrations_total",
			Help: "Total number of migration runs",
		},
		[]string{"status"},
	)

	MigrationStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_migration_steps_total",
			Help: "Total number of migration steps by outcome",
		},
		[]string{"status"},
	)

	// Cloud mirror metrics
	CloudOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_cloud_operations_total",
			Help: "Total number of remote slot operations",
		},
		[]string{"operation", "status"},
	)

	CloudSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_cloud_sync_total",
			Help: "Total number of reconciliations by direction taken",
		},
		[]string{"direction", "status"},
	)

	// Watch metrics
	WatchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "savekit_watchers_active",
			Help: "Number of registered lifecycle watchers",
		},
	)

	WatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_watch_events_total",
			Help: "Total number of lifecycle events delivered",
		},
		[]string{"event_type"},
	)

	WatchEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_watch_events_dropped_total",
			Help: "Total number of lifecycle events dropped",
		},
		[]string{"reason"},
	)

	// Admin HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "savekit_http_request_duration_seconds",
			Help:    "Admin HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "savekit_http_requests_in_flight",
			Help: "Number of admin HTTP requests being served",
		},
	)

	AutosaveFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savekit_autosave_flushes_total",
			Help: "Total number of background flush attempts",
		},
		[]string{"status"},
	)

	// System metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "savekit_build_info",
			Help: "Build information about savekit",
		},
		[]string{"version", "go_version"},
	)
)
