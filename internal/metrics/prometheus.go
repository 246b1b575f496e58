package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Prometheus metrics for the pick pipeline

var (
	// Upstream metrics
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_upstream_calls_total",
			Help: "Total number of upstream data fetches",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_upstream_call_duration_seconds",
			Help:    "Duration of upstream fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_db_queries_total",
			Help: "Total number of archive database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_db_query_duration_seconds",
			Help:    "Duration of archive database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picks_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Surface and store metrics
	SurfaceWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_surface_rows_written_total",
			Help: "Rows written to the working surface",
		},
		[]string{"kind"},
	)

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_store_operations_total",
			Help: "Document store operations",
		},
		[]string{"operation", "collection", "status"},
	)

	// Pipeline metrics
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_passes_total",
			Help: "Total number of pipeline passes",
		},
		[]string{"status"},
	)

	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "picks_pass_duration_seconds",
			Help:    "Duration of pipeline passes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	GamesIngested = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picks_games_ingested",
			Help: "Games loaded in the latest pass",
		},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_predictions_total",
			Help: "Predictions by outcome (emitted, reused, skipped)",
		},
		[]string{"outcome"},
	)

	RowsGradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_rows_graded_total",
			Help: "Surface rows graded",
		},
	)

	PicksPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_published_total",
			Help: "Picks written to the document store",
		},
		[]string{"collection"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picks_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Worker metrics
	WorkerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picks_worker_runs_total",
			Help: "Total number of scheduled worker runs",
		},
	)

	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picks_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulPass = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picks_last_successful_pass_timestamp",
			Help: "Timestamp of last successful pass",
		},
	)

	// Season record metrics
	SeasonPicks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "picks_season_graded",
			Help: "Graded picks of the current season by market and result",
		},
		[]string{"market", "result"},
	)

	SeasonWinRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "picks_season_win_rate",
			Help: "Winner win rate over decided picks of the current season",
		},
	)
)

// RecordUpstreamCall records an upstream fetch
func RecordUpstreamCall(endpoint, status string, duration float64) {
	UpstreamCallsTotal.WithLabelValues(endpoint, status).Inc()
	UpstreamCallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordSurfaceWrites records appended and updated surface rows
func RecordSurfaceWrites(appended, updated int) {
	SurfaceWritesTotal.WithLabelValues("append").Add(float64(appended))
	SurfaceWritesTotal.WithLabelValues("update").Add(float64(updated))
}

// RecordStoreOperation records a document store call
func RecordStoreOperation(operation, collection, status string) {
	StoreOperationsTotal.WithLabelValues(operation, collection, status).Inc()
}

// RecordPrediction records a prediction outcome
func RecordPrediction(outcome string) {
	PredictionsTotal.WithLabelValues(outcome).Inc()
}

// RecordGraded records graded rows
func RecordGraded(n int) {
	RowsGradedTotal.Add(float64(n))
}

// RecordPublished records a document written to a collection
func RecordPublished(collection string) {
	PicksPublishedTotal.WithLabelValues(collection).Inc()
}

// RecordPass records a pipeline pass
func RecordPass(status string, duration float64) {
	PassesTotal.WithLabelValues(status).Inc()
	PassDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulPass.SetToCurrentTime()
	}
}

// RecordSeasonRecord publishes one market's graded counts by result
func RecordSeasonRecord(market string, results map[string]int) {
	for result, n := range results {
		SeasonPicks.WithLabelValues(market, result).Set(float64(n))
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordWorkerRun records a scheduled worker run
func RecordWorkerRun() {
	WorkerRunsTotal.Inc()
}

// Push sends the default registry to a Pushgateway under job.
// One-shot passes exit before they could be scraped.
func Push(url, job string) error {
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
