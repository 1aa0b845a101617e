// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package metrics holds the Prometheus collectors for Seawatch and the
// Sink used by analyses to count named operational statistics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysisStatistics counts named events per component, e.g.
	// {component="SpeedOverGroundAnalysis", label="Events received"}.
	AnalysisStatistics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_analysis_statistics_total",
			Help: "Named operational statistics per analysis component",
		},
		[]string{"component", "label"},
	)

	// Tracker
	TrackerReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_tracker_reports_total",
			Help: "Position reports seen by the track registry by result",
		},
		[]string{"result"}, // "accepted", "no_position", "invalid_position", "invalid_mmsi"
	)

	TracksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seawatch_tracks_active",
			Help: "Number of tracks currently held by the registry",
		},
	)

	TracksStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seawatch_tracks_stale_total",
			Help: "Tracks ended by the staleness sweeper",
		},
	)

	CellChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seawatch_tracker_cell_changes_total",
			Help: "Cell changes published by the track registry",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seawatch_tracker_sweep_duration_seconds",
			Help:    "Duration of a staleness sweep",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// Feature store
	FeatureStoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_featurestore_reads_total",
			Help: "Feature store lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	FeatureStoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_featurestore_writes_total",
			Help: "Feature store writes by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Behaviour
	BehaviorTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_behavior_transitions_total",
			Help: "Abnormal event lifecycle transitions",
		},
		[]string{"kind", "transition"}, // transition: "raise", "maintain", "lower"
	)

	EventSinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_event_sink_errors_total",
			Help: "Failed event sink operations",
		},
		[]string{"operation"}, // "save", "find_ongoing"
	)

	EventSinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seawatch_event_sink_duration_seconds",
			Help:    "Duration of event sink operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seawatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Dispatch
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seawatch_dispatch_queue_depth",
			Help: "Notifications waiting for delivery",
		},
	)

	DispatchHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_dispatch_handler_errors_total",
			Help: "Errors returned by notification handlers",
		},
		[]string{"topic", "handler"},
	)

	// Ingest
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_ingest_messages_total",
			Help: "Report messages consumed by result",
		},
		[]string{"result"}, // "processed", "dropped", "malformed", "duplicate", "failed"
	)

	// HTTP / websocket
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seawatch_api_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seawatch_api_active_requests",
			Help: "HTTP API requests in flight",
		},
	)

	APIReportsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seawatch_api_reports_submitted_total",
			Help: "Reports accepted by the submission endpoint",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seawatch_websocket_connections",
			Help: "Connected websocket clients",
		},
	)

	SupervisorServiceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seawatch_supervisor_service_failures_total",
			Help: "Supervised service terminations and panics by layer",
		},
		[]string{"layer", "service", "cause"},
	)
)

// Sink receives named counter increments. Analyses and the behaviour
// manager depend on this instead of Prometheus directly.
type Sink interface {
	Increment(component, label string)
}

// PrometheusSink writes increments to AnalysisStatistics.
type PrometheusSink struct{}

// Increment implements Sink.
func (PrometheusSink) Increment(component, label string) {
	AnalysisStatistics.WithLabelValues(component, label).Inc()
}

// NopSink discards increments.
type NopSink struct{}

// Increment implements Sink.
func (NopSink) Increment(string, string) {}

// RecordEventSink records the duration and outcome of an event sink call.
func RecordEventSink(operation string, duration time.Duration, err error) {
	EventSinkDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		EventSinkErrors.WithLabelValues(operation).Inc()
	}
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
