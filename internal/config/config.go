// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package config loads Seawatch configuration from defaults, an optional YAML
// file and environment variables (in increasing priority) using koanf.
package config

import (
	"time"
)

// Config is the root configuration. It is read once at startup and never
// mutated afterwards.
type Config struct {
	Logging      LoggingConfig      `koanf:"logging"`
	Tracker      TrackerConfig      `koanf:"tracker"`
	Dispatch     DispatchConfig     `koanf:"dispatch"`
	Analysis     AnalysisConfig     `koanf:"analysis"`
	FeatureStore FeatureStoreConfig `koanf:"featurestore"`
	Events       EventsConfig       `koanf:"events"`
	Ingest       IngestConfig       `koanf:"ingest"`
	Server       ServerConfig       `koanf:"server"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"required"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
	// DebugSampleEvery > 1 keeps one debug entry in N.
	DebugSampleEvery uint32 `koanf:"debug_sample_every"`
}

// TrackerConfig configures the track registry and its staleness sweeper.
type TrackerConfig struct {
	// SweepInterval is how often the registry is scanned for stale tracks.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`

	// StaleTimeout is the inactivity after which a track is ended.
	StaleTimeout time.Duration `koanf:"stale_timeout" validate:"gt=0"`

	// GridResolution is the cell edge length in degrees.
	GridResolution float64 `koanf:"grid_resolution" validate:"gt=0,lte=10"`

	// DropLogPerSecond limits warnings about rejected reports.
	DropLogPerSecond float64 `koanf:"drop_log_per_second" validate:"gte=0"`
}

// DispatchConfig configures notification delivery to the analyses.
type DispatchConfig struct {
	// Workers is the number of delivery goroutines. 0 delivers synchronously
	// on the publishing goroutine.
	Workers int `koanf:"workers" validate:"gte=0,lte=256"`

	// QueueSize is the buffered capacity shared by all workers.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

// AnalysisParams configures one statistical analysis.
type AnalysisParams struct {
	Enabled bool `koanf:"enabled"`

	// ShipCountMin is the number of ships a cell must have seen before any
	// judgment other than normal is possible.
	ShipCountMin int `koanf:"ship_count_min" validate:"gte=0"`

	// PD is the probability threshold below which a track is abnormal.
	PD float64 `koanf:"pd" validate:"gt=0,lt=1"`

	// ShipLengthMin skips vessels shorter than this many meters.
	ShipLengthMin int `koanf:"ship_length_min" validate:"gte=0"`

	// UseAggregatedStats marginalizes over ship type instead of a point lookup.
	UseAggregatedStats bool `koanf:"use_aggregated_stats"`

	// PredictionTimeMax skips tracks whose last real report is older than
	// this many seconds relative to the last update. -1 disables the check.
	PredictionTimeMax int `koanf:"prediction_time_max" validate:"gte=-1"`
}

// AnalysisConfig holds the per-attribute analyses.
type AnalysisConfig struct {
	CourseOverGround AnalysisParams `koanf:"cog"`
	SpeedOverGround  AnalysisParams `koanf:"sog"`
	ShipTypeAndSize  AnalysisParams `koanf:"type_size"`
}

// FeatureStoreConfig configures the BadgerDB backed feature store.
type FeatureStoreConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// EventsConfig configures the DuckDB event archive.
type EventsConfig struct {
	Path string `koanf:"path" validate:"required"`

	BreakerEnabled     bool          `koanf:"breaker_enabled"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	// RecentLimitMax caps the limit accepted by the recent events endpoint.
	RecentLimitMax int `koanf:"recent_limit_max" validate:"gte=1"`
}

// IngestConfig configures how position reports enter the process.
type IngestConfig struct {
	// Mode is nats for JetStream, or gochannel for in-process delivery.
	Mode  string `koanf:"mode" validate:"oneof=nats gochannel"`
	Topic string `koanf:"topic" validate:"required"`

	NATSURL          string `koanf:"nats_url"`
	EmbeddedServer   bool   `koanf:"embedded_server"`
	StoreDir         string `koanf:"store_dir"`
	DurableName      string `koanf:"durable_name"`
	QueueGroup       string `koanf:"queue_group"`
	SubscribersCount int    `koanf:"subscribers_count" validate:"gte=1"`

	RetryMax             int           `koanf:"retry_max" validate:"gte=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	ThrottlePerSecond    int64         `koanf:"throttle_per_second" validate:"gte=0"`
	PoisonTopic          string        `koanf:"poison_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins is a comma separated allow list for browser clients and
	// websocket upgrades. Empty allows same-origin only.
	CORSOrigins string `koanf:"cors_origins"`

	// ReportRateLimit caps report submissions per client IP per minute.
	// 0 disables the limit.
	ReportRateLimit int `koanf:"report_rate_limit" validate:"gte=0"`
}

// SupervisorConfig configures the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// defaultAnalysisParams mirrors the thresholds the historical statistics
// were calibrated against.
func defaultAnalysisParams() AnalysisParams {
	return AnalysisParams{
		Enabled:            true,
		ShipCountMin:       1000,
		PD:                 0.001,
		ShipLengthMin:      50,
		UseAggregatedStats: false,
		PredictionTimeMax:  -1,
	}
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracker: TrackerConfig{
			SweepInterval:    time.Minute,
			StaleTimeout:     30 * time.Minute,
			GridResolution:   0.05,
			DropLogPerSecond: 1,
		},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 1024,
		},
		Analysis: AnalysisConfig{
			CourseOverGround: defaultAnalysisParams(),
			SpeedOverGround:  defaultAnalysisParams(),
			ShipTypeAndSize:  defaultAnalysisParams(),
		},
		FeatureStore: FeatureStoreConfig{
			Path:       "/data/features",
			SyncWrites: true,
		},
		Events: EventsConfig{
			Path:               "/data/events.duckdb",
			BreakerEnabled:     true,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			RecentLimitMax:     500,
		},
		Ingest: IngestConfig{
			Mode:                 "gochannel",
			Topic:                "ais.reports",
			NATSURL:              "nats://127.0.0.1:4222",
			StoreDir:             "/data/nats",
			DurableName:          "seawatch",
			QueueGroup:           "seawatch",
			SubscribersCount:     2,
			RetryMax:             3,
			RetryInitialInterval: 100 * time.Millisecond,
			PoisonTopic:          "ais.reports.poison",
			CloseTimeout:         10 * time.Second,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ReportRateLimit: 600,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in configuration without consulting any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}
