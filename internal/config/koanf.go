// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"seawatch.yaml",
	"seawatch.yml",
	"/etc/seawatch/config.yaml",
	"/etc/seawatch/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads configuration with precedence env > file > defaults and
// validates the result.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file
// layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings lists every environment variable that is honored. Anything not
// listed is ignored so unrelated variables cannot leak into the config.
var envMappings = map[string]string{
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
	"log_debug_sample_every": "logging.debug_sample_every",

	"tracker_sweep_interval":   "tracker.sweep_interval",
	"tracker_stale_timeout":    "tracker.stale_timeout",
	"tracker_grid_resolution":  "tracker.grid_resolution",
	"tracker_drop_log_per_sec": "tracker.drop_log_per_second",

	"dispatch_workers":    "dispatch.workers",
	"dispatch_queue_size": "dispatch.queue_size",

	"featurestore_path":        "featurestore.path",
	"featurestore_in_memory":   "featurestore.in_memory",
	"featurestore_sync_writes": "featurestore.sync_writes",

	"events_path":                 "events.path",
	"duckdb_path":                 "events.path",
	"events_breaker_enabled":      "events.breaker_enabled",
	"events_breaker_max_failures": "events.breaker_max_failures",
	"events_breaker_timeout":      "events.breaker_timeout",
	"events_recent_limit_max":     "events.recent_limit_max",

	"ingest_mode":          "ingest.mode",
	"ingest_topic":         "ingest.topic",
	"nats_url":             "ingest.nats_url",
	"nats_embedded":        "ingest.embedded_server",
	"nats_store_dir":       "ingest.store_dir",
	"nats_durable_name":    "ingest.durable_name",
	"nats_queue_group":     "ingest.queue_group",
	"nats_subscribers":     "ingest.subscribers_count",
	"ingest_retry_max":     "ingest.retry_max",
	"ingest_throttle":      "ingest.throttle_per_second",
	"ingest_poison_topic":  "ingest.poison_topic",
	"ingest_close_timeout": "ingest.close_timeout",

	"http_enabled":           "server.enabled",
	"http_host":              "server.host",
	"http_port":              "server.port",
	"http_read_timeout":      "server.read_timeout",
	"http_write_timeout":     "server.write_timeout",
	"http_shutdown_timeout":  "server.shutdown_timeout",
	"http_cors_origins":      "server.cors_origins",
	"http_report_rate_limit": "server.report_rate_limit",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// analysisEnvKeys maps a per-analysis suffix to its koanf field.
var analysisEnvKeys = map[string]string{
	"enabled":              "enabled",
	"ship_count_min":       "ship_count_min",
	"pd":                   "pd",
	"ship_length_min":      "ship_length_min",
	"use_aggregated_stats": "use_aggregated_stats",
	"prediction_time_max":  "prediction_time_max",
}

// envTransformFunc maps an environment variable name to a koanf path, or ""
// to skip it.
//
//   - HTTP_PORT -> server.port
//   - ANALYSIS_SOG_PD -> analysis.sog.pd
//   - ANALYSIS_TYPE_SIZE_ENABLED -> analysis.type_size.enabled
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	if rest, ok := strings.CutPrefix(key, "analysis_"); ok {
		for _, name := range []string{"cog", "sog", "type_size"} {
			suffix, ok := strings.CutPrefix(rest, name+"_")
			if !ok {
				continue
			}
			if field, ok := analysisEnvKeys[suffix]; ok {
				return "analysis." + name + "." + field
			}
		}
	}
	return ""
}
