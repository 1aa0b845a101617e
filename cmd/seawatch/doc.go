// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Command seawatch runs the abnormal vessel behaviour detector.
//
// # Startup
//
// Components are built in this order:
//
//  1. Configuration: defaults, optional YAML file (CONFIG_PATH), environment (koanf v2)
//  2. Feature store: BadgerDB holding the per-cell historical statistics
//  3. Event store: DuckDB archive of abnormal events, behind a circuit breaker
//  4. Pipeline: grid, notification dispatcher, track registry, analyses and
//     the behaviour manager
//  5. Ingest: watermill router reading reports from NATS JetStream (external
//     or embedded) or an in-process channel
//  6. HTTP server: REST API, Prometheus metrics and the websocket event feed
//
// Every long-running component runs under a suture supervisor tree and is
// restarted independently when it fails.
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the tree. The ingest router stops taking reports,
// the dispatcher drains queued notifications into the analyses, and the
// stores are closed afterwards.
//
// # Example Usage
//
// In-process ingest, reports posted over HTTP:
//
//	export FEATURESTORE_PATH=/data/features
//	export DUCKDB_PATH=/data/events.duckdb
//	./seawatch
//	curl -XPOST localhost:8080/api/v1/reports \
//	  -d '{"mmsi":219000001,"timestamp":"2026-05-01T12:00:00Z","lat":55.6,"lon":12.6,"sog":12.3,"cog":45}'
//
// JetStream ingest:
//
//	export INGEST_MODE=nats
//	export NATS_URL=nats://nats:4222
//	./seawatch
package main
