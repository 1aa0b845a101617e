// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

/*
Package middleware provides the chi-compatible HTTP middleware shared by the
API router.

  - RequestID: assigns each request an X-Request-ID and stores it as the
    logging correlation id, so every log line written with logging.Ctx
    carries it.
  - PrometheusMetrics: counts requests and observes their duration labelled
    by the matched chi route pattern rather than the raw path, keeping label
    cardinality bounded for routes such as /api/v1/tracks/{mmsi}.

Usage:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
