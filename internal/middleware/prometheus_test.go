// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/seawatch/internal/metrics"
)

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/tracks/{mmsi}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := metrics.APIRequests.WithLabelValues(http.MethodGet, "/tracks/{mmsi}", "404")
	before := testutil.ToFloat64(c)

	for _, path := range []string{"/tracks/1", "/tracks/2", "/tracks/3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}

	if got := testutil.ToFloat64(c) - before; got != 3 {
		t.Errorf("requests for pattern = %v, want 3", got)
	}
}

func TestPrometheusMetrics_ImplicitOK(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	c := metrics.APIRequests.WithLabelValues(http.MethodGet, "/ok", "200")
	before := testutil.ToFloat64(c)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
		t.Errorf("active requests = %v after completion, want 0", got)
	}
}

func TestRoutePattern_NoRouteContext(t *testing.T) {
	if got := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != unmatchedRoute {
		t.Errorf("routePattern = %q, want %q", got, unmatchedRoute)
	}
}
