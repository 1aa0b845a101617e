// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusSink_Increment(t *testing.T) {
	var sink Sink = PrometheusSink{}
	c := AnalysisStatistics.WithLabelValues("TestAnalysis", "Events received")
	before := testutil.ToFloat64(c)

	sink.Increment("TestAnalysis", "Events received")
	sink.Increment("TestAnalysis", "Events received")

	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("delta = %v, want 2", got)
	}
}

func TestPrometheusSink_Concurrent(t *testing.T) {
	sink := PrometheusSink{}
	c := AnalysisStatistics.WithLabelValues("ConcurrentAnalysis", "Analyses performed")
	before := testutil.ToFloat64(c)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Increment("ConcurrentAnalysis", "Analyses performed")
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(c) - before; got != 50 {
		t.Errorf("delta = %v, want 50", got)
	}
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	sink.Increment("x", "y")
}

func TestRecordEventSink(t *testing.T) {
	errs := EventSinkErrors.WithLabelValues("save")
	before := testutil.ToFloat64(errs)

	RecordEventSink("save", 5*time.Millisecond, nil)
	RecordEventSink("save", 5*time.Millisecond, errors.New("disk full"))

	if got := testutil.ToFloat64(errs) - before; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}

	m := &dto.Metric{}
	obs, ok := EventSinkDuration.WithLabelValues("save").(prometheus.Metric)
	if !ok {
		t.Fatal("histogram does not implement prometheus.Metric")
	}
	if err := obs.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("sample count = %d, want >= 2", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequests.WithLabelValues("GET", "/health", "200")
	before := testutil.ToFloat64(c)

	RecordAPIRequest("GET", "/health", "200", time.Millisecond)

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}

func TestMetricsLint(t *testing.T) {
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint %s: %s", p.Metric, p.Text)
	}
}
