// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/tracker"
)

type recordingHandler struct {
	mu      sync.Mutex
	reports []*tracker.Report
	reason  func(r *tracker.Report) string
}

func (h *recordingHandler) OnReport(_ context.Context, r *tracker.Report) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
	if h.reason != nil {
		return h.reason(r)
	}
	return ""
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reports)
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		Mode:         "gochannel",
		Topic:        "test.reports",
		PoisonTopic:  "test.reports.poison",
		CloseTimeout: time.Second,
	}
}

func report(mmsi int64, ts time.Time) *tracker.Report {
	lat, lon := 55.5, 12.5
	return &tracker.Report{MMSI: mmsi, Timestamp: ts, Latitude: &lat, Longitude: &lon}
}

// startConsumer runs c until the test ends and waits for it to subscribe.
func startConsumer(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-c.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not start")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDecodeReport(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"full", `{"mmsi":219000001,"timestamp":"2026-03-01T12:00:00Z","lat":55.7,"lon":12.6,"sog":11.5,"ship_type":70}`, false},
		{"no position", `{"mmsi":219000001,"timestamp":"2026-03-01T12:00:00Z"}`, false},
		{"no timestamp", `{"mmsi":219000001,"lat":55.7,"lon":12.6}`, true},
		{"not json", `AIVDM,1,1,,A,15M67FC000G?ufbE`, true},
		{"wrong type", `{"mmsi":"abc","timestamp":"2026-03-01T12:00:00Z"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeReport([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("err = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeReport: %v", err)
			}
			if r.MMSI != 219000001 {
				t.Errorf("MMSI = %d", r.MMSI)
			}
		})
	}
}

func TestNewReportMessage_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := report(219000001, ts)
	msg, err := NewReportMessage(in)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Metadata.Get(metadataMMSI) != "219000001" {
		t.Errorf("mmsi metadata = %q", msg.Metadata.Get(metadataMMSI))
	}
	out, err := DecodeReport(msg.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Timestamp.Equal(ts) || *out.Latitude != *in.Latitude {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
}

func TestDedupKey(t *testing.T) {
	a, _ := NewReportMessage(report(1, time.Unix(100, 0).UTC()))
	b, _ := NewReportMessage(report(1, time.Unix(100, 0).UTC()))
	c, _ := NewReportMessage(report(1, time.Unix(101, 0).UTC()))

	ka, _ := dedupKey(a)
	kb, _ := dedupKey(b)
	kc, _ := dedupKey(c)
	if ka != kb {
		t.Errorf("same report relayed twice: %q != %q", ka, kb)
	}
	if ka == kc {
		t.Error("different timestamps should not collide")
	}

	bad := message.NewMessage("uuid-1", []byte("garbage"))
	if k, _ := dedupKey(bad); k != "uuid-1" {
		t.Errorf("malformed key = %q, want message uuid", k)
	}
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(2, time.Minute)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultDuplicate))

	if dup, _ := d.IsDuplicate(ctx, "a"); dup {
		t.Error("first sighting reported as duplicate")
	}
	if dup, _ := d.IsDuplicate(ctx, "a"); !dup {
		t.Error("second sighting not reported as duplicate")
	}
	_, _ = d.IsDuplicate(ctx, "b")
	_, _ = d.IsDuplicate(ctx, "c")
	if d.Len() != 2 {
		t.Errorf("Len = %d, want capacity 2", d.Len())
	}
	if got := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultDuplicate)) - before; got != 1 {
		t.Errorf("duplicate counter delta = %v, want 1", got)
	}
}

func TestConsumer_AppliesReports(t *testing.T) {
	ps := NewGoChannel(logging.NewWatermillAdapter())
	defer ps.Close()

	h := &recordingHandler{reason: func(r *tracker.Report) string {
		if r.MMSI == 3 {
			return tracker.DropInvalidPosition
		}
		return ""
	}}
	cfg := testIngestConfig()
	c := NewConsumer(cfg, ps.Subscriber, ps.Publisher, h)
	startConsumer(t, c)

	malformedBefore := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultMalformed))
	droppedBefore := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultDropped))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := PublishReports(ps.Publisher, cfg.Topic, report(1, ts), report(2, ts), report(1, ts), report(3, ts)); err != nil {
		t.Fatal(err)
	}
	if err := ps.Publisher.Publish(cfg.Topic, message.NewMessage("bad", []byte("{"))); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultMalformed))-malformedBefore == 1
	})
	// the relayed copy of mmsi 1 is filtered before the handler
	if got := h.count(); got != 3 {
		t.Errorf("handler saw %d reports, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultDropped)) - droppedBefore; got != 1 {
		t.Errorf("dropped delta = %v, want 1", got)
	}
}

func TestConsumer_UndeliveredGoesToPoisonQueue(t *testing.T) {
	ps := NewGoChannel(logging.NewWatermillAdapter())
	defer ps.Close()

	cfg := testIngestConfig()
	poisoned, err := ps.Subscriber.Subscribe(context.Background(), cfg.PoisonTopic)
	if err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{reason: func(*tracker.Report) string { return tracker.DropPublishFailed }}
	c := NewConsumer(cfg, ps.Subscriber, ps.Publisher, h)
	startConsumer(t, c)

	if err := PublishReports(ps.Publisher, cfg.Topic, report(7, time.Unix(1000, 0).UTC())); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
		r, err := DecodeReport(msg.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if r.MMSI != 7 {
			t.Errorf("poisoned mmsi = %d, want 7", r.MMSI)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message was not routed to the poison queue")
	}
}

func TestDeduplicator_ReleaseOnError(t *testing.T) {
	d := NewDeduplicator(10, time.Minute)
	msg, err := NewReportMessage(report(5, time.Unix(500, 0).UTC()))
	if err != nil {
		t.Fatal(err)
	}
	key, _ := dedupKey(msg)

	fail := d.ReleaseOnError(func(m *message.Message) ([]*message.Message, error) {
		_, _ = d.IsDuplicate(m.Context(), key)
		return nil, ErrNotDelivered
	})
	if _, err := fail(msg); !errors.Is(err, ErrNotDelivered) {
		t.Fatalf("err = %v", err)
	}
	if dup, _ := d.IsDuplicate(context.Background(), key); dup {
		t.Error("failed report should be forgotten")
	}

	ok := d.ReleaseOnError(func(*message.Message) ([]*message.Message, error) { return nil, nil })
	if _, err := ok(msg); err != nil {
		t.Fatal(err)
	}
	if dup, _ := d.IsDuplicate(context.Background(), key); !dup {
		t.Error("successful report must stay remembered")
	}
}

func TestConsumer_RetryReachesRegistry(t *testing.T) {
	ps := NewGoChannel(logging.NewWatermillAdapter())
	defer ps.Close()

	var mu sync.Mutex
	attempts := 0
	h := &recordingHandler{reason: func(*tracker.Report) string {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return tracker.DropPublishFailed
		}
		return ""
	}}
	cfg := testIngestConfig()
	cfg.RetryMax = 2
	cfg.RetryInitialInterval = time.Millisecond
	c := NewConsumer(cfg, ps.Subscriber, ps.Publisher, h)
	startConsumer(t, c)

	processedBefore := testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultProcessed))
	if err := PublishReports(ps.Publisher, cfg.Topic, report(9, time.Unix(900, 0).UTC())); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return testutil.ToFloat64(metrics.IngestMessages.WithLabelValues(resultProcessed))-processedBefore == 1
	})
	if got := h.count(); got != 2 {
		t.Errorf("handler saw %d attempts, want 2", got)
	}
}
