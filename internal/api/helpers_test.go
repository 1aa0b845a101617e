// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/tracker"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type fakeTracks struct {
	byMMSI map[int64]tracker.Track
}

func newFakeTracks(tracks ...tracker.Track) *fakeTracks {
	f := &fakeTracks{byMMSI: make(map[int64]tracker.Track)}
	for _, t := range tracks {
		f.byMMSI[t.MMSI] = t
	}
	return f
}

func (f *fakeTracks) Get(mmsi int64) (tracker.Track, bool) {
	t, ok := f.byMMSI[mmsi]
	return t, ok
}

func (f *fakeTracks) Snapshot() []tracker.Track {
	out := make([]tracker.Track, 0, len(f.byMMSI))
	for _, t := range f.byMMSI {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

func (f *fakeTracks) Len() int { return len(f.byMMSI) }

type fakeRepo struct {
	mu        sync.Mutex
	events    []events.AbnormalEvent
	err       error
	lastLimit int
	lastFrom  time.Time
	lastTo    time.Time
}

func (f *fakeRepo) Save(context.Context, *events.AbnormalEvent) error { return f.err }

func (f *fakeRepo) FindOngoingEvent(context.Context, int64, events.Kind) (*events.AbnormalEvent, error) {
	return nil, f.err
}

func (f *fakeRepo) GetEvent(_ context.Context, id uuid.UUID) (*events.AbnormalEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.events {
		if f.events[i].ID == id {
			e := f.events[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) RecentEvents(_ context.Context, limit int) ([]events.AbnormalEvent, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.events) {
		limit = len(f.events)
	}
	return f.events[:limit], nil
}

func (f *fakeRepo) EventsBetween(_ context.Context, from, to time.Time) ([]events.AbnormalEvent, error) {
	f.mu.Lock()
	f.lastFrom, f.lastTo = from, to
	f.mu.Unlock()
	return f.events, f.err
}

func (f *fakeRepo) EventKinds(context.Context) ([]events.KindCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	counts := map[events.Kind]*events.KindCount{}
	for _, e := range f.events {
		c, ok := counts[e.Kind]
		if !ok {
			c = &events.KindCount{Kind: e.Kind}
			counts[e.Kind] = c
		}
		c.Total++
		if e.State == events.StateOngoing {
			c.Ongoing++
		}
	}
	var out []events.KindCount
	for _, k := range events.Kinds {
		if c, ok := counts[k]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topic  string
	msgs   []*message.Message
	failed bool
}

func (p *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.failed {
		return errors.New("broker unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func testEvent(kind events.Kind, mmsi int64, state events.State) events.AbnormalEvent {
	return events.AbnormalEvent{
		ID:     uuid.New(),
		Kind:   kind,
		Vessel: events.Vessel{MMSI: mmsi},
		Start:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		State:  state,
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Events.RecentLimitMax = 100
	return cfg
}

type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, env
}
