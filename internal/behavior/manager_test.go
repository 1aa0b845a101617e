// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package behavior

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/tracker"
)

// memorySink is an in-memory events.Sink that counts writes.
type memorySink struct {
	mu       sync.Mutex
	events   map[uuid.UUID]*events.AbnormalEvent
	saves    int
	finds    int
	saveErr  error
	findErr  error
	findWait time.Duration
}

func newMemorySink() *memorySink {
	return &memorySink{events: make(map[uuid.UUID]*events.AbnormalEvent)}
}

func (s *memorySink) Save(_ context.Context, e *events.AbnormalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *memorySink) FindOngoingEvent(_ context.Context, mmsi int64, kind events.Kind) (*events.AbnormalEvent, error) {
	if s.findWait > 0 {
		time.Sleep(s.findWait)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, e := range s.events {
		if e.Vessel.MMSI == mmsi && e.Kind == kind && e.State == events.StateOngoing {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (s *memorySink) ongoing(mmsi int64, kind events.Kind) []*events.AbnormalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*events.AbnormalEvent
	for _, e := range s.events {
		if e.Vessel.MMSI == mmsi && e.Kind == kind && e.State == events.StateOngoing {
			out = append(out, e)
		}
	}
	return out
}

func (s *memorySink) get(id uuid.UUID) *events.AbnormalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

// recordingBroadcaster captures broadcast message types.
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) BroadcastJSON(messageType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
}

var t0 = time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)

func speed(v float64) *float64 { return &v }
func cat(v int) *int           { return &v }

func judgment(mmsi int64, v Verdict, at time.Time) Judgment {
	return Judgment{
		Kind:    events.KindSpeedOverGround,
		Verdict: v,
		Track: tracker.Track{
			MMSI:            mmsi,
			Latitude:        57.7,
			Longitude:       11.9,
			CellID:          42,
			SpeedOverGround: speed(35),
			LastUpdate:      at,
		},
		At:      at,
		Payload: events.Payload{ShipType: 2, ShipLength: 4, Speed: cat(7), Probability: 0.0005},
	}
}

func mustHandle(t *testing.T, m *Manager, j Judgment, want Transition) {
	t.Helper()
	got, err := m.Handle(context.Background(), j)
	if err != nil {
		t.Fatalf("Handle(%s): %v", j.Verdict, err)
	}
	if got != want {
		t.Fatalf("Handle(%s) = %s, want %s", j.Verdict, got, want)
	}
}

func TestManager_NormalInNoneWritesNothing(t *testing.T) {
	sink := newMemorySink()
	m := NewManager(sink, nil)

	mustHandle(t, m, judgment(1, Normal, t0), TransitionNone)
	mustHandle(t, m, judgment(1, Normal, t0.Add(time.Minute)), TransitionNone)
	mustHandle(t, m, judgment(1, Stale, t0.Add(time.Hour)), TransitionNone)

	if sink.saves != 0 {
		t.Errorf("saves = %d, want 0", sink.saves)
	}
}

func TestManager_FullLifecycle(t *testing.T) {
	sink := newMemorySink()
	bc := &recordingBroadcaster{}
	m := NewManager(sink, bc)
	const mmsi = 265000001

	mustHandle(t, m, judgment(mmsi, Abnormal, t0), TransitionRaised)
	e1s := sink.ongoing(mmsi, events.KindSpeedOverGround)
	if len(e1s) != 1 {
		t.Fatalf("ongoing after raise = %d", len(e1s))
	}
	e1 := e1s[0]
	if !e1.Start.Equal(t0) || e1.TrackingPoints[0].Certainty != events.CertaintyRaised {
		t.Errorf("raised event = %+v", e1)
	}

	mustHandle(t, m, judgment(mmsi, Abnormal, t0.Add(time.Minute)), TransitionMaintained)
	e1 = sink.get(e1.ID)
	if len(e1.TrackingPoints) != 2 || e1.TrackingPoints[1].Certainty != events.CertaintyMaintained {
		t.Errorf("maintained points = %+v", e1.TrackingPoints)
	}
	if n := len(sink.ongoing(mmsi, events.KindSpeedOverGround)); n != 1 {
		t.Errorf("ongoing after maintain = %d, want 1", n)
	}

	t2 := t0.Add(2 * time.Minute)
	mustHandle(t, m, judgment(mmsi, Normal, t2), TransitionLowered)
	e1 = sink.get(e1.ID)
	if e1.State != events.StatePast || e1.End == nil || !e1.End.Equal(t2) {
		t.Errorf("lowered event state %s end %v", e1.State, e1.End)
	}
	if last := e1.TrackingPoints[len(e1.TrackingPoints)-1]; last.Certainty != events.CertaintyLowered {
		t.Errorf("last certainty = %s", last.Certainty)
	}

	t3 := t0.Add(3 * time.Minute)
	mustHandle(t, m, judgment(mmsi, Abnormal, t3), TransitionRaised)
	e2s := sink.ongoing(mmsi, events.KindSpeedOverGround)
	if len(e2s) != 1 || e2s[0].ID == e1.ID || !e2s[0].Start.Equal(t3) {
		t.Errorf("second event = %+v", e2s)
	}

	want := []string{MessageTypeEventRaised, MessageTypeEventMaintained, MessageTypeEventLowered, MessageTypeEventRaised}
	if len(bc.types) != len(want) {
		t.Fatalf("broadcasts = %v, want %v", bc.types, want)
	}
	for i := range want {
		if bc.types[i] != want[i] {
			t.Errorf("broadcast[%d] = %s, want %s", i, bc.types[i], want[i])
		}
	}
}

func TestManager_StaleLowersAtDetectionTime(t *testing.T) {
	sink := newMemorySink()
	m := NewManager(sink, nil)

	mustHandle(t, m, judgment(7, Abnormal, t0), TransitionRaised)
	detected := t0.Add(45 * time.Minute)
	mustHandle(t, m, judgment(7, Stale, detected), TransitionLowered)

	if n := len(sink.ongoing(7, events.KindSpeedOverGround)); n != 0 {
		t.Fatalf("ongoing = %d, want 0", n)
	}
	for _, e := range sink.events {
		if !e.End.Equal(detected) {
			t.Errorf("End = %v, want %v", e.End, detected)
		}
	}
	if _, ok := m.Ongoing(7, events.KindSpeedOverGround); ok {
		t.Error("pair state should be gone after stale")
	}
}

func TestManager_KindsAreIndependent(t *testing.T) {
	sink := newMemorySink()
	m := NewManager(sink, nil)

	sog := judgment(9, Abnormal, t0)
	cog := judgment(9, Abnormal, t0)
	cog.Kind = events.KindCourseOverGround
	cog.Payload.Course = cat(4)

	mustHandle(t, m, sog, TransitionRaised)
	mustHandle(t, m, cog, TransitionRaised)

	lower := judgment(9, Normal, t0.Add(time.Minute))
	mustHandle(t, m, lower, TransitionLowered)

	if n := len(sink.ongoing(9, events.KindCourseOverGround)); n != 1 {
		t.Errorf("course event ongoing = %d, want 1", n)
	}
}

func TestManager_ResumesDurableOngoingEvent(t *testing.T) {
	sink := newMemorySink()
	first := NewManager(sink, nil)
	mustHandle(t, first, judgment(11, Abnormal, t0), TransitionRaised)

	// a restarted process sees the stored event
	second := NewManager(sink, nil)
	mustHandle(t, second, judgment(11, Abnormal, t0.Add(time.Minute)), TransitionMaintained)
	if n := len(sink.ongoing(11, events.KindSpeedOverGround)); n != 1 {
		t.Errorf("ongoing = %d, want 1", n)
	}
}

func TestManager_SaveFailureKeepsState(t *testing.T) {
	sink := newMemorySink()
	m := NewManager(sink, nil)
	mustHandle(t, m, judgment(12, Abnormal, t0), TransitionRaised)
	before, _ := m.Ongoing(12, events.KindSpeedOverGround)

	sink.saveErr = errors.New("io error")
	tr, err := m.Handle(context.Background(), judgment(12, Normal, t0.Add(time.Minute)))
	if err == nil || tr != TransitionNone {
		t.Fatalf("Handle = %s, %v; want none and an error", tr, err)
	}
	stored := sink.get(before.ID)
	if stored.State != events.StateOngoing || len(stored.TrackingPoints) != 1 {
		t.Error("failed transition reached storage")
	}

	// the next judgment starts from the durable state
	sink.saveErr = nil
	mustHandle(t, m, judgment(12, Abnormal, t0.Add(2*time.Minute)), TransitionMaintained)
	stored = sink.get(before.ID)
	if len(stored.TrackingPoints) != 2 {
		t.Errorf("tracking points = %d, want 2", len(stored.TrackingPoints))
	}
}

func TestManager_FailedRaiseIsNotRemembered(t *testing.T) {
	sink := newMemorySink()
	sink.saveErr = errors.New("unavailable")
	m := NewManager(sink, nil)

	if _, err := m.Handle(context.Background(), judgment(13, Abnormal, t0)); err == nil {
		t.Fatal("expected error")
	}
	sink.saveErr = nil
	mustHandle(t, m, judgment(13, Normal, t0.Add(time.Minute)), TransitionNone)
	mustHandle(t, m, judgment(13, Abnormal, t0.Add(2*time.Minute)), TransitionRaised)
}

func TestManager_FindFailure(t *testing.T) {
	sink := newMemorySink()
	sink.findErr = errors.New("timeout")
	m := NewManager(sink, nil)
	if _, err := m.Handle(context.Background(), judgment(14, Abnormal, t0)); err == nil {
		t.Fatal("expected error")
	}
	if sink.saves != 0 {
		t.Error("nothing should be written when the lookup fails")
	}
}

func TestManager_InvalidKind(t *testing.T) {
	m := NewManager(newMemorySink(), nil)
	j := judgment(15, Abnormal, t0)
	j.Kind = "Teleport"
	if _, err := m.Handle(context.Background(), j); !errors.Is(err, events.ErrInvalidEvent) {
		t.Errorf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestManager_ConcurrentAbnormalRaisesOnce(t *testing.T) {
	sink := newMemorySink()
	sink.findWait = 5 * time.Millisecond
	m := NewManager(sink, nil)

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := make(map[Transition]int)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tr, err := m.Handle(context.Background(), judgment(16, Abnormal, t0.Add(time.Duration(i)*time.Second)))
			if err != nil {
				t.Errorf("Handle: %v", err)
				return
			}
			mu.Lock()
			counts[tr]++
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	if got := len(sink.ongoing(16, events.KindSpeedOverGround)); got != 1 {
		t.Fatalf("ongoing events = %d, want 1", got)
	}
	if counts[TransitionRaised] != 1 || counts[TransitionMaintained] != n-1 {
		t.Errorf("transitions = %v", counts)
	}
	if sink.finds != 1 {
		t.Errorf("durable lookups = %d, want 1", sink.finds)
	}
}

func TestManager_DifferentVesselsRunConcurrently(t *testing.T) {
	sink := newMemorySink()
	m := NewManager(sink, nil)

	var wg sync.WaitGroup
	for v := int64(100); v < 150; v++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				verdict := Abnormal
				if i == 4 {
					verdict = Normal
				}
				if _, err := m.Handle(context.Background(), judgment(v, verdict, t0.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Errorf("Handle: %v", err)
				}
			}
		}(v)
	}
	wg.Wait()

	if len(sink.events) != 50 {
		t.Errorf("events = %d, want 50", len(sink.events))
	}
	for _, e := range sink.events {
		if e.State != events.StatePast || len(e.TrackingPoints) != 5 {
			t.Errorf("event %d: state %s points %d", e.Vessel.MMSI, e.State, len(e.TrackingPoints))
		}
	}
}

func TestVerdictString(t *testing.T) {
	for v, want := range map[Verdict]string{Normal: "normal", Abnormal: "abnormal", Stale: "stale", Verdict(9): "unknown"} {
		if v.String() != want {
			t.Errorf("%d.String() = %q, want %q", v, v.String(), want)
		}
	}
}
