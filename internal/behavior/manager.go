// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package behavior turns analysis verdicts into abnormal event transitions.
//
// Each (vessel, kind) pair is a two-state machine:
//
//	NONE    + Abnormal       -> ONGOING  raise a new event
//	ONGOING + Abnormal       -> ONGOING  maintain: append a tracking point
//	ONGOING + Normal / Stale -> NONE     lower: close the event
//	NONE    + Normal / Stale -> NONE     nothing
//
// The read-decide-write step runs under a lock per (vessel, kind), so at
// most one ONGOING event exists per pair. The state is read from the sink
// on the first verdict for a pair and after any failed write; otherwise the
// last durably confirmed state is used.
package behavior

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/tracker"
)

// Verdict is the outcome of one analysis run.
type Verdict int

const (
	Normal Verdict = iota
	Abnormal
	Stale
)

func (v Verdict) String() string {
	switch v {
	case Normal:
		return "normal"
	case Abnormal:
		return "abnormal"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Judgment is a verdict for one vessel and one kind.
type Judgment struct {
	Kind    events.Kind
	Verdict Verdict
	Track   tracker.Track
	// At is the judgment time: the report time for a cell change, the
	// detection time for staleness.
	At time.Time
	// Payload describes the abnormality. Only used when raising.
	Payload events.Payload
}

// Transition is what a judgment did.
type Transition string

const (
	TransitionNone       Transition = "none"
	TransitionRaised     Transition = "raised"
	TransitionMaintained Transition = "maintained"
	TransitionLowered    Transition = "lowered"
)

// Message types sent to the broadcaster.
const (
	MessageTypeEventRaised     = "event_raised"
	MessageTypeEventMaintained = "event_maintained"
	MessageTypeEventLowered    = "event_lowered"
)

// Broadcaster pushes transitions to live clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

type pairKey struct {
	mmsi int64
	kind events.Kind
}

type pairState struct {
	mu      sync.Mutex
	loaded  bool
	ongoing *events.AbnormalEvent // last durably confirmed; nil is NONE
	removed bool
}

// Manager runs the per-pair state machines.
type Manager struct {
	sink        events.Sink
	broadcaster Broadcaster
	logger      zerolog.Logger

	pairs sync.Map // pairKey -> *pairState
}

// NewManager creates a manager persisting through sink. broadcaster may be
// nil.
func NewManager(sink events.Sink, broadcaster Broadcaster) *Manager {
	return &Manager{
		sink:        sink,
		broadcaster: broadcaster,
		logger:      logging.WithComponent("behavior"),
	}
}

// SetBroadcaster replaces the broadcaster. Call before judgments flow.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

func (m *Manager) lock(k pairKey) *pairState {
	for {
		v, ok := m.pairs.Load(k)
		if !ok {
			v, _ = m.pairs.LoadOrStore(k, &pairState{})
		}
		st := v.(*pairState)
		st.mu.Lock()
		if !st.removed {
			return st
		}
		st.mu.Unlock()
	}
}

// Handle applies j and returns the transition taken. On a sink error the
// transition did not happen and the pair keeps its previous state.
func (m *Manager) Handle(ctx context.Context, j Judgment) (Transition, error) {
	if !j.Kind.Valid() {
		return TransitionNone, fmt.Errorf("%w: unknown kind %q", events.ErrInvalidEvent, j.Kind)
	}
	k := pairKey{mmsi: j.Track.MMSI, kind: j.Kind}
	st := m.lock(k)
	defer st.mu.Unlock()

	if !st.loaded {
		ongoing, err := m.sink.FindOngoingEvent(ctx, k.mmsi, k.kind)
		if err != nil {
			metrics.BehaviorTransitions.WithLabelValues(string(j.Kind), "error").Inc()
			return TransitionNone, fmt.Errorf("find ongoing event: %w", err)
		}
		st.ongoing = ongoing
		st.loaded = true
	}

	tr, next, err := m.decide(j, st.ongoing)
	if err != nil {
		return TransitionNone, err
	}
	if tr != TransitionNone {
		if err := m.sink.Save(ctx, next); err != nil {
			// reread durable state on the next judgment
			st.loaded = false
			st.ongoing = nil
			metrics.BehaviorTransitions.WithLabelValues(string(j.Kind), "error").Inc()
			m.logger.Error().Err(err).
				Int64("mmsi", k.mmsi).
				Str("kind", string(k.kind)).
				Str("transition", string(tr)).
				Msg("Failed to persist event transition")
			return TransitionNone, fmt.Errorf("save event: %w", err)
		}
		m.confirm(st, tr, next)
	}

	// forget pairs that have nothing ongoing once the track is gone
	if j.Verdict == Stale && st.ongoing == nil {
		st.removed = true
		m.pairs.CompareAndDelete(k, st)
	}
	return tr, nil
}

// decide computes the transition and the event to persist. It never
// mutates current.
func (m *Manager) decide(j Judgment, current *events.AbnormalEvent) (Transition, *events.AbnormalEvent, error) {
	switch {
	case current == nil && j.Verdict == Abnormal:
		tp := events.NewTrackingPoint(j.Track, j.At, events.CertaintyRaised)
		e, err := events.NewAbnormalEvent(j.Kind, events.NewVessel(j.Track), j.Track.CellID, j.Payload, tp)
		if err != nil {
			return TransitionNone, nil, err
		}
		return TransitionRaised, e, nil

	case current != nil && j.Verdict == Abnormal:
		e := current.Clone()
		if err := e.Maintain(events.NewTrackingPoint(j.Track, j.At, events.CertaintyMaintained)); err != nil {
			return TransitionNone, nil, err
		}
		return TransitionMaintained, e, nil

	case current != nil:
		e := current.Clone()
		if err := e.Lower(events.NewTrackingPoint(j.Track, j.At, events.CertaintyLowered)); err != nil {
			return TransitionNone, nil, err
		}
		return TransitionLowered, e, nil
	}
	return TransitionNone, nil, nil
}

func (m *Manager) confirm(st *pairState, tr Transition, e *events.AbnormalEvent) {
	if tr == TransitionLowered {
		st.ongoing = nil
	} else {
		st.ongoing = e
	}
	metrics.BehaviorTransitions.WithLabelValues(string(e.Kind), string(tr)).Inc()

	ev := m.logger.Info()
	if tr == TransitionMaintained {
		ev = m.logger.Debug()
	}
	ev.Str("event_id", e.ID.String()).
		Int64("mmsi", e.Vessel.MMSI).
		Str("kind", string(e.Kind)).
		Str("transition", string(tr)).
		Int("points", len(e.TrackingPoints)).
		Msg("Abnormal event " + string(tr))

	if m.broadcaster == nil {
		return
	}
	msgType := MessageTypeEventRaised
	switch tr {
	case TransitionMaintained:
		msgType = MessageTypeEventMaintained
	case TransitionLowered:
		msgType = MessageTypeEventLowered
	}
	m.broadcaster.BroadcastJSON(msgType, e.Clone())
}

// Ongoing returns a copy of the cached ongoing event for the pair, if the
// pair has been loaded.
func (m *Manager) Ongoing(mmsi int64, kind events.Kind) (*events.AbnormalEvent, bool) {
	v, ok := m.pairs.Load(pairKey{mmsi: mmsi, kind: kind})
	if !ok {
		return nil, false
	}
	st := v.(*pairState)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.removed || !st.loaded || st.ongoing == nil {
		return nil, false
	}
	return st.ongoing.Clone(), true
}
