// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package events defines the abnormal event aggregate and its persistence.
//
// An AbnormalEvent is one anomaly episode for one vessel and one analysis
// kind. It is raised ONGOING, gains a tracking point every time the anomaly
// is confirmed and is closed (PAST) when the vessel behaves normally again
// or goes stale. Events are never deleted.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/seawatch/internal/tracker"
)

// ErrInvalidEvent is returned for events that violate the aggregate rules.
var ErrInvalidEvent = errors.New("events: invalid event")

// Kind tags the analysis that produced an event.
type Kind string

const (
	KindCourseOverGround Kind = "CourseOverGround"
	KindSpeedOverGround  Kind = "SpeedOverGround"
	KindShipSizeOrType   Kind = "ShipSizeOrType"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindCourseOverGround, KindSpeedOverGround, KindShipSizeOrType}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// State is the lifecycle state of an event.
type State string

const (
	StateOngoing State = "ONGOING"
	StatePast    State = "PAST"
)

// Certainty tags a tracking point with the transition that recorded it.
type Certainty string

const (
	CertaintyRaised     Certainty = "RAISED"
	CertaintyMaintained Certainty = "MAINTAINED"
	CertaintyLowered    Certainty = "LOWERED"
	CertaintyUndefined  Certainty = "UNDEFINED"
)

// Vessel identifies the vessel an event is about.
type Vessel struct {
	MMSI     int64  `json:"mmsi"`
	Name     string `json:"name,omitempty"`
	CallSign string `json:"callsign,omitempty"`
	IMO      int    `json:"imo,omitempty"`
}

// TrackingPoint is the vessel state recorded at one transition.
type TrackingPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Latitude         float64   `json:"lat"`
	Longitude        float64   `json:"lon"`
	CourseOverGround *float64  `json:"cog,omitempty"`
	SpeedOverGround  *float64  `json:"sog,omitempty"`
	Interpolated     bool      `json:"interpolated,omitempty"`
	Certainty        Certainty `json:"certainty"`
}

// Payload carries the kind-specific categories that triggered the event.
// ShipType and ShipLength are set for every kind; Course is set for
// CourseOverGround and Speed for SpeedOverGround.
type Payload struct {
	ShipType   int  `json:"ship_type"`
	ShipLength int  `json:"ship_length"`
	Course     *int `json:"course,omitempty"`
	Speed      *int `json:"speed,omitempty"`
	// Probability is the value that raised the event.
	Probability float64 `json:"probability"`
}

// AbnormalEvent is a tagged event aggregate.
type AbnormalEvent struct {
	ID     uuid.UUID `json:"id"`
	Kind   Kind      `json:"kind"`
	Vessel Vessel    `json:"vessel"`
	CellID int64     `json:"cell_id"`

	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
	State State      `json:"state"`

	Title       string `json:"title"`
	Description string `json:"description"`

	TrackingPoints []TrackingPoint `json:"tracking_points"`
	Payload        Payload         `json:"payload"`
}

// NewVessel builds the vessel reference from a track.
func NewVessel(t tracker.Track) Vessel {
	return Vessel{MMSI: t.MMSI, Name: t.Name, CallSign: t.CallSign, IMO: t.IMO}
}

// NewTrackingPoint records t at the given instant.
func NewTrackingPoint(t tracker.Track, at time.Time, c Certainty) TrackingPoint {
	tp := TrackingPoint{
		Timestamp:    at.UTC(),
		Latitude:     t.Latitude,
		Longitude:    t.Longitude,
		Interpolated: t.Interpolated,
		Certainty:    c,
	}
	if t.CourseOverGround != nil {
		v := *t.CourseOverGround
		tp.CourseOverGround = &v
	}
	if t.SpeedOverGround != nil {
		v := *t.SpeedOverGround
		tp.SpeedOverGround = &v
	}
	return tp
}

// NewAbnormalEvent creates an ONGOING event started at first.Timestamp
// with first as its only tracking point.
func NewAbnormalEvent(kind Kind, vessel Vessel, cellID int64, payload Payload, first TrackingPoint) (*AbnormalEvent, error) {
	e := &AbnormalEvent{
		ID:             uuid.New(),
		Kind:           kind,
		Vessel:         vessel,
		CellID:         cellID,
		Start:          first.Timestamp.UTC(),
		State:          StateOngoing,
		TrackingPoints: []TrackingPoint{first},
		Payload:        payload,
	}
	e.Title, e.Description = Describe(kind, vessel, payload)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the aggregate invariants.
func (e *AbnormalEvent) Validate() error {
	switch {
	case e.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	case e.Vessel.MMSI <= 0:
		return fmt.Errorf("%w: mmsi %d", ErrInvalidEvent, e.Vessel.MMSI)
	case e.Start.IsZero():
		return fmt.Errorf("%w: missing start", ErrInvalidEvent)
	case e.Kind == KindCourseOverGround && e.Payload.Course == nil:
		return fmt.Errorf("%w: %s event without course category", ErrInvalidEvent, e.Kind)
	case e.Kind == KindSpeedOverGround && e.Payload.Speed == nil:
		return fmt.Errorf("%w: %s event without speed category", ErrInvalidEvent, e.Kind)
	}
	switch e.State {
	case StateOngoing:
		if e.End != nil {
			return fmt.Errorf("%w: ongoing event with end time", ErrInvalidEvent)
		}
	case StatePast:
		if e.End == nil || e.End.Before(e.Start) {
			return fmt.Errorf("%w: past event needs an end at or after start", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: state %q", ErrInvalidEvent, e.State)
	}
	return nil
}

// Maintain appends a tracking point to an ongoing event.
func (e *AbnormalEvent) Maintain(tp TrackingPoint) error {
	if e.State != StateOngoing {
		return fmt.Errorf("%w: maintain on %s event", ErrInvalidEvent, e.State)
	}
	e.TrackingPoints = append(e.TrackingPoints, tp)
	return nil
}

// Lower closes an ongoing event at tp.Timestamp.
func (e *AbnormalEvent) Lower(tp TrackingPoint) error {
	if e.State != StateOngoing {
		return fmt.Errorf("%w: lower on %s event", ErrInvalidEvent, e.State)
	}
	end := tp.Timestamp.UTC()
	if end.Before(e.Start) {
		end = e.Start
	}
	e.End = &end
	e.State = StatePast
	e.TrackingPoints = append(e.TrackingPoints, tp)
	return nil
}

// Clone returns a deep copy.
func (e *AbnormalEvent) Clone() *AbnormalEvent {
	out := *e
	if e.End != nil {
		end := *e.End
		out.End = &end
	}
	out.TrackingPoints = append([]TrackingPoint(nil), e.TrackingPoints...)
	if e.Payload.Course != nil {
		v := *e.Payload.Course
		out.Payload.Course = &v
	}
	if e.Payload.Speed != nil {
		v := *e.Payload.Speed
		out.Payload.Speed = &v
	}
	return &out
}
