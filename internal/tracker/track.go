// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package tracker keeps the live per-vessel state built from position
// reports, detects grid cell changes and evicts tracks that go quiet.
package tracker

import (
	"time"
)

// Report is one decoded kinematic/static report for a vessel. Optional
// attributes are nil when the source did not carry them.
type Report struct {
	MMSI      int64     `json:"mmsi"`
	Timestamp time.Time `json:"timestamp"`

	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`

	CourseOverGround *float64 `json:"cog,omitempty"`
	SpeedOverGround  *float64 `json:"sog,omitempty"`
	TrueHeading      *int     `json:"heading,omitempty"`

	ShipType   *int `json:"ship_type,omitempty"`
	ShipLength *int `json:"ship_length,omitempty"`

	// ClassB marks reports from a class B transponder.
	ClassB bool `json:"class_b,omitempty"`
	// Interpolated marks positions predicted by the source rather than
	// reported by the vessel.
	Interpolated bool `json:"interpolated,omitempty"`

	Name     string `json:"name,omitempty"`
	CallSign string `json:"callsign,omitempty"`
	IMO      int    `json:"imo,omitempty"`
}

// Track is the current state of one vessel. Values handed out by the
// registry are copies; pointer fields are never mutated after being set.
type Track struct {
	MMSI int64 `json:"mmsi"`

	// LastUpdate is the timestamp of the newest report applied.
	LastUpdate time.Time `json:"last_update"`
	// LastPositionReport is the timestamp of the newest non-interpolated
	// position.
	LastPositionReport time.Time `json:"last_position_report"`

	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lon"`
	CellID       int64   `json:"cell_id"`
	Interpolated bool    `json:"interpolated"`

	CourseOverGround *float64 `json:"cog,omitempty"`
	SpeedOverGround  *float64 `json:"sog,omitempty"`
	TrueHeading      *int     `json:"heading,omitempty"`
	ShipType         *int     `json:"ship_type,omitempty"`
	ShipLength       *int     `json:"ship_length,omitempty"`
	ClassB           bool     `json:"class_b"`

	Name     string `json:"name,omitempty"`
	CallSign string `json:"callsign,omitempty"`
	IMO      int    `json:"imo,omitempty"`
}

// PredictionAge is how far LastUpdate runs ahead of the last real position.
func (t *Track) PredictionAge() time.Duration {
	if t.LastPositionReport.IsZero() {
		return 0
	}
	return t.LastUpdate.Sub(t.LastPositionReport)
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// apply merges r into t. Kinematics are always replaced; static data is
// kept when r does not carry it.
func (t *Track) apply(r *Report, cellID int64) {
	t.LastUpdate = r.Timestamp
	if !r.Interpolated {
		t.LastPositionReport = r.Timestamp
	}
	t.Latitude = *r.Latitude
	t.Longitude = *r.Longitude
	t.CellID = cellID
	t.Interpolated = r.Interpolated

	t.CourseOverGround = copyFloat(r.CourseOverGround)
	t.SpeedOverGround = copyFloat(r.SpeedOverGround)
	t.TrueHeading = copyInt(r.TrueHeading)
	t.ClassB = r.ClassB

	if r.ShipType != nil {
		t.ShipType = copyInt(r.ShipType)
	}
	if r.ShipLength != nil {
		t.ShipLength = copyInt(r.ShipLength)
	}
	if r.Name != "" {
		t.Name = r.Name
	}
	if r.CallSign != "" {
		t.CallSign = r.CallSign
	}
	if r.IMO != 0 {
		t.IMO = r.IMO
	}
}
