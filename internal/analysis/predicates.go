// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package analysis

import (
	"github.com/tomtom215/seawatch/internal/categorizer"
	"github.com/tomtom215/seawatch/internal/tracker"
)

// Predicate selects tracks an analysis should not judge.
type Predicate struct {
	Name  string
	Match func(t *tracker.Track) bool
}

func shipTypeIn(t *tracker.Track, lo, hi int) bool {
	return t.ShipType != nil && *t.ShipType >= lo && *t.ShipType <= hi
}

var (
	// IsClassB matches class B transponders.
	IsClassB = Predicate{Name: "class B", Match: func(t *tracker.Track) bool {
		return t.ClassB
	}}

	// IsSmallVessel matches vessels shorter than 10 m.
	IsSmallVessel = Predicate{Name: "small vessel", Match: func(t *tracker.Track) bool {
		return t.ShipLength != nil && *t.ShipLength < 10
	}}

	// IsFishingVessel matches ship type 30.
	IsFishingVessel = Predicate{Name: "fishing vessel", Match: func(t *tracker.Track) bool {
		return shipTypeIn(t, 30, 30)
	}}

	// IsSpecialCraft matches ship types 50-59 (pilots, SAR, tugs, ...).
	IsSpecialCraft = Predicate{Name: "special craft", Match: func(t *tracker.Track) bool {
		return shipTypeIn(t, 50, 59)
	}}

	// IsEngagedInTowing matches ship types 31 and 32.
	IsEngagedInTowing = Predicate{Name: "towing", Match: func(t *tracker.Track) bool {
		return shipTypeIn(t, 31, 32)
	}}

	// IsUnknownTypeOrSize matches tracks whose type or length is missing or
	// maps to the undefined category.
	IsUnknownTypeOrSize = Predicate{Name: "unknown type or size", Match: func(t *tracker.Track) bool {
		if t.ShipType == nil || t.ShipLength == nil {
			return true
		}
		return categorizer.ShipType(*t.ShipType) == categorizer.ShipTypeUndefined ||
			categorizer.ShipLength(*t.ShipLength) == categorizer.ShipLengthUndefined
	}}
)

// KinematicFilters are the exclusions applied by the course and speed
// analyses.
var KinematicFilters = []Predicate{
	IsClassB, IsUnknownTypeOrSize, IsFishingVessel, IsSmallVessel, IsSpecialCraft, IsEngagedInTowing,
}

// TypeAndSizeFilters are the exclusions applied by the ship size/type
// analysis.
var TypeAndSizeFilters = []Predicate{IsClassB, IsUnknownTypeOrSize}
