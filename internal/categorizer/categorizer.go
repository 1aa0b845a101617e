// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package categorizer maps raw vessel attributes onto the small 1-based
// categories the historical statistics are indexed by. Every function is
// total: out-of-range, negative and NaN inputs clamp into a boundary
// category. Statistic keys use category-1.
package categorizer

import (
	"math"
	"strconv"
)

// Kind identifies an attribute that can be bucketed.
type Kind int

const (
	KindShipType Kind = iota
	KindShipLength
	KindCourseOverGround
	KindSpeedOverGround
)

func (k Kind) String() string {
	switch k {
	case KindShipType:
		return "ship_type"
	case KindShipLength:
		return "ship_length"
	case KindCourseOverGround:
		return "course_over_ground"
	case KindSpeedOverGround:
		return "speed_over_ground"
	default:
		return "unknown"
	}
}

// Ship type categories.
const (
	ShipTypeTanker    = 1
	ShipTypeCargo     = 2
	ShipTypePassenger = 3
	ShipTypeSupport   = 4
	ShipTypeFishing   = 5
	ShipTypePleasure  = 6
	ShipTypeOther     = 7
	ShipTypeUndefined = 8
)

// ShipLengthUndefined is the category for lengths below 1 m.
const ShipLengthUndefined = 1

// Number of categories per kind.
const (
	NumShipTypes     = 8
	NumShipLengths   = 6
	NumCourses       = 12
	NumSpeeds        = 8
	courseSectorSize = 360.0 / NumCourses
)

// Bucket dispatches on kind. Unknown kinds return 1.
func Bucket(kind Kind, value float64) int {
	switch kind {
	case KindShipType:
		if math.IsNaN(value) || value < 0 || value >= 100 {
			return ShipTypeUndefined
		}
		return ShipType(int(value))
	case KindShipLength:
		if math.IsNaN(value) {
			return 1
		}
		return ShipLength(int(math.Max(math.Min(value, math.MaxInt32), math.MinInt32)))
	case KindCourseOverGround:
		return CourseOverGround(value)
	case KindSpeedOverGround:
		return SpeedOverGround(value)
	default:
		return 1
	}
}

// Count returns the number of categories of kind.
func Count(kind Kind) int {
	switch kind {
	case KindShipType:
		return NumShipTypes
	case KindShipLength:
		return NumShipLengths
	case KindCourseOverGround:
		return NumCourses
	case KindSpeedOverGround:
		return NumSpeeds
	default:
		return 0
	}
}

// ShipType buckets an AIS ship-and-cargo type code.
func ShipType(code int) int {
	switch {
	case code >= 80 && code <= 89:
		return ShipTypeTanker
	case code >= 70 && code <= 79:
		return ShipTypeCargo
	case (code >= 40 && code <= 49) || (code >= 60 && code <= 69):
		return ShipTypePassenger
	case (code >= 31 && code <= 35) || (code >= 50 && code <= 55):
		return ShipTypeSupport
	case code == 30:
		return ShipTypeFishing
	case code == 36 || code == 37:
		return ShipTypePleasure
	case code >= 1 && code <= 99:
		return ShipTypeOther
	default:
		return ShipTypeUndefined
	}
}

// ShipLength buckets an overall length in meters.
func ShipLength(meters int) int {
	switch {
	case meters < 1:
		return ShipLengthUndefined
	case meters < 50:
		return 2
	case meters < 100:
		return 3
	case meters < 200:
		return 4
	case meters < 250:
		return 5
	default:
		return 6
	}
}

// CourseOverGround buckets a course in degrees into twelve 30 degree sectors.
func CourseOverGround(degrees float64) int {
	if math.IsNaN(degrees) || degrees < 0 {
		return 1
	}
	if degrees >= 360 {
		return NumCourses
	}
	return int(degrees/courseSectorSize) + 1
}

var speedBounds = [...]float64{1, 5, 10, 15, 20, 30, 50}

// SpeedOverGround buckets a speed in knots.
func SpeedOverGround(knots float64) int {
	if math.IsNaN(knots) || knots < 0 {
		return 1
	}
	for i, upper := range speedBounds {
		if knots < upper {
			return i + 1
		}
	}
	return NumSpeeds
}

var shipTypeLabels = [...]string{
	ShipTypeTanker:    "tanker",
	ShipTypeCargo:     "cargo",
	ShipTypePassenger: "passenger",
	ShipTypeSupport:   "support",
	ShipTypeFishing:   "fishing",
	ShipTypePleasure:  "pleasure",
	ShipTypeOther:     "other",
	ShipTypeUndefined: "undefined",
}

var shipLengthLabels = [...]string{
	1: "undefined",
	2: "1-50m",
	3: "50-100m",
	4: "100-200m",
	5: "200-250m",
	6: "250m+",
}

var speedLabels = [...]string{
	1: "0-1kts",
	2: "1-5kts",
	3: "5-10kts",
	4: "10-15kts",
	5: "15-20kts",
	6: "20-30kts",
	7: "30-50kts",
	8: "50+kts",
}

// ShipTypeLabel returns a readable name for a ship type category.
func ShipTypeLabel(category int) string {
	return label(shipTypeLabels[:], category)
}

// ShipLengthLabel returns a readable range for a ship length category.
func ShipLengthLabel(category int) string {
	return label(shipLengthLabels[:], category)
}

// CourseOverGroundLabel returns the sector range, e.g. "30-60deg".
func CourseOverGroundLabel(category int) string {
	if category < 1 || category > NumCourses {
		return "?"
	}
	lo := (category - 1) * int(courseSectorSize)
	return strconv.Itoa(lo) + "-" + strconv.Itoa(lo+int(courseSectorSize)) + "deg"
}

// SpeedOverGroundLabel returns the speed range, e.g. "5-10kts".
func SpeedOverGroundLabel(category int) string {
	return label(speedLabels[:], category)
}

func label(table []string, category int) string {
	if category < 1 || category >= len(table) {
		return "?"
	}
	return table[category]
}
