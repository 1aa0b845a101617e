// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package events

import (
	"fmt"
	"strings"

	"github.com/tomtom215/seawatch/internal/categorizer"
)

// Describe builds the title and description shown to operators.
func Describe(kind Kind, vessel Vessel, p Payload) (title, description string) {
	name := vesselName(vessel)
	shipType := categorizer.ShipTypeLabel(p.ShipType)
	shipLength := categorizer.ShipLengthLabel(p.ShipLength)

	switch kind {
	case KindCourseOverGround:
		title = "Abnormal course over ground"
		description = fmt.Sprintf("%s: course %s is unusual for a %s vessel of %s here.",
			name, categorizer.CourseOverGroundLabel(deref(p.Course)), shipType, shipLength)
	case KindSpeedOverGround:
		title = "Abnormal speed over ground"
		description = fmt.Sprintf("%s: speed %s is unusual for a %s vessel of %s here.",
			name, categorizer.SpeedOverGroundLabel(deref(p.Speed)), shipType, shipLength)
	case KindShipSizeOrType:
		title = "Abnormal ship size or type"
		description = fmt.Sprintf("%s: a %s vessel of %s is unusual here.", name, shipType, shipLength)
	default:
		title = "Abnormal behaviour"
		description = name
	}
	if p.Probability > 0 {
		description += fmt.Sprintf(" p=%.5f", p.Probability)
	}
	return title, description
}

func vesselName(v Vessel) string {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		return fmt.Sprintf("MMSI %d", v.MMSI)
	}
	return fmt.Sprintf("%s (MMSI %d)", name, v.MMSI)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
