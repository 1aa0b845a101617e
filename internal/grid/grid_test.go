// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package grid

import (
	"math"
	"testing"
)

func TestNew_RejectsBadResolution(t *testing.T) {
	for _, r := range []float64{0, -1, 91, math.NaN()} {
		if _, err := New(r); err == nil {
			t.Errorf("New(%v) should fail", r)
		}
	}
}

func TestCellID(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     int64
		ok       bool
	}{
		{"south west corner", -90, -180, 0, true},
		{"next column", -90, -179, 1, true},
		{"next row", -89, -180, 360, true},
		{"north east edge clamps", 90, 180, 179*360 + 359, true},
		{"origin", 0, 0, 90*360 + 180, true},
		{"not available", 91, 181, 0, false},
		{"nan", math.NaN(), 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.CellID(tt.lat, tt.lon)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("CellID = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCell_RoundTrip(t *testing.T) {
	g, err := New(0.05)
	if err != nil {
		t.Fatal(err)
	}
	lat, lon := 55.6761, 12.5683
	id, ok := g.CellID(lat, lon)
	if !ok {
		t.Fatal("expected valid cell")
	}
	c, err := g.Cell(id)
	if err != nil {
		t.Fatal(err)
	}
	if lat < c.MinLat || lat >= c.MaxLat || lon < c.MinLon || lon >= c.MaxLon {
		t.Errorf("position %v,%v outside cell %+v", lat, lon, c)
	}
	clat, clon := c.Center()
	if again, _ := g.CellID(clat, clon); again != id {
		t.Errorf("center maps to %d, want %d", again, id)
	}
	if _, err := g.Cell(-1); err == nil {
		t.Error("expected error for negative id")
	}
}
