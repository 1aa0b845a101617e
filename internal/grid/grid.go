// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package grid discretizes WGS84 positions into fixed-size lat/lon cells.
// Cell ids are row-major from the south-west corner and are stable for a
// given resolution, so they can key persisted statistics.
package grid

import (
	"fmt"
	"math"
)

// Grid is an immutable lat/lon grid with square cells of Resolution degrees.
type Grid struct {
	resolution float64
	rows       int64
	cols       int64
}

// Cell describes one grid cell.
type Cell struct {
	ID     int64   `json:"id"`
	Row    int64   `json:"row"`
	Col    int64   `json:"col"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Center returns the middle of the cell.
func (c Cell) Center() (lat, lon float64) {
	return (c.MinLat + c.MaxLat) / 2, (c.MinLon + c.MaxLon) / 2
}

// New returns a grid with the given cell size in degrees.
func New(resolution float64) (*Grid, error) {
	if !(resolution > 0) || resolution > 90 {
		return nil, fmt.Errorf("grid resolution must be in (0, 90], got %v", resolution)
	}
	return &Grid{
		resolution: resolution,
		rows:       int64(math.Ceil(180 / resolution)),
		cols:       int64(math.Ceil(360 / resolution)),
	}, nil
}

// Resolution returns the cell edge length in degrees.
func (g *Grid) Resolution() float64 {
	return g.resolution
}

// ValidPosition reports whether lat/lon is a real WGS84 position. The AIS
// "not available" values (91, 181) fall outside and are rejected.
func ValidPosition(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CellID returns the id of the cell containing lat/lon. ok is false for an
// invalid position.
func (g *Grid) CellID(lat, lon float64) (id int64, ok bool) {
	if !ValidPosition(lat, lon) {
		return 0, false
	}
	row := g.index(lat+90, g.rows)
	col := g.index(lon+180, g.cols)
	return row*g.cols + col, true
}

// index clamps the upper edge (lat 90, lon 180) into the last row/column.
func (g *Grid) index(offset float64, n int64) int64 {
	i := int64(math.Floor(offset / g.resolution))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Cell returns the bounds of cell id.
func (g *Grid) Cell(id int64) (Cell, error) {
	if id < 0 || id >= g.rows*g.cols {
		return Cell{}, fmt.Errorf("cell id %d out of range", id)
	}
	row, col := id/g.cols, id%g.cols
	minLat := -90 + float64(row)*g.resolution
	minLon := -180 + float64(col)*g.resolution
	return Cell{
		ID:     id,
		Row:    row,
		Col:    col,
		MinLat: minLat,
		MaxLat: math.Min(minLat+g.resolution, 90),
		MinLon: minLon,
		MaxLon: math.Min(minLon+g.resolution, 180),
	}, nil
}
