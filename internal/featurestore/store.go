// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package featurestore persists per-cell statistic histograms keyed by
// (feature name, cell id) and answers point and marginal-sum queries on them.
package featurestore

import (
	"context"
	"errors"
)

// Feature names written by the offline statistic builders.
const (
	FeatureShipTypeAndSize  = "ShipTypeAndSizeStatistic"
	FeatureCourseOverGround = "CourseOverGroundStatistic"
	FeatureSpeedOverGround  = "SpeedOverGroundStatistic"
)

// ErrInvalidName is returned for an empty feature name or one containing a
// NUL byte.
var ErrInvalidName = errors.New("featurestore: invalid feature name")

// Reader is the read side used by the analyses.
type Reader interface {
	// Get returns the snapshot for name/cellID, or (nil, nil) when nothing
	// has been stored. The returned Data is frozen.
	Get(ctx context.Context, name string, cellID int64) (*Data, error)
}

// Store is a durable feature store. Put replaces the whole value for a key.
type Store interface {
	Reader
	Put(ctx context.Context, name string, cellID int64, data *Data) error
	CellIDs(ctx context.Context, name string) ([]int64, error)
	FeatureNames(ctx context.Context) ([]string, error)
	Close() error
}
