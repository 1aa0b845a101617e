// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package tracker

import (
	"context"
	"time"

	"github.com/tomtom215/seawatch/internal/eventbus"
)

// Topics published by the registry.
const (
	TopicCellChanged eventbus.Topic = "track.cell_changed"
	TopicTrackStale  eventbus.Topic = "track.stale"
)

// CellChanged is published when a track enters a new grid cell, including
// its first sighting.
type CellChanged struct {
	Track        Track
	PreviousCell int64
	// FirstSighting is true when the track was created by this report.
	FirstSighting bool
}

func (CellChanged) Topic() eventbus.Topic { return TopicCellChanged }

func (c CellChanged) PartitionKey() int64 { return c.Track.MMSI }

// TrackStale is published once when a track is evicted for inactivity.
type TrackStale struct {
	Track      Track
	DetectedAt time.Time
}

func (TrackStale) Topic() eventbus.Topic { return TopicTrackStale }

func (s TrackStale) PartitionKey() int64 { return s.Track.MMSI }

// Publisher receives registry notifications. *eventbus.Dispatcher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg eventbus.Message) error
}
