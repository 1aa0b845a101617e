// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sink is the durable side of the behavior state machine.
type Sink interface {
	// Save upserts e by id.
	Save(ctx context.Context, e *AbnormalEvent) error
	// FindOngoingEvent returns the ONGOING event for the vessel and kind,
	// or (nil, nil).
	FindOngoingEvent(ctx context.Context, mmsi int64, kind Kind) (*AbnormalEvent, error)
}

// KindCount summarizes the events of one kind.
type KindCount struct {
	Kind    Kind `json:"kind"`
	Total   int  `json:"total"`
	Ongoing int  `json:"ongoing"`
}

// Repository adds the read side used by the HTTP API.
type Repository interface {
	Sink
	// GetEvent returns the event with id, or (nil, nil).
	GetEvent(ctx context.Context, id uuid.UUID) (*AbnormalEvent, error)
	// RecentEvents returns up to limit events, newest start first.
	RecentEvents(ctx context.Context, limit int) ([]AbnormalEvent, error)
	// EventsBetween returns events active at any time in [from, to].
	EventsBetween(ctx context.Context, from, to time.Time) ([]AbnormalEvent, error)
	// EventKinds counts events per kind.
	EventKinds(ctx context.Context) ([]KindCount, error)
}
