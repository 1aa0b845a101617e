// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/tracker"
	ws "github.com/tomtom215/seawatch/internal/websocket"
)

// TrackReader is the read side of the track registry.
type TrackReader interface {
	Get(mmsi int64) (tracker.Track, bool)
	Snapshot() []tracker.Track
	Len() int
}

// Pinger checks a storage connection. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the API endpoints.
type Handler struct {
	cfg       *config.Config
	tracks    TrackReader
	events    events.Repository
	wsHub     *ws.Hub
	startTime time.Time

	// optional
	publisher   message.Publisher
	reportTopic string
	db          Pinger
	ingestReady <-chan struct{}
}

// NewHandler creates a Handler. hub may be nil, which disables /ws.
func NewHandler(cfg *config.Config, tracks TrackReader, repo events.Repository, hub *ws.Hub) *Handler {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		cfg:       cfg,
		tracks:    tracks,
		events:    repo,
		wsHub:     hub,
		startTime: time.Now(),
	}
}

// WithReports enables POST /api/v1/reports, publishing to topic.
func (h *Handler) WithReports(pub message.Publisher, topic string) *Handler {
	h.publisher = pub
	h.reportTopic = topic
	return h
}

// WithReadiness sets the dependencies checked by the health endpoints.
// ingestReady is closed once the ingest router is running.
func (h *Handler) WithReadiness(db Pinger, ingestReady <-chan struct{}) *Handler {
	h.db = db
	h.ingestReady = ingestReady
	return h
}
