// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	IngestRunning     bool    `json:"ingest_running"`
	ActiveTracks      int     `json:"active_tracks"`
	WebSocketClients  int     `json:"websocket_clients"`
	Uptime            float64 `json:"uptime_seconds"`
}

func (h *Handler) databaseConnected(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.db.PingContext(ctx) == nil
}

func (h *Handler) ingestRunning() bool {
	if h.ingestReady == nil {
		return false
	}
	select {
	case <-h.ingestReady:
		return true
	default:
		return false
	}
}

func (h *Handler) status(ctx context.Context) HealthStatus {
	s := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: h.databaseConnected(ctx),
		IngestRunning:     h.ingestRunning(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.tracks != nil {
		s.ActiveTracks = h.tracks.Len()
	}
	if h.wsHub != nil {
		s.WebSocketClients = h.wsHub.GetClientCount()
	}
	if !s.DatabaseConnected || !s.IngestRunning {
		s.Status = "degraded"
	}
	return s
}

// Health handles health check requests
//
// @Summary Get system health status
// @Description Returns event database connectivity, ingest state, live track count and uptime
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, h.status(r.Context()), -1, start)
}

// HealthLive returns 200 while the process is serving requests.
//
// @Summary Liveness check
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, -1, time.Now())
}

// HealthReady returns 200 only when the event database answers and the
// ingest router is running.
//
// @Summary Readiness check
// @Tags Core
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Failure 503 {object} APIResponse
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	s := h.status(r.Context())
	if s.Status != "healthy" {
		respondError(w, http.StatusServiceUnavailable, codeUnavailable, "service is not ready", nil)
		return
	}
	respondData(w, s, -1, time.Now())
}
