// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/seawatch/internal/logging"
	ws "github.com/tomtom215/seawatch/internal/websocket"
)

// splitOrigins parses the comma separated server.cors_origins value.
func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// checkWebSocketOrigin allows same-origin upgrades and origins on the allow
// list. "*" allows any origin. Requests without an Origin header are
// rejected.
func checkWebSocketOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	allowed := splitOrigins(h.cfg.Server.CORSOrigins)
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			ok := checkWebSocketOrigin(r, allowed)
			if !ok {
				logging.Warn().Str("origin", sanitizeLogValue(r.Header.Get("Origin"))).Msg("WebSocket origin rejected")
			}
			return ok
		},
	}
}

// WebSocket upgrades the connection and streams event transitions.
//
// @Summary Live event feed
// @Description Upgrades to a websocket that receives event_raised, event_maintained and event_lowered messages
// @Tags Events
// @Success 101 "Switching protocols"
// @Failure 503 {object} APIResponse
// @Router /ws [get]
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, codeUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}
