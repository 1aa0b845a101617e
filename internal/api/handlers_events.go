// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/seawatch/internal/events"
)

const defaultRecentLimit = 50

type recentEventsRequest struct {
	Limit int `json:"limit" validate:"min=1"`
}

type eventsRangeRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtefield=From"`
}

// RecentEvents lists events newest first.
//
// @Summary List recent events
// @Tags Events
// @Produce json
// @Param limit query int false "Maximum events" default(50)
// @Success 200 {object} APIResponse{data=[]events.AbnormalEvent}
// @Failure 400 {object} APIResponse
// @Router /api/v1/events/recent [get]
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, ok := getIntParam(r, "limit", defaultRecentLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be an integer", nil)
		return
	}
	req := recentEventsRequest{Limit: limit}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}
	if limitMax := h.cfg.Events.RecentLimitMax; req.Limit > limitMax {
		req.Limit = limitMax
	}

	list, err := h.events.RecentEvents(r.Context(), req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabase, "failed to load events", err)
		return
	}
	respondData(w, nonNil(list), len(list), start)
}

// EventsBetween lists events active at any time in [from, to].
//
// @Summary List events in a time range
// @Tags Events
// @Produce json
// @Param from query string true "RFC3339 start"
// @Param to query string true "RFC3339 end"
// @Success 200 {object} APIResponse{data=[]events.AbnormalEvent}
// @Failure 400 {object} APIResponse
// @Router /api/v1/events [get]
func (h *Handler) EventsBetween(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	from, err := getTimeParam(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	to, err := getTimeParam(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	req := eventsRangeRequest{From: from, To: to}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	list, err := h.events.EventsBetween(r.Context(), req.From, req.To)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabase, "failed to load events", err)
		return
	}
	respondData(w, nonNil(list), len(list), start)
}

// Event returns one event by id.
//
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event UUID"
// @Success 200 {object} APIResponse{data=events.AbnormalEvent}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/events/{id} [get]
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "id must be a UUID", nil)
		return
	}
	e, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabase, "failed to load event", err)
		return
	}
	if e == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "event not found", nil)
		return
	}
	respondData(w, e, -1, start)
}

// EventKinds returns totals per event kind.
//
// @Summary Count events per kind
// @Tags Events
// @Produce json
// @Success 200 {object} APIResponse{data=[]events.KindCount}
// @Router /api/v1/events/kinds [get]
func (h *Handler) EventKinds(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	kinds, err := h.events.EventKinds(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDatabase, "failed to count events", err)
		return
	}
	if kinds == nil {
		kinds = []events.KindCount{}
	}
	respondData(w, kinds, len(kinds), start)
}

// nonNil keeps empty results encoded as [] rather than null.
func nonNil(list []events.AbnormalEvent) []events.AbnormalEvent {
	if list == nil {
		return []events.AbnormalEvent{}
	}
	return list
}
