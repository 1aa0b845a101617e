// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// Tracks lists the live tracks ordered by mmsi.
//
// @Summary List live tracks
// @Tags Tracks
// @Produce json
// @Success 200 {object} APIResponse{data=[]tracker.Track}
// @Router /api/v1/tracks [get]
func (h *Handler) Tracks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	tracks := h.tracks.Snapshot()
	respondData(w, tracks, len(tracks), start)
}

// Track returns one live track.
//
// @Summary Get a live track
// @Tags Tracks
// @Produce json
// @Param mmsi path int true "MMSI"
// @Success 200 {object} APIResponse{data=tracker.Track}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /api/v1/tracks/{mmsi} [get]
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	mmsi, err := strconv.ParseInt(chi.URLParam(r, "mmsi"), 10, 64)
	if err != nil || mmsi <= 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "mmsi must be a positive integer", nil)
		return
	}
	t, ok := h.tracks.Get(mmsi)
	if !ok {
		respondError(w, http.StatusNotFound, codeNotFound, "no live track for mmsi", nil)
		return
	}
	respondData(w, t, -1, start)
}
