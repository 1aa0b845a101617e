// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/seawatch/internal/ingest"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/tracker"
)

const (
	maxReportBody  = 1 << 20
	maxReportBatch = 500
)

// SubmitResult is the body of a successful report submission.
type SubmitResult struct {
	Accepted int    `json:"accepted"`
	Topic    string `json:"topic"`
}

// SubmitReports publishes a JSON report, or an array of reports, to the
// ingest topic. Reports are processed asynchronously.
//
// @Summary Submit position reports
// @Tags Reports
// @Accept json
// @Produce json
// @Success 202 {object} APIResponse{data=SubmitResult}
// @Failure 400 {object} APIResponse
// @Failure 413 {object} APIResponse
// @Failure 429 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /api/v1/reports [post]
func (h *Handler) SubmitReports(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.publisher == nil {
		respondError(w, http.StatusServiceUnavailable, codeUnavailable, ErrReportsDisabled.Error(), nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, codeValidation, "request body too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, codeValidation, "failed to read request body", nil)
		return
	}

	reports, err := decodeReports(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	if err := ingest.PublishReports(h.publisher, h.reportTopic, reports...); err != nil {
		respondError(w, http.StatusServiceUnavailable, codePublish, "failed to publish reports", err)
		return
	}
	metrics.APIReportsSubmitted.Add(float64(len(reports)))
	logging.Ctx(r.Context()).Debug().Int("reports", len(reports)).Msg("Reports submitted")

	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status: "success",
		Data:   SubmitResult{Accepted: len(reports), Topic: h.reportTopic},
		Metadata: Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// decodeReports accepts one object or a non-empty array of objects. Every
// report must carry a positive mmsi and a timestamp.
func decodeReports(body []byte) ([]*tracker.Report, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("request body is empty")
	}

	var raw []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
	} else {
		raw = []json.RawMessage{body}
	}
	if len(raw) == 0 {
		return nil, errors.New("no reports in request")
	}
	if len(raw) > maxReportBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyReports, len(raw), maxReportBatch)
	}

	out := make([]*tracker.Report, 0, len(raw))
	for i, payload := range raw {
		rep, err := ingest.DecodeReport(payload)
		if err != nil {
			return nil, fmt.Errorf("report %d: %w", i, err)
		}
		if rep.MMSI <= 0 {
			return nil, fmt.Errorf("report %d: mmsi must be positive", i)
		}
		out = append(out, rep)
	}
	return out, nil
}
