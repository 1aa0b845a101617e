// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package api

import "errors"

var (
	// ErrReportsDisabled is returned when no ingest publisher is configured.
	ErrReportsDisabled = errors.New("report submission is not enabled")

	// ErrTooManyReports is returned when a submission exceeds maxReportBatch.
	ErrTooManyReports = errors.New("too many reports in one request")
)

// Error codes used in APIError.Code.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeNotFound    = "NOT_FOUND"
	codeDatabase    = "DATABASE_ERROR"
	codeUnavailable = "SERVICE_UNAVAILABLE"
	codePublish     = "PUBLISH_ERROR"
)
