// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package services

import (
	"context"
)

// ContextRunner blocks until ctx is canceled or it fails.
//
// Satisfied by *tracker.Sweeper, *ingest.Consumer and *websocket.Hub.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a ContextRunner as a supervised service.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService wraps r under name.
func NewRunnerService(name string, r ContextRunner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// NewSweeperService wraps the track staleness sweeper.
func NewSweeperService(r ContextRunner) *RunnerService {
	return NewRunnerService("track-sweeper", r)
}

// NewIngestService wraps the report consumer.
func NewIngestService(r ContextRunner) *RunnerService {
	return NewRunnerService("report-ingest", r)
}

// NewWebSocketHubService wraps the websocket hub.
func NewWebSocketHubService(r ContextRunner) *RunnerService {
	return NewRunnerService("websocket-hub", r)
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

func (s *RunnerService) String() string {
	return s.name
}
