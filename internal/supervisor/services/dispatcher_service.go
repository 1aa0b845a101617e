// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package services

import (
	"context"
	"time"
)

// Drainer matches *eventbus.Dispatcher.
type Drainer interface {
	RunWithContext(ctx context.Context, drainTimeout time.Duration) error
}

// DispatcherService keeps the notification dispatcher alive for the life of
// the tree and drains queued notifications on shutdown.
type DispatcherService struct {
	dispatcher   Drainer
	drainTimeout time.Duration
	name         string
}

// NewDispatcherService wraps d. drainTimeout <= 0 defaults to 10s.
func NewDispatcherService(d Drainer, drainTimeout time.Duration) *DispatcherService {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	return &DispatcherService{
		dispatcher:   d,
		drainTimeout: drainTimeout,
		name:         "notification-dispatcher",
	}
}

// Serve implements suture.Service.
func (s *DispatcherService) Serve(ctx context.Context) error {
	return s.dispatcher.RunWithContext(ctx, s.drainTimeout)
}

func (s *DispatcherService) String() string {
	return s.name
}
