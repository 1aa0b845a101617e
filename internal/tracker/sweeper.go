// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package tracker

import (
	"context"
	"time"

	"github.com/tomtom215/seawatch/internal/logging"
)

// Sweeper runs Registry.Sweep on a fixed interval.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper for registry.
func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{registry: registry, interval: interval, now: time.Now}
}

// RunWithContext sweeps every interval until ctx is canceled. A sweep in
// progress when ctx is canceled runs to completion.
func (s *Sweeper) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Track sweeper started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("reason", ctx.Err().Error()).Msg("Track sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.registry.Sweep(context.WithoutCancel(ctx), s.now())
		}
	}
}
