// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package events

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
)

// BreakerConfig configures a BreakerSink.
type BreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// BreakerSink guards a Sink with a circuit breaker so a failing event
// store fails fast instead of stalling every transition.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker[*AbnormalEvent]
}

// NewBreakerSink wraps next.
func NewBreakerSink(next Sink, cfg BreakerConfig) *BreakerSink {
	if cfg.Name == "" {
		cfg.Name = "event-sink"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a canceled caller says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	return &BreakerSink{next: next, cb: gobreaker.NewCircuitBreaker[*AbnormalEvent](settings)}
}

// Save implements Sink.
func (b *BreakerSink) Save(ctx context.Context, e *AbnormalEvent) error {
	_, err := b.cb.Execute(func() (*AbnormalEvent, error) {
		return nil, b.next.Save(ctx, e)
	})
	return err
}

// FindOngoingEvent implements Sink.
func (b *BreakerSink) FindOngoingEvent(ctx context.Context, mmsi int64, kind Kind) (*AbnormalEvent, error) {
	return b.cb.Execute(func() (*AbnormalEvent, error) {
		return b.next.FindOngoingEvent(ctx, mmsi, kind)
	})
}

// State returns the breaker state name.
func (b *BreakerSink) State() string {
	return b.cb.State().String()
}
