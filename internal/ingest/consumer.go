// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package ingest consumes JSON position reports from a watermill topic and
// feeds them to the track registry.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/tracker"
)

const (
	resultProcessed = "processed"
	resultDropped   = "dropped"
	resultMalformed = "malformed"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"

	handlerName = "report_consumer"

	dedupCapacity = 100_000
	dedupTTL      = 10 * time.Minute
)

// ErrNotDelivered is returned when a report was applied but its cell change
// could not be handed to the analyses. The message is nacked.
var ErrNotDelivered = errors.New("ingest: notification not delivered")

// ReportHandler applies a report. It returns the drop reason, or "" when
// the report was accepted. *tracker.Registry satisfies it.
type ReportHandler interface {
	OnReport(ctx context.Context, r *tracker.Report) string
}

// Consumer runs a watermill router with one handler that decodes reports.
// A new router is built on every run so the consumer can be restarted by
// its supervisor.
type Consumer struct {
	cfg     config.IngestConfig
	sub     message.Subscriber
	poison  message.Publisher
	handler ReportHandler
	dedup   *Deduplicator
	logger  zerolog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewConsumer returns a consumer reading cfg.Topic from sub. poison may be
// nil, in which case messages failing every retry are dropped.
func NewConsumer(cfg config.IngestConfig, sub message.Subscriber, poison message.Publisher, handler ReportHandler) *Consumer {
	return &Consumer{
		cfg:     cfg,
		sub:     sub,
		poison:  poison,
		handler: handler,
		dedup:   NewDeduplicator(dedupCapacity, dedupTTL),
		logger:  logging.WithComponent("ingest"),
		ready:   make(chan struct{}),
	}
}

// Running is closed once the first router is consuming.
func (c *Consumer) Running() <-chan struct{} {
	return c.ready
}

func (c *Consumer) newRouter() (*message.Router, error) {
	wmLogger := logging.NewWatermillAdapter()
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: c.cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outermost first. The poison queue wraps retry so a message is only
	// parked after every attempt failed.
	if c.poison != nil && c.cfg.PoisonTopic != "" {
		pq, err := middleware.PoisonQueue(c.poison, c.cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		r.AddMiddleware(pq)
	}
	r.AddMiddleware(middleware.Recoverer)
	// Dedup sits outside retry so retried attempts reach the registry, and a
	// report that still failed is forgotten so the broker can redeliver it.
	r.AddMiddleware(c.dedup.ReleaseOnError)
	dedup := middleware.Deduplicator{
		KeyFactory: dedupKey,
		Repository: c.dedup,
	}
	r.AddMiddleware(dedup.Middleware)
	if c.cfg.RetryMax > 0 {
		retry := middleware.Retry{
			MaxRetries:      c.cfg.RetryMax,
			InitialInterval: c.cfg.RetryInitialInterval,
			MaxInterval:     10 * c.cfg.RetryInitialInterval,
			Multiplier:      2.0,
			Logger:          wmLogger,
		}
		r.AddMiddleware(retry.Middleware)
	}
	if c.cfg.ThrottlePerSecond > 0 {
		r.AddMiddleware(middleware.NewThrottle(c.cfg.ThrottlePerSecond, time.Second).Middleware)
	}

	r.AddConsumerHandler(handlerName, c.cfg.Topic, c.sub, c.handle)
	return r, nil
}

// RunWithContext consumes until ctx is canceled.
func (c *Consumer) RunWithContext(ctx context.Context) error {
	r, err := c.newRouter()
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-r.Running():
			c.readyOnce.Do(func() { close(c.ready) })
		case <-ctx.Done():
		}
	}()

	c.logger.Info().Str("topic", c.cfg.Topic).Str("mode", c.cfg.Mode).Msg("Report consumer starting")
	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("run report router: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// handle decodes one message and applies it. Malformed payloads and
// registry drops are acked; only undelivered notifications are retried.
func (c *Consumer) handle(msg *message.Message) error {
	r, err := DecodeReport(msg.Payload)
	if err != nil {
		metrics.IngestMessages.WithLabelValues(resultMalformed).Inc()
		c.logger.Debug().Err(err).Str("message_id", msg.UUID).Msg("Discarding malformed report")
		return nil
	}

	switch reason := c.handler.OnReport(msg.Context(), r); reason {
	case "":
		metrics.IngestMessages.WithLabelValues(resultProcessed).Inc()
		return nil
	case tracker.DropPublishFailed:
		metrics.IngestMessages.WithLabelValues(resultFailed).Inc()
		return fmt.Errorf("%w: mmsi %d", ErrNotDelivered, r.MMSI)
	default:
		metrics.IngestMessages.WithLabelValues(resultDropped).Inc()
		return nil
	}
}

func (c *Consumer) String() string { return "ingest-consumer" }
