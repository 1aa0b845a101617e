// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package ingest

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/seawatch/internal/cache"
	"github.com/tomtom215/seawatch/internal/metrics"
)

// Deduplicator implements middleware.ExpiringKeyRepository on a bounded
// LRU so memory stays flat under a high message rate.
type Deduplicator struct {
	seen *cache.LRU[string, struct{}]
}

// NewDeduplicator remembers up to capacity keys for ttl.
func NewDeduplicator(capacity int, ttl time.Duration) *Deduplicator {
	return &Deduplicator{seen: cache.NewLRU[string, struct{}](capacity, ttl)}
}

// IsDuplicate records key and reports whether it was already present.
func (d *Deduplicator) IsDuplicate(_ context.Context, key string) (bool, error) {
	if _, loaded := d.seen.AddIfAbsent(key, struct{}{}); loaded {
		metrics.IngestMessages.WithLabelValues(resultDuplicate).Inc()
		return true, nil
	}
	return false, nil
}

// Len returns the number of remembered keys.
func (d *Deduplicator) Len() int {
	return d.seen.Len()
}

// Forget removes key so the next message with it is handled again.
func (d *Deduplicator) Forget(key string) {
	d.seen.Remove(key)
}

// ReleaseOnError forgets the message's key when h fails, so a redelivery
// of an unprocessed report is not mistaken for a duplicate.
func (d *Deduplicator) ReleaseOnError(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			if key, kerr := dedupKey(msg); kerr == nil {
				d.Forget(key)
			}
		}
		return out, err
	}
}
