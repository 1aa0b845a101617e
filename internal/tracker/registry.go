// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package tracker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/seawatch/internal/grid"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
)

// Drop reasons, also used as the result label of the reports counter.
const (
	DropInvalidMMSI     = "invalid_mmsi"
	DropMissingPosition = "missing_position"
	DropInvalidPosition = "invalid_position"
	DropOutOfOrder      = "out_of_order"
	DropPublishFailed   = "publish_failed"

	resultAccepted = "accepted"
)

// Config configures a Registry.
type Config struct {
	StaleTimeout time.Duration
	// DropLogPerSecond limits warnings about dropped reports. Drops are
	// always counted.
	DropLogPerSecond float64
}

type entry struct {
	mu      sync.Mutex
	track   Track
	removed bool
}

// Registry holds one Track per vessel. Updates to one vessel are atomic;
// different vessels never contend on a shared lock.
//
// Notifications are published while the vessel's entry is locked, so
// subscribers see one vessel's notifications in update order. Synchronous
// subscribers must not call back into the registry for the same vessel.
type Registry struct {
	grid   *grid.Grid
	pub    Publisher
	cfg    Config
	logger zerolog.Logger

	entries sync.Map // int64 -> *entry
	count   atomic.Int64

	dropLog *rate.Limiter
}

// NewRegistry creates an empty registry that computes cells on g and
// publishes to pub.
func NewRegistry(g *grid.Grid, pub Publisher, cfg Config) *Registry {
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 30 * time.Minute
	}
	limit := rate.Limit(cfg.DropLogPerSecond)
	if cfg.DropLogPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Registry{
		grid:    g,
		pub:     pub,
		cfg:     cfg,
		logger:  logging.WithComponent("tracker"),
		dropLog: rate.NewLimiter(limit, 1),
	}
}

// OnReport applies r to its vessel's track and publishes CellChanged when
// the cell differs from the stored one. Reports that cannot be used are
// dropped and counted; the returned value is the drop reason or "".
func (r *Registry) OnReport(ctx context.Context, rep *Report) string {
	if reason := r.check(rep); reason != "" {
		r.drop(rep, reason)
		return reason
	}
	cellID, _ := r.grid.CellID(*rep.Latitude, *rep.Longitude)

	for {
		e := r.load(rep.MMSI)
		e.mu.Lock()
		if e.removed {
			// evicted between load and lock; start a fresh track
			e.mu.Unlock()
			continue
		}
		reason := r.update(ctx, e, rep, cellID)
		e.mu.Unlock()

		if reason != "" {
			r.drop(rep, reason)
			return reason
		}
		metrics.TrackerReports.WithLabelValues(resultAccepted).Inc()
		return ""
	}
}

func (r *Registry) check(rep *Report) string {
	switch {
	case rep.MMSI <= 0:
		return DropInvalidMMSI
	case rep.Latitude == nil || rep.Longitude == nil:
		return DropMissingPosition
	case !grid.ValidPosition(*rep.Latitude, *rep.Longitude):
		return DropInvalidPosition
	}
	return ""
}

func (r *Registry) load(mmsi int64) *entry {
	if e, ok := r.entries.Load(mmsi); ok {
		return e.(*entry)
	}
	e, loaded := r.entries.LoadOrStore(mmsi, &entry{})
	if !loaded {
		r.count.Add(1)
		metrics.TracksActive.Inc()
	}
	return e.(*entry)
}

// update runs with e.mu held.
func (r *Registry) update(ctx context.Context, e *entry, rep *Report, cellID int64) string {
	first := e.track.MMSI == 0
	if !first && rep.Timestamp.Before(e.track.LastUpdate) {
		return DropOutOfOrder
	}

	before := e.track
	prev := e.track.CellID
	e.track.MMSI = rep.MMSI
	e.track.apply(rep, cellID)

	if !first && prev == cellID {
		return ""
	}

	msg := CellChanged{Track: e.track, PreviousCell: prev, FirstSighting: first}
	if err := r.pub.Publish(ctx, msg); err != nil {
		r.logger.Warn().Err(err).Int64("mmsi", rep.MMSI).Msg("Failed to publish cell change")
		// roll back so a redelivered report raises the same notification
		e.track = before
		if first {
			r.evict(rep.MMSI, e)
		}
		return DropPublishFailed
	}
	metrics.CellChanges.Inc()
	return ""
}

// evict removes e from the registry. Callers hold e.mu.
func (r *Registry) evict(mmsi int64, e *entry) {
	e.removed = true
	if r.entries.CompareAndDelete(mmsi, e) {
		r.count.Add(-1)
		metrics.TracksActive.Dec()
	}
}

func (r *Registry) drop(rep *Report, reason string) {
	metrics.TrackerReports.WithLabelValues(reason).Inc()
	if r.dropLog.Allow() {
		r.logger.Warn().
			Int64("mmsi", rep.MMSI).
			Str("reason", reason).
			Msg("Dropped report")
	}
}

// Get returns a copy of the vessel's track.
func (r *Registry) Get(mmsi int64) (Track, bool) {
	v, ok := r.entries.Load(mmsi)
	if !ok {
		return Track{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.track.MMSI == 0 {
		return Track{}, false
	}
	return e.track, true
}

// Len returns the number of tracked vessels.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Snapshot returns copies of all tracks ordered by mmsi.
func (r *Registry) Snapshot() []Track {
	out := make([]Track, 0, r.Len())
	r.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.removed && e.track.MMSI != 0 {
			out = append(out, e.track)
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// Sweep evicts every track whose last update is older than the stale
// timeout at now. Each evicted track is published as TrackStale exactly
// once; a track whose notification cannot be published stays until a later
// sweep succeeds. It returns the number of evicted tracks.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	evicted := 0
	r.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.removed || now.Sub(e.track.LastUpdate) <= r.cfg.StaleTimeout {
			return true
		}
		// an entry with no track yet belongs to a report still in flight
		if e.track.MMSI == 0 {
			return true
		}

		msg := TrackStale{Track: e.track, DetectedAt: now}
		if err := r.pub.Publish(ctx, msg); err != nil {
			// keep the track; the next sweep tries again
			r.logger.Warn().Err(err).Int64("mmsi", e.track.MMSI).Msg("Failed to publish stale track")
			return true
		}
		r.evict(k.(int64), e)
		metrics.TracksStale.Inc()
		evicted++
		return true
	})

	if evicted > 0 {
		r.logger.Debug().Int("evicted", evicted).Int("active", r.Len()).Msg("Stale tracks swept")
	}
	return evicted
}
