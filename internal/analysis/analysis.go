// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package analysis judges tracks against per-cell historical statistics.
//
// Each Analysis owns one attribute (course, speed, or ship type and size).
// On a cell change it buckets the track, looks up how many ships with the
// same buckets were seen in the cell and calls the track abnormal when
// that share is below the configured probability threshold. Cells with too
// few observations are never abnormal.
package analysis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/seawatch/internal/behavior"
	"github.com/tomtom215/seawatch/internal/categorizer"
	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/eventbus"
	"github.com/tomtom215/seawatch/internal/events"
	"github.com/tomtom215/seawatch/internal/featurestore"
	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
	"github.com/tomtom215/seawatch/internal/tracker"
)

// Statistics labels.
const (
	LabelEventsReceived      = "Events received"
	LabelUnknownMMSI         = "Unknown mmsi"
	LabelUnknownShipType     = "Unknown ship type"
	LabelUnknownShipLength   = "Unknown ship length"
	LabelPredictedTooLong    = "Predicted too long"
	LabelAnalysesPerformed   = "Analyses performed"
	LabelEventsProcessed     = "Events processed"
	LabelEventsRaised        = "Events raised"
	LabelFeatureStoreErrors  = "Feature store errors"
	LabelStaleEventsReceived = "Stale events received"
)

// Judge receives verdicts. *behavior.Manager satisfies it.
type Judge interface {
	Handle(ctx context.Context, j behavior.Judgment) (behavior.Transition, error)
}

// attribute is the kinematic value under test.
type attribute struct {
	label  string // for the missing-value counter
	value  func(t *tracker.Track) *float64
	bucket func(v float64) int
	// set stores the category in the event payload
	set func(p *events.Payload, category int)
}

// Analysis is one statistical analysis.
type Analysis struct {
	name    string
	kind    events.Kind
	feature string
	params  config.AnalysisParams
	filters []Predicate
	attr    *attribute

	store  featurestore.Reader
	judge  Judge
	stats  metrics.Sink
	logger zerolog.Logger
}

func newAnalysis(name string, kind events.Kind, feature string, params config.AnalysisParams,
	filters []Predicate, attr *attribute, store featurestore.Reader, judge Judge, stats metrics.Sink) *Analysis {
	if stats == nil {
		stats = metrics.NopSink{}
	}
	a := &Analysis{
		name:    name,
		kind:    kind,
		feature: feature,
		params:  params,
		filters: filters,
		attr:    attr,
		store:   store,
		judge:   judge,
		stats:   stats,
		logger:  logging.WithComponent(name),
	}
	a.logger.Info().
		Int("ship_count_min", params.ShipCountMin).
		Float64("pd", params.PD).
		Int("ship_length_min", params.ShipLengthMin).
		Bool("aggregated", params.UseAggregatedStats).
		Int("prediction_time_max", params.PredictionTimeMax).
		Msg("Analysis created")
	return a
}

// NewCourseOverGround creates the course over ground analysis.
func NewCourseOverGround(params config.AnalysisParams, store featurestore.Reader, judge Judge, stats metrics.Sink) *Analysis {
	return newAnalysis("CourseOverGroundAnalysis", events.KindCourseOverGround, featurestore.FeatureCourseOverGround,
		params, KinematicFilters, &attribute{
			label:  "Unknown course over ground",
			value:  func(t *tracker.Track) *float64 { return t.CourseOverGround },
			bucket: categorizer.CourseOverGround,
			set:    func(p *events.Payload, c int) { p.Course = &c },
		}, store, judge, stats)
}

// NewSpeedOverGround creates the speed over ground analysis.
func NewSpeedOverGround(params config.AnalysisParams, store featurestore.Reader, judge Judge, stats metrics.Sink) *Analysis {
	return newAnalysis("SpeedOverGroundAnalysis", events.KindSpeedOverGround, featurestore.FeatureSpeedOverGround,
		params, KinematicFilters, &attribute{
			label:  "Unknown speed over ground",
			value:  func(t *tracker.Track) *float64 { return t.SpeedOverGround },
			bucket: categorizer.SpeedOverGround,
			set:    func(p *events.Payload, c int) { p.Speed = &c },
		}, store, judge, stats)
}

// NewShipSizeOrType creates the analysis of ship type and size per cell.
func NewShipSizeOrType(params config.AnalysisParams, store featurestore.Reader, judge Judge, stats metrics.Sink) *Analysis {
	return newAnalysis("ShipTypeAndSizeAnalysis", events.KindShipSizeOrType, featurestore.FeatureShipTypeAndSize,
		params, TypeAndSizeFilters, nil, store, judge, stats)
}

// Name returns the component name used for statistics.
func (a *Analysis) Name() string { return a.name }

// Kind returns the event kind this analysis produces.
func (a *Analysis) Kind() events.Kind { return a.kind }

func (a *Analysis) String() string { return a.name }

// Subscribe registers the analysis on d. Analyses of different kinds may
// run concurrently for the same notification.
func (a *Analysis) Subscribe(d *eventbus.Dispatcher) {
	d.Subscribe(tracker.TopicCellChanged, eventbus.Handler{
		Name:       a.name,
		Concurrent: true,
		Handle: func(ctx context.Context, msg eventbus.Message) error {
			cc, ok := msg.(tracker.CellChanged)
			if !ok {
				return fmt.Errorf("unexpected message %T", msg)
			}
			return a.OnCellChanged(ctx, cc)
		},
	})
	d.Subscribe(tracker.TopicTrackStale, eventbus.Handler{
		Name:       a.name,
		Concurrent: true,
		Handle: func(ctx context.Context, msg eventbus.Message) error {
			ts, ok := msg.(tracker.TrackStale)
			if !ok {
				return fmt.Errorf("unexpected message %T", msg)
			}
			return a.OnTrackStale(ctx, ts)
		},
	})
}

// OnCellChanged judges the track in its new cell.
func (a *Analysis) OnCellChanged(ctx context.Context, cc tracker.CellChanged) error {
	a.stats.Increment(a.name, LabelEventsReceived)
	t := &cc.Track

	key, payload, ok := a.extract(t)
	if !ok {
		return nil
	}

	p, total, err := a.probability(ctx, t.CellID, key)
	if err != nil {
		a.stats.Increment(a.name, LabelFeatureStoreErrors)
		a.logger.Warn().Err(err).Int64("cell_id", t.CellID).Msg("Feature lookup failed; treating as no evidence")
	}
	a.stats.Increment(a.name, LabelAnalysesPerformed)

	verdict := behavior.Normal
	if a.IsAbnormal(p) {
		verdict = behavior.Abnormal
	}
	payload.Probability = p

	a.logger.Debug().
		Int64("mmsi", t.MMSI).
		Int64("cell_id", t.CellID).
		Int("total", total).
		Float64("p", p).
		Str("verdict", verdict.String()).
		Msg("Track analysed")

	tr, err := a.judge.Handle(ctx, behavior.Judgment{
		Kind:    a.kind,
		Verdict: verdict,
		Track:   cc.Track,
		At:      judgmentTime(t),
		Payload: payload,
	})
	if err != nil {
		return err
	}
	if tr == behavior.TransitionRaised {
		a.stats.Increment(a.name, LabelEventsRaised)
	}
	a.stats.Increment(a.name, LabelEventsProcessed)
	return nil
}

// OnTrackStale always reports a stale verdict.
func (a *Analysis) OnTrackStale(ctx context.Context, ts tracker.TrackStale) error {
	a.stats.Increment(a.name, LabelStaleEventsReceived)
	_, err := a.judge.Handle(ctx, behavior.Judgment{
		Kind:    a.kind,
		Verdict: behavior.Stale,
		Track:   ts.Track,
		At:      ts.DetectedAt,
	})
	return err
}

func judgmentTime(t *tracker.Track) time.Time {
	if t.LastUpdate.IsZero() {
		return time.Now().UTC()
	}
	return t.LastUpdate
}

// extract validates t and builds the feature key and event payload. ok is
// false when the track is not judged; the reason has been counted.
func (a *Analysis) extract(t *tracker.Track) (featurestore.Key, events.Payload, bool) {
	var none featurestore.Key

	switch {
	case t.MMSI <= 0:
		a.stats.Increment(a.name, LabelUnknownMMSI)
		return none, events.Payload{}, false
	case t.ShipType == nil:
		a.stats.Increment(a.name, LabelUnknownShipType)
		return none, events.Payload{}, false
	case t.ShipLength == nil:
		a.stats.Increment(a.name, LabelUnknownShipLength)
		return none, events.Payload{}, false
	}
	var value float64
	if a.attr != nil {
		v := a.attr.value(t)
		if v == nil {
			a.stats.Increment(a.name, a.attr.label)
			return none, events.Payload{}, false
		}
		value = *v
	}

	for _, f := range a.filters {
		if f.Match(t) {
			a.stats.Increment(a.name, "Skipped "+f.Name)
			return none, events.Payload{}, false
		}
	}
	if a.predictedTooLong(t) {
		a.stats.Increment(a.name, LabelPredictedTooLong)
		a.logger.Debug().Int64("mmsi", t.MMSI).Msg("Skipping analysis: track predicted for too long")
		return none, events.Payload{}, false
	}
	if *t.ShipLength < a.params.ShipLengthMin {
		a.stats.Increment(a.name, "LOA < "+strconv.Itoa(a.params.ShipLengthMin))
		return none, events.Payload{}, false
	}

	payload := events.Payload{
		ShipType:   categorizer.ShipType(*t.ShipType),
		ShipLength: categorizer.ShipLength(*t.ShipLength),
	}
	// feature keys are zero based
	if a.attr == nil {
		return featurestore.Key2(payload.ShipType-1, payload.ShipLength-1), payload, true
	}
	c := a.attr.bucket(value)
	a.attr.set(&payload, c)
	return featurestore.Key3(payload.ShipType-1, payload.ShipLength-1, c-1), payload, true
}

func (a *Analysis) predictedTooLong(t *tracker.Track) bool {
	if a.params.PredictionTimeMax <= 0 {
		return false
	}
	return t.PredictionAge() > time.Duration(a.params.PredictionTimeMax)*time.Second
}

// probability returns the share of ships in the cell with the same buckets
// as key, and the cell total. Cells without data or with no more than
// ShipCountMin observations give 1.
func (a *Analysis) probability(ctx context.Context, cellID int64, key featurestore.Key) (float64, int, error) {
	data, err := a.store.Get(ctx, a.feature, cellID)
	if err != nil || data == nil {
		return 1, 0, err
	}
	return Probability(data, key, a.params.ShipCountMin, a.params.UseAggregatedStats)
}

// Probability computes shipCount/total for key over data. It returns 1 when
// total does not exceed shipCountMin.
func Probability(data *featurestore.Data, key featurestore.Key, shipCountMin int, aggregated bool) (float64, int, error) {
	total := data.SumFor(featurestore.CounterShipCount)
	if total <= shipCountMin {
		return 1, total, nil
	}
	var count int
	if aggregated {
		count = data.AggregateSumOverKey1(key, featurestore.CounterShipCount)
	} else {
		count, _ = data.Value(key, featurestore.CounterShipCount)
	}
	return float64(count) / float64(total), total, nil
}

// IsAbnormal reports whether p is below the probability threshold.
func (a *Analysis) IsAbnormal(p float64) bool {
	return p < a.params.PD
}
