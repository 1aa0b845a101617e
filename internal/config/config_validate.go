// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package config

import (
	"fmt"

	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/validation"
)

// Validate checks field ranges declared in struct tags and the cross-field
// rules that tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}

	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateFeatureStore(); err != nil {
		return err
	}
	return c.validateIngest()
}

func (c *Config) validateTracker() error {
	if c.Tracker.SweepInterval > c.Tracker.StaleTimeout {
		return fmt.Errorf("tracker.sweep_interval (%s) must not exceed tracker.stale_timeout (%s)",
			c.Tracker.SweepInterval, c.Tracker.StaleTimeout)
	}
	return nil
}

func (c *Config) validateFeatureStore() error {
	if !c.FeatureStore.InMemory && c.FeatureStore.Path == "" {
		return fmt.Errorf("featurestore.path is required unless featurestore.in_memory is set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Mode != "nats" {
		return nil
	}
	if c.Ingest.NATSURL == "" && !c.Ingest.EmbeddedServer {
		return fmt.Errorf("NATS_URL is required when INGEST_MODE=nats without an embedded server")
	}
	if c.Ingest.EmbeddedServer && c.Ingest.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.Ingest.DurableName == "" {
		return fmt.Errorf("NATS_DURABLE_NAME is required when INGEST_MODE=nats")
	}
	return nil
}

// EnabledAnalyses reports how many analyses are switched on.
func (c *Config) EnabledAnalyses() int {
	n := 0
	for _, p := range []AnalysisParams{c.Analysis.CourseOverGround, c.Analysis.SpeedOverGround, c.Analysis.ShipTypeAndSize} {
		if p.Enabled {
			n++
		}
	}
	return n
}
