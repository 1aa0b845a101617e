// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package websocket

import (
	"fmt"
	"slices"

	"github.com/tomtom215/seawatch/internal/events"
)

// maxFilterMMSIs bounds the vessel list of one subscription.
const maxFilterMMSIs = 1000

// Filter narrows the event transitions a client receives. Empty lists
// match everything.
type Filter struct {
	Kinds []events.Kind `json:"kinds,omitempty"`
	MMSIs []int64       `json:"mmsi,omitempty"`
}

// Validate rejects unknown kinds and oversized vessel lists.
func (f *Filter) Validate() error {
	for _, k := range f.Kinds {
		if !k.Valid() {
			return fmt.Errorf("unknown event kind %q", k)
		}
	}
	if len(f.MMSIs) > maxFilterMMSIs {
		return fmt.Errorf("at most %d mmsi values per subscription", maxFilterMMSIs)
	}
	return nil
}

// Match reports whether msg passes the filter. Messages that do not carry
// an abnormal event always pass.
func (f *Filter) Match(msg Message) bool {
	if f == nil {
		return true
	}
	var e *events.AbnormalEvent
	switch v := msg.Data.(type) {
	case *events.AbnormalEvent:
		e = v
	case events.AbnormalEvent:
		e = &v
	default:
		return true
	}
	if e == nil {
		return true
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if len(f.MMSIs) > 0 && !slices.Contains(f.MMSIs, e.Vessel.MMSI) {
		return false
	}
	return true
}
