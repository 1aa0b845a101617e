// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package featurestore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Counter names used by the statistic builders.
const (
	CounterShipCount = "shipCount"
)

var (
	// ErrInvalidKey is returned for negative buckets or a third bucket on
	// two-key data.
	ErrInvalidKey = errors.New("featurestore: invalid key")

	// ErrFrozen is returned when mutating a snapshot obtained from a Store.
	ErrFrozen = errors.New("featurestore: data is a read-only snapshot")

	// ErrNegativeCount is returned when a counter would drop below zero.
	ErrNegativeCount = errors.New("featurestore: counter must not be negative")
)

// Key is a 2- or 3-tuple of zero-based buckets. K3 is always 0 for two-key
// data.
type Key struct {
	K1, K2, K3 int
}

// Key2 returns a two-key tuple.
func Key2(k1, k2 int) Key { return Key{K1: k1, K2: k2} }

// Key3 returns a three-key tuple.
func Key3(k1, k2, k3 int) Key { return Key{K1: k1, K2: k2, K3: k3} }

func (k Key) less(o Key) bool {
	if k.K1 != o.K1 {
		return k.K1 < o.K1
	}
	if k.K2 != o.K2 {
		return k.K2 < o.K2
	}
	return k.K3 < o.K3
}

// Data is a sparse histogram for one (feature, cell) pair: bucket tuple ->
// named non-negative counters. A missing tuple means zero observations.
//
// Data returned by a Store is frozen; Clone it before modifying.
type Data struct {
	dims    int
	entries map[Key]map[string]int
	frozen  bool
}

// NewData returns empty two-key (dims=2) or three-key (dims=3) data. Any
// other dims value is treated as 3.
func NewData(dims int) *Data {
	if dims != 2 {
		dims = 3
	}
	return &Data{dims: dims, entries: make(map[Key]map[string]int)}
}

// Dims returns 2 or 3.
func (d *Data) Dims() int { return d.dims }

// Frozen reports whether d is a read-only snapshot.
func (d *Data) Frozen() bool { return d.frozen }

func (d *Data) validKey(k Key) error {
	if k.K1 < 0 || k.K2 < 0 || k.K3 < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidKey, k)
	}
	if d.dims == 2 && k.K3 != 0 {
		return fmt.Errorf("%w: third bucket on two-key data", ErrInvalidKey)
	}
	return nil
}

// Value returns the counter at k. ok is false when the tuple or the counter
// has never been set.
func (d *Data) Value(k Key, counter string) (int, bool) {
	c, ok := d.entries[k]
	if !ok {
		return 0, false
	}
	v, ok := c[counter]
	return v, ok
}

// Set stores v under k/counter.
func (d *Data) Set(k Key, counter string, v int) error {
	if d.frozen {
		return ErrFrozen
	}
	if err := d.validKey(k); err != nil {
		return err
	}
	if v < 0 {
		return ErrNegativeCount
	}
	c, ok := d.entries[k]
	if !ok {
		c = make(map[string]int, 1)
		d.entries[k] = c
	}
	c[counter] = v
	return nil
}

// Add increments k/counter by delta.
func (d *Data) Add(k Key, counter string, delta int) error {
	cur, _ := d.Value(k, counter)
	return d.Set(k, counter, cur+delta)
}

// SumFor totals counter over every tuple.
func (d *Data) SumFor(counter string) int {
	sum := 0
	for _, c := range d.entries {
		sum += c[counter]
	}
	return sum
}

// AggregateSumOverKey1 totals counter over all K1 values for the K2 (and
// K3) of k, i.e. the marginal that collapses the first dimension.
func (d *Data) AggregateSumOverKey1(k Key, counter string) int {
	sum := 0
	for key, c := range d.entries {
		if key.K2 == k.K2 && key.K3 == k.K3 {
			sum += c[counter]
		}
	}
	return sum
}

// NumberOfLevel1Entries counts the distinct K1 values present.
func (d *Data) NumberOfLevel1Entries() int {
	seen := make(map[int]struct{})
	for k := range d.entries {
		seen[k.K1] = struct{}{}
	}
	return len(seen)
}

// Len returns the number of populated tuples.
func (d *Data) Len() int { return len(d.entries) }

// Keys returns the populated tuples in ascending order.
func (d *Data) Keys() []Key {
	keys := make([]Key, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Counters returns a copy of the counters at k, or nil.
func (d *Data) Counters(k Key) map[string]int {
	c, ok := d.entries[k]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(c))
	for name, v := range c {
		out[name] = v
	}
	return out
}

// Clone returns a mutable deep copy.
func (d *Data) Clone() *Data {
	out := &Data{dims: d.dims, entries: make(map[Key]map[string]int, len(d.entries))}
	for k, c := range d.entries {
		cc := make(map[string]int, len(c))
		for name, v := range c {
			cc[name] = v
		}
		out.entries[k] = cc
	}
	return out
}

func (d *Data) freeze() *Data {
	d.frozen = true
	return d
}

type wireEntry struct {
	Key      []int          `json:"key"`
	Counters map[string]int `json:"counters"`
}

type wireData struct {
	Dims    int         `json:"dims"`
	Entries []wireEntry `json:"entries"`
}

// MarshalJSON encodes entries in key order so equal data encodes equally.
func (d *Data) MarshalJSON() ([]byte, error) {
	w := wireData{Dims: d.dims, Entries: make([]wireEntry, 0, len(d.entries))}
	for _, k := range d.Keys() {
		key := []int{k.K1, k.K2}
		if d.dims == 3 {
			key = append(key, k.K3)
		}
		w.Entries = append(w.Entries, wireEntry{Key: key, Counters: d.entries[k]})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes data written by MarshalJSON.
func (d *Data) UnmarshalJSON(b []byte) error {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Dims != 2 && w.Dims != 3 {
		return fmt.Errorf("featurestore: unsupported dims %d", w.Dims)
	}
	out := NewData(w.Dims)
	for _, e := range w.Entries {
		if len(e.Key) != w.Dims {
			return fmt.Errorf("%w: key %v has %d buckets, want %d", ErrInvalidKey, e.Key, len(e.Key), w.Dims)
		}
		k := Key{K1: e.Key[0], K2: e.Key[1]}
		if w.Dims == 3 {
			k.K3 = e.Key[2]
		}
		for name, v := range e.Counters {
			if err := out.Set(k, name, v); err != nil {
				return err
			}
		}
	}
	*d = *out
	return nil
}
