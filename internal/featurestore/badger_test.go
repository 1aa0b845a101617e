// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package featurestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(Options{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_GetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	d, err := s.Get(context.Background(), FeatureSpeedOverGround, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d != nil {
		t.Errorf("expected nil data, got %v", d)
	}
}

func TestBadgerStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := NewData(3)
	_ = in.Set(Key3(1, 2, 3), CounterShipCount, 1999)
	_ = in.Set(Key3(0, 2, 3), CounterShipCount, 1)

	if err := s.Put(ctx, FeatureSpeedOverGround, 7, in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// the stored value is a private copy
	_ = in.Set(Key3(1, 2, 3), CounterShipCount, 0)

	got, err := s.Get(ctx, FeatureSpeedOverGround, 7)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if v, _ := got.Value(Key3(1, 2, 3), CounterShipCount); v != 1999 {
		t.Errorf("Value = %d, want 1999", v)
	}
	if got.SumFor(CounterShipCount) != 2000 {
		t.Errorf("SumFor = %d, want 2000", got.SumFor(CounterShipCount))
	}
	if _, ok := got.Value(Key3(5, 5, 5), CounterShipCount); ok {
		t.Error("unpopulated combination should be absent")
	}
	if !got.Frozen() {
		t.Error("snapshot should be frozen")
	}

	// other features and cells are unaffected
	if d, _ := s.Get(ctx, FeatureCourseOverGround, 7); d != nil {
		t.Error("unexpected data under other feature")
	}
	if d, _ := s.Get(ctx, FeatureSpeedOverGround, 8); d != nil {
		t.Error("unexpected data under other cell")
	}
}

func TestBadgerStore_PutReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := NewData(2)
	_ = first.Set(Key2(1, 1), CounterShipCount, 5)
	second := NewData(2)
	_ = second.Set(Key2(2, 2), CounterShipCount, 3)

	// a miss is cached before the first write
	if d, _ := s.Get(ctx, FeatureShipTypeAndSize, 1); d != nil {
		t.Fatal("expected miss")
	}
	if err := s.Put(ctx, FeatureShipTypeAndSize, 1, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, FeatureShipTypeAndSize, 1, second); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, FeatureShipTypeAndSize, 1)
	if got == nil {
		t.Fatal("expected data")
	}
	if _, ok := got.Value(Key2(1, 1), CounterShipCount); ok {
		t.Error("Put should replace, not merge")
	}
	if v, _ := got.Value(Key2(2, 2), CounterShipCount); v != 3 {
		t.Errorf("Value = %d, want 3", v)
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(Options{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	d := NewData(3)
	_ = d.Set(Key3(3, 2, 1), CounterShipCount, 12)
	if err := s.Put(ctx, FeatureCourseOverGround, -5, d); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := OpenBadger(Options{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, FeatureCourseOverGround, -5)
	if err != nil || got == nil {
		t.Fatalf("Get after reopen = %v, %v", got, err)
	}
	if v, _ := got.Value(Key3(3, 2, 1), CounterShipCount); v != 12 {
		t.Errorf("Value = %d, want 12", v)
	}
}

func TestBadgerStore_Enumeration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := NewData(3)
	_ = d.Set(Key3(0, 0, 0), CounterShipCount, 1)

	for _, cell := range []int64{30, -2, 5} {
		if err := s.Put(ctx, FeatureSpeedOverGround, cell, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Put(ctx, FeatureCourseOverGround, 1, d); err != nil {
		t.Fatal(err)
	}

	cells, err := s.CellIDs(ctx, FeatureSpeedOverGround)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{-2, 5, 30}, cells); diff != "" {
		t.Errorf("CellIDs (-want +got):\n%s", diff)
	}

	names, err := s.FeatureNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{FeatureCourseOverGround, FeatureSpeedOverGround}, names); diff != "" {
		t.Errorf("FeatureNames (-want +got):\n%s", diff)
	}
}

func TestBadgerStore_InvalidName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "", 1); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Get err = %v", err)
	}
	if err := s.Put(ctx, "bad\x00name", 1, NewData(2)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Put err = %v", err)
	}
}

func TestBadgerStore_CanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Get(ctx, FeatureSpeedOverGround, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBadgerStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				d := NewData(3)
				_ = d.Set(Key3(0, 0, 0), CounterShipCount, i)
				_ = d.Set(Key3(1, 0, 0), CounterShipCount, i)
				if err := s.Put(ctx, FeatureSpeedOverGround, int64(w%2), d); err != nil {
					t.Errorf("Put: %v", err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d, err := s.Get(ctx, FeatureSpeedOverGround, int64(r%2))
				if err != nil {
					t.Errorf("Get: %v", err)
					return
				}
				if d == nil {
					continue
				}
				// a snapshot is always internally consistent
				a, _ := d.Value(Key3(0, 0, 0), CounterShipCount)
				b, _ := d.Value(Key3(1, 0, 0), CounterShipCount)
				if a != b {
					t.Errorf("torn snapshot: %d != %d", a, b)
					return
				}
			}
		}(r)
	}
	wg.Wait()

	// after all writers finish the cache agrees with the database
	for cell := int64(0); cell < 2; cell++ {
		cached, _ := s.Get(ctx, FeatureSpeedOverGround, cell)
		fromDB, err := s.read(FeatureSpeedOverGround, cell)
		if err != nil {
			t.Fatal(err)
		}
		a, _ := cached.Value(Key3(0, 0, 0), CounterShipCount)
		b, _ := fromDB.Value(Key3(0, 0, 0), CounterShipCount)
		if a != b {
			t.Errorf("cell %d: cache %d, db %d", cell, a, b)
		}
	}
}
