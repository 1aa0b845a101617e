// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestLRU_GetAdd(t *testing.T) {
	c := NewLRU[string, int](3, 0)
	c.Add("a", 1)
	c.Add("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if _, ok := c.Get("z"); ok {
		t.Error("unexpected hit for z")
	}
	c.Add("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) after replace = %d, want 10", v)
	}
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int, string](3, 0)
	c.Add(1, "a")
	c.Add(2, "b")
	c.Add(3, "c")
	c.Get(1)
	c.Add(4, "d")

	if _, ok := c.Get(2); ok {
		t.Error("expected 2 to be evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %d present", k)
		}
	}
	if _, _, ev, size := c.Stats(); ev != 1 || size != 3 {
		t.Errorf("evictions = %d, size = %d", ev, size)
	}
}

func TestLRU_TTL(t *testing.T) {
	c := NewLRU[string, int](10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Add("k", 1)
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestLRU_AddIfAbsent(t *testing.T) {
	c := NewLRU[string, int](10, 0)

	v, loaded := c.AddIfAbsent("k", 1)
	if loaded || v != 1 {
		t.Errorf("first AddIfAbsent = %d, %v", v, loaded)
	}
	v, loaded = c.AddIfAbsent("k", 2)
	if !loaded || v != 1 {
		t.Errorf("second AddIfAbsent = %d, %v; want existing 1", v, loaded)
	}
	c.Remove("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected k removed")
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int, int](100, 0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Add(g*1000+i, i)
				c.Get(g*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 100 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
