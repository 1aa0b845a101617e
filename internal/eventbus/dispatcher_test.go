// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package eventbus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testTopic Topic = "test.ping"

type ping struct {
	key int64
	seq int
}

func (ping) Topic() Topic          { return testTopic }
func (p ping) PartitionKey() int64 { return p.key }

type other struct{}

func (other) Topic() Topic        { return "test.other" }
func (other) PartitionKey() int64 { return 0 }

func TestDispatcher_SyncOrder(t *testing.T) {
	d := New(Config{})
	var mu sync.Mutex
	var calls []string
	record := func(name string) HandlerFunc {
		return func(ctx context.Context, msg Message) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return nil
		}
	}
	d.Subscribe(testTopic, Handler{Name: "a", Handle: record("a")})
	d.Subscribe(testTopic, Handler{Name: "b", Handle: record("b")})
	d.Subscribe(testTopic, Handler{Name: "c", Handle: record("c")})

	if !d.Synchronous() {
		t.Fatal("Workers=0 should be synchronous")
	}
	if err := d.Publish(context.Background(), ping{key: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(calls) != 3 || calls[0] != "a" || calls[1] != "b" || calls[2] != "c" {
		t.Errorf("calls = %v, want [a b c]", calls)
	}
	if got := d.Handlers(testTopic); len(got) != 3 {
		t.Errorf("Handlers = %v", got)
	}
}

func TestDispatcher_TopicIsolation(t *testing.T) {
	d := New(Config{})
	var n atomic.Int32
	d.Subscribe(testTopic, Handler{Name: "count", Handle: func(context.Context, Message) error {
		n.Add(1)
		return nil
	}})
	if err := d.Publish(context.Background(), other{}); err != nil {
		t.Fatal(err)
	}
	if n.Load() != 0 {
		t.Error("handler received a message for another topic")
	}
}

func TestDispatcher_ConcurrentGroupRunsInParallel(t *testing.T) {
	d := New(Config{})
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})

	blocker := func(ctx context.Context, msg Message) error {
		started.Done()
		<-release
		return nil
	}
	d.Subscribe(testTopic, Handler{Name: "x", Concurrent: true, Handle: blocker})
	d.Subscribe(testTopic, Handler{Name: "y", Concurrent: true, Handle: blocker})

	done := make(chan error, 1)
	go func() { done <- d.Publish(context.Background(), ping{}) }()

	// both handlers must be in flight at once for this to return
	waitCh := make(chan struct{})
	go func() {
		started.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent handlers were not started together")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestDispatcher_ErrorsAndPanics(t *testing.T) {
	d := New(Config{})
	boom := errors.New("boom")
	var after atomic.Bool

	d.Subscribe(testTopic, Handler{Name: "fails", Handle: func(context.Context, Message) error { return boom }})
	d.Subscribe(testTopic, Handler{Name: "panics", Handle: func(context.Context, Message) error { panic("bad") }})
	d.Subscribe(testTopic, Handler{Name: "after", Handle: func(context.Context, Message) error {
		after.Store(true)
		return nil
	}})

	err := d.Publish(context.Background(), ping{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want to wrap boom", err)
	}
	if err == nil || !containsAll(err.Error(), "fails", "panics") {
		t.Errorf("err = %v, want both handler names", err)
	}
	if !after.Load() {
		t.Error("a failing handler must not stop later handlers")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestDispatcher_PooledPreservesPerKeyOrder(t *testing.T) {
	d := New(Config{Workers: 4, QueueSize: 64})

	var mu sync.Mutex
	seen := make(map[int64][]int)
	d.Subscribe(testTopic, Handler{Name: "collect", Handle: func(ctx context.Context, msg Message) error {
		p := msg.(ping)
		mu.Lock()
		seen[p.key] = append(seen[p.key], p.seq)
		mu.Unlock()
		return nil
	}})

	ctx := context.Background()
	for seq := 0; seq < 100; seq++ {
		for key := int64(-3); key < 7; key++ {
			if err := d.Publish(ctx, ping{key: key, seq: seq}); err != nil {
				t.Fatalf("Publish: %v", err)
			}
		}
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(seen) != 10 {
		t.Fatalf("got %d keys, want 10", len(seen))
	}
	for key, seqs := range seen {
		if len(seqs) != 100 {
			t.Errorf("key %d: %d messages, want 100", key, len(seqs))
			continue
		}
		for i, s := range seqs {
			if s != i {
				t.Errorf("key %d out of order at %d: %d", key, i, s)
				break
			}
		}
	}
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	for _, workers := range []int{0, 2} {
		d := New(Config{Workers: workers})
		if err := d.Close(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := d.Publish(context.Background(), ping{}); !errors.Is(err, ErrClosed) {
			t.Errorf("workers=%d: err = %v, want ErrClosed", workers, err)
		}
		if err := d.Close(context.Background()); err != nil {
			t.Errorf("second Close: %v", err)
		}
	}
}

func TestDispatcher_PublishBlocksUntilContextDone(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	d.Subscribe(testTopic, Handler{Name: "slow", Handle: func(context.Context, Message) error {
		<-release
		return nil
	}})
	defer func() {
		close(release)
		_ = d.Close(context.Background())
	}()

	ctx := context.Background()
	_ = d.Publish(ctx, ping{}) // picked up by the worker
	_ = d.Publish(ctx, ping{}) // fills the single queue slot

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := d.Publish(short, ping{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDispatcher_RunWithContextDrains(t *testing.T) {
	d := New(Config{Workers: 2, QueueSize: 16})
	var n atomic.Int32
	d.Subscribe(testTopic, Handler{Name: "count", Handle: func(context.Context, Message) error {
		time.Sleep(time.Millisecond)
		n.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 10; i++ {
		if err := d.Publish(ctx, ping{key: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	cancel()

	if err := d.RunWithContext(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want Canceled", err)
	}
	if n.Load() != 10 {
		t.Errorf("delivered %d, want 10", n.Load())
	}
}

func TestPartition(t *testing.T) {
	for _, key := range []int64{-9, -1, 0, 1, 8, 1 << 40} {
		p := partition(key, 4)
		if p < 0 || p >= 4 {
			t.Errorf("partition(%d) = %d", key, p)
		}
	}
}
