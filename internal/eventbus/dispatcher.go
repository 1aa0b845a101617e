// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package eventbus is a typed in-process notification dispatcher.
//
// Handlers subscribe to a Topic and are invoked in registration order. A run
// of consecutive handlers marked Concurrent is delivered in parallel; a
// handler without the flag runs alone. With Workers > 0 messages are queued
// and delivered by a worker pool partitioned on Message.PartitionKey, so all
// messages for one key are delivered in publish order. With Workers == 0
// Publish delivers inline and returns the handlers' errors.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("eventbus: dispatcher closed")

// Topic names a notification type.
type Topic string

// Message is a notification.
type Message interface {
	Topic() Topic
	// PartitionKey selects the worker; messages with equal keys keep order.
	PartitionKey() int64
}

// HandlerFunc processes one message.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handler is a named subscriber.
type Handler struct {
	Name string
	// Concurrent allows delivery in parallel with adjacent concurrent handlers.
	Concurrent bool
	Handle     HandlerFunc
}

// Config configures a Dispatcher.
type Config struct {
	// Workers is the pool size. 0 delivers synchronously inside Publish.
	Workers int
	// QueueSize is the total buffered capacity shared across workers.
	QueueSize int
}

type envelope struct {
	ctx context.Context
	msg Message
}

// Dispatcher routes messages to the handlers of their topic.
type Dispatcher struct {
	cfg Config

	hmu      sync.RWMutex
	handlers map[Topic][]Handler

	// mu guards closed and the queues against Publish racing Close.
	mu     sync.RWMutex
	closed bool
	queues []chan envelope
	wg     sync.WaitGroup
}

// New creates a dispatcher and starts its workers.
func New(cfg Config) *Dispatcher {
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	d := &Dispatcher{
		cfg:      cfg,
		handlers: make(map[Topic][]Handler),
	}
	if cfg.Workers == 0 {
		return d
	}

	per := cfg.QueueSize / cfg.Workers
	if per < 1 {
		per = 1
	}
	d.queues = make([]chan envelope, cfg.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan envelope, per)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}
	return d
}

// Subscribe appends h to the handlers of topic.
func (d *Dispatcher) Subscribe(topic Topic, h Handler) {
	if h.Handle == nil {
		panic(fmt.Sprintf("eventbus: nil handler %q for topic %s", h.Name, topic))
	}
	d.hmu.Lock()
	defer d.hmu.Unlock()
	d.handlers[topic] = append(d.handlers[topic], h)

	logging.Debug().
		Str("topic", string(topic)).
		Str("handler", h.Name).
		Bool("concurrent", h.Concurrent).
		Msg("Handler subscribed")
}

// Handlers returns the names of the handlers subscribed to topic.
func (d *Dispatcher) Handlers(topic Topic) []string {
	d.hmu.RLock()
	defer d.hmu.RUnlock()
	names := make([]string, len(d.handlers[topic]))
	for i, h := range d.handlers[topic] {
		names[i] = h.Name
	}
	return names
}

// Synchronous reports whether Publish delivers inline.
func (d *Dispatcher) Synchronous() bool {
	return d.cfg.Workers == 0
}

// Publish delivers msg. In pooled mode it blocks while the target queue is
// full and returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Publish(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	if d.cfg.Workers == 0 {
		return d.deliver(ctx, msg)
	}

	q := d.queues[partition(msg.PartitionKey(), len(d.queues))]
	select {
	case q <- envelope{ctx: ctx, msg: msg}:
		metrics.DispatchQueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func partition(key int64, n int) int {
	p := key % int64(n)
	if p < 0 {
		p = -p
	}
	return int(p)
}

func (d *Dispatcher) worker(q <-chan envelope) {
	defer d.wg.Done()
	for env := range q {
		metrics.DispatchQueueDepth.Dec()
		// queued messages are delivered even if the publisher's context ended
		_ = d.deliver(context.WithoutCancel(env.ctx), env.msg)
	}
}

// deliver runs the handlers of msg's topic and joins their errors.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	d.hmu.RLock()
	hs := d.handlers[msg.Topic()]
	d.hmu.RUnlock()

	var errs []error
	for i := 0; i < len(hs); {
		if !hs[i].Concurrent {
			if err := d.invoke(ctx, hs[i], msg); err != nil {
				errs = append(errs, err)
			}
			i++
			continue
		}

		j := i
		for j < len(hs) && hs[j].Concurrent {
			j++
		}
		group := hs[i:j]
		groupErrs := make([]error, len(group))
		var wg sync.WaitGroup
		for k, h := range group {
			wg.Add(1)
			go func(k int, h Handler) {
				defer wg.Done()
				groupErrs[k] = d.invoke(ctx, h, msg)
			}(k, h)
		}
		wg.Wait()
		for _, err := range groupErrs {
			if err != nil {
				errs = append(errs, err)
			}
		}
		i = j
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", h.Name, r)
			logging.Error().
				Str("topic", string(msg.Topic())).
				Str("handler", h.Name).
				Str("stack", string(debug.Stack())).
				Msgf("Handler panic: %v", r)
			metrics.DispatchHandlerErrors.WithLabelValues(string(msg.Topic()), h.Name).Inc()
		}
	}()

	if err = h.Handle(ctx, msg); err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("topic", string(msg.Topic())).
			Str("handler", h.Name).
			Int64("key", msg.PartitionKey()).
			Msg("Handler failed")
		metrics.DispatchHandlerErrors.WithLabelValues(string(msg.Topic()), h.Name).Inc()
		return fmt.Errorf("%s: %w", h.Name, err)
	}
	return nil
}

// Close stops accepting messages and waits for queued messages to be
// delivered, or for ctx to end. It is safe to call more than once.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	start := time.Now()
	select {
	case <-done:
		logging.Info().Dur("drain", time.Since(start)).Msg("Dispatcher drained")
		return nil
	case <-ctx.Done():
		logging.Warn().Err(ctx.Err()).Msg("Dispatcher drain interrupted")
		return ctx.Err()
	}
}

// RunWithContext blocks until ctx is canceled and then drains the queues
// within drainTimeout.
func (d *Dispatcher) RunWithContext(ctx context.Context, drainTimeout time.Duration) error {
	<-ctx.Done()
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := d.Close(drainCtx); err != nil {
		return err
	}
	return ctx.Err()
}
