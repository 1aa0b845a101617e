// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/metrics"
)

// Layer names a branch of the tree. Each layer restarts independently.
type Layer string

const (
	// LayerPipeline holds the notification dispatcher and the staleness sweeper.
	LayerPipeline Layer = "pipeline"
	// LayerMessaging holds report ingest and the websocket hub.
	LayerMessaging Layer = "messaging"
	// LayerAPI holds the HTTP server.
	LayerAPI Layer = "api"
)

// Layers in start order.
var Layers = []Layer{LayerPipeline, LayerMessaging, LayerAPI}

// TreeConfig holds restart policy shared by every layer.
type TreeConfig struct {
	// FailureThreshold failures (decaying) put a layer into backoff.
	FailureThreshold float64
	// FailureDecay is the failure half-life in seconds.
	FailureDecay   float64
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// TreeConfigFrom converts the supervisor section of the application config.
func TreeConfigFrom(cfg config.SupervisorConfig) TreeConfig {
	return TreeConfig{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		ShutdownTimeout:  cfg.ShutdownTimeout,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	def := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = def.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = def.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the process supervision hierarchy: a root with one
// child supervisor per Layer. A broker outage restarting the ingest
// consumer leaves the sweeper and the read API running.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	names  map[Layer][]string
	config TreeConfig
}

// NewSupervisorTree builds the tree. Zero config fields take defaults.
// Supervisor events are logged through logger and failures are counted in
// metrics.SupervisorServiceFailures.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	logHook := (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &SupervisorTree{
		root:   suture.New("seawatch", config.spec(countingHook(logHook))),
		layers: make(map[Layer]*suture.Supervisor, len(Layers)),
		names:  make(map[Layer][]string, len(Layers)),
		config: config,
	}
	// children inherit the root's event hook
	for _, layer := range Layers {
		sup := suture.New(layerSupervisorName(layer), config.spec(nil))
		t.layers[layer] = sup
		t.root.Add(sup)
	}
	return t, nil
}

func layerSupervisorName(l Layer) string { return string(l) + "-layer" }

// layerOf maps a supervisor name from an event back to its layer.
func layerOf(supervisorName string) string {
	if l, ok := strings.CutSuffix(supervisorName, "-layer"); ok {
		return l
	}
	return supervisorName
}

// countingHook records service failures per layer and forwards every event
// to next.
func countingHook(next suture.EventHook) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventServiceTerminate:
			metrics.SupervisorServiceFailures.WithLabelValues(layerOf(ev.SupervisorName), ev.ServiceName, "terminate").Inc()
		case suture.EventServicePanic:
			metrics.SupervisorServiceFailures.WithLabelValues(layerOf(ev.SupervisorName), ev.ServiceName, "panic").Inc()
		}
		next(e)
	}
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add places svc in layer.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("supervisor: unknown layer %q", layer)
	}
	t.names[layer] = append(t.names[layer], fmt.Sprint(svc))
	return sup.Add(svc), nil
}

func (t *SupervisorTree) mustAdd(layer Layer, svc suture.Service) suture.ServiceToken {
	token, err := t.Add(layer, svc)
	if err != nil {
		panic(err)
	}
	return token
}

// AddPipelineService adds a service to the pipeline layer.
func (t *SupervisorTree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.mustAdd(LayerPipeline, svc)
}

// AddMessagingService adds a service to the messaging layer.
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.mustAdd(LayerMessaging, svc)
}

// AddAPIService adds a service to the API layer.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.mustAdd(LayerAPI, svc)
}

// Services returns the names of the services added to each layer, in the
// order they were added.
func (t *SupervisorTree) Services() map[Layer][]string {
	out := make(map[Layer][]string, len(t.names))
	for layer, names := range t.names {
		out[layer] = append([]string(nil), names...)
	}
	return out
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result when the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that outlived the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
