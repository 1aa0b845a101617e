// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tomtom215/seawatch/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService binds addr and serves the API under supervision. The
// listener is re-bound on every restart. On cancellation the server is
// drained for up to shutdownTimeout.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	bound           atomic.Pointer[string]
}

// NewHTTPServerService wraps server listening on addr. shutdownTimeout <= 0
// defaults to 10s.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Addr returns the bound address while serving, or "".
func (h *HTTPServerService) Addr() string {
	if p := h.bound.Load(); p != nil {
		return *p
	}
	return ""
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	bound := ln.Addr().String()
	h.bound.Store(&bound)
	defer h.bound.Store(nil)

	logging.Info().Str("addr", bound).Msg("API listening")

	done := make(chan error, 1)
	go func() { done <- h.server.Serve(ln) }()

	select {
	case err := <-done:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)

	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		shutdownErr := h.server.Shutdown(drainCtx)
		<-done
		if shutdownErr != nil {
			return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
		}
		logging.Info().Str("addr", bound).Msg("API stopped")
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
