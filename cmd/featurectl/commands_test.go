// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/seawatch/internal/featurestore"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	store, err := featurestore.OpenBadger(featurestore.Options{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	out := &bytes.Buffer{}
	return &cli{store: store, out: out, in: strings.NewReader("")}, out
}

const sogJSON = `{"dims":3,"entries":[
  {"key":[1,3,3],"counters":{"shipCount":40}},
  {"key":[1,3,4],"counters":{"shipCount":960}}
]}`

func TestImportDumpRoundTrip(t *testing.T) {
	c, out := newTestCLI(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "sog.json")
	if err := os.WriteFile(file, []byte(sogJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	err := c.run(ctx, "import", []string{"-feature", featurestore.FeatureSpeedOverGround, "-cell", "42", "-file", file})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "2 tuples, 1000 ships") {
		t.Errorf("import output = %q", out.String())
	}

	out.Reset()
	if err := c.run(ctx, "features", nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != featurestore.FeatureSpeedOverGround {
		t.Errorf("features = %q", got)
	}

	out.Reset()
	if err := c.run(ctx, "cells", []string{"-feature", featurestore.FeatureSpeedOverGround}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "42" {
		t.Errorf("cells = %q", got)
	}

	out.Reset()
	if err := c.run(ctx, "dump", []string{"-feature", featurestore.FeatureSpeedOverGround, "-cell", "42"}); err != nil {
		t.Fatal(err)
	}
	var want, got featurestore.Data
	if err := want.UnmarshalJSON([]byte(sogJSON)); err != nil {
		t.Fatal(err)
	}
	if err := got.UnmarshalJSON(out.Bytes()); err != nil {
		t.Fatalf("dump output does not decode: %v", err)
	}
	for _, k := range want.Keys() {
		if diff := cmp.Diff(want.Counters(k), got.Counters(k)); diff != "" {
			t.Errorf("key %v (-want +got):\n%s", k, diff)
		}
	}
}

func TestImportFromStdin(t *testing.T) {
	c, _ := newTestCLI(t)
	c.in = strings.NewReader(sogJSON)
	ctx := context.Background()

	if err := c.run(ctx, "import", []string{"-feature", "f", "-cell", "7", "-file", "-"}); err != nil {
		t.Fatalf("import: %v", err)
	}
	d, err := c.store.Get(ctx, "f", 7)
	if err != nil || d == nil {
		t.Fatalf("Get = %v, %v", d, err)
	}
	if v, _ := d.Value(featurestore.Key3(1, 3, 4), featurestore.CounterShipCount); v != 960 {
		t.Errorf("shipCount = %d, want 960", v)
	}
}

func TestUsageErrors(t *testing.T) {
	c, _ := newTestCLI(t)
	ctx := context.Background()

	tests := []struct {
		command string
		args    []string
	}{
		{"bogus", nil},
		{"cells", nil},
		{"dump", []string{"-feature", "f"}},
		{"import", []string{"-feature", "f", "-cell", "1"}},
		{"dump", []string{"-nope"}},
	}
	for _, tt := range tests {
		err := c.run(ctx, tt.command, tt.args)
		var ue usageError
		if !errors.As(err, &ue) {
			t.Errorf("%s %v: err = %v, want usageError", tt.command, tt.args, err)
		}
	}
}

func TestDumpMissingCell(t *testing.T) {
	c, _ := newTestCLI(t)
	err := c.run(context.Background(), "dump", []string{"-feature", "f", "-cell", "9"})
	if err == nil || !strings.Contains(err.Error(), "no f data for cell 9") {
		t.Errorf("err = %v", err)
	}
}
