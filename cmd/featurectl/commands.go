// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/seawatch/internal/featurestore"
)

type cli struct {
	store featurestore.Store
	out   io.Writer
	in    io.Reader
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "features":
		return c.features(ctx)
	case "cells":
		return c.cells(ctx, args)
	case "dump":
		return c.dump(ctx, args)
	case "import":
		return c.importData(ctx, args)
	case "help":
		printUsage()
		return nil
	default:
		return usageError{msg: fmt.Sprintf("unknown command %q", command)}
	}
}

func (c *cli) features(ctx context.Context) error {
	names, err := c.store.FeatureNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(c.out, n)
	}
	return nil
}

func (c *cli) cells(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cells", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	feature := fs.String("feature", "", "Feature name (required)")
	if err := fs.Parse(args); err != nil {
		return usageError{msg: err.Error()}
	}
	if *feature == "" {
		return usageError{msg: "cells: -feature is required"}
	}

	ids, err := c.store.CellIDs(ctx, *feature)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(c.out, id)
	}
	return nil
}

// cellFlags parses the -feature and -cell flags shared by dump and import.
func cellFlags(name string, args []string, extra func(*flag.FlagSet)) (string, int64, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	feature := fs.String("feature", "", "Feature name (required)")
	cell := fs.Int64("cell", -1, "Cell id (required)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", 0, usageError{msg: err.Error()}
	}
	if *feature == "" || *cell < 0 {
		return "", 0, usageError{msg: name + ": -feature and -cell are required"}
	}
	return *feature, *cell, nil
}

func (c *cli) dump(ctx context.Context, args []string) error {
	feature, cell, err := cellFlags("dump", args, nil)
	if err != nil {
		return err
	}
	data, err := c.store.Get(ctx, feature, cell)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("no %s data for cell %d", feature, cell)
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\n", b)
	return nil
}

func (c *cli) importData(ctx context.Context, args []string) error {
	var file string
	feature, cell, err := cellFlags("import", args, func(fs *flag.FlagSet) {
		fs.StringVar(&file, "file", "", "JSON file, or - for stdin (required)")
	})
	if err != nil {
		return err
	}
	if file == "" {
		return usageError{msg: "import: -file is required"}
	}

	var raw []byte
	if file == "-" {
		raw, err = io.ReadAll(c.in)
	} else {
		raw, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var data featurestore.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}
	if err := c.store.Put(ctx, feature, cell, &data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "imported %s cell %d: %d tuples, %d ships\n",
		feature, cell, data.Len(), data.SumFor(featurestore.CounterShipCount))
	return nil
}
