// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Command featurectl inspects and loads the Seawatch feature store offline.
// Stop seawatch first: BadgerDB allows one process per directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/featurestore"
	"github.com/tomtom215/seawatch/internal/logging"
)

func main() {
	path := flag.String("path", "", "Feature store directory (default: featurestore.path from configuration)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	logging.Init(logging.Config{Level: "warn", Format: "console", Output: os.Stderr})

	if *path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "featurectl: %v\n", err)
			os.Exit(1)
		}
		*path = cfg.FeatureStore.Path
	}

	store, err := featurestore.OpenBadger(featurestore.Options{Path: *path, SyncWrites: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "featurectl: %v\n", err)
		os.Exit(1)
	}

	c := &cli{store: store, out: os.Stdout, in: os.Stdin}
	runErr := c.run(context.Background(), flag.Arg(0), flag.Args()[1:])
	if err := store.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "featurectl: %v\n", runErr)
		var ue usageError
		if errors.As(runErr, &ue) {
			printUsage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `featurectl - offline tool for the Seawatch feature store

Usage: featurectl [-path <dir>] <command> [options]

Commands:
  features                               List stored feature names
  cells   -feature <name>                List cell ids holding a feature
  dump    -feature <name> -cell <id>     Print one histogram as JSON
  import  -feature <name> -cell <id> -file <path|->
                                         Replace one histogram from JSON
  help                                   Show this help message

Examples:
  featurectl -path /data/features features
  featurectl cells -feature SpeedOverGroundStatistic
  featurectl dump -feature SpeedOverGroundStatistic -cell 1802457
  featurectl import -feature SpeedOverGroundStatistic -cell 1802457 -file sog.json
`)
}

// usageError is returned for bad command lines.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }
