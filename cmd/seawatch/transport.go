// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package main

import (
	"github.com/tomtom215/seawatch/internal/config"
	"github.com/tomtom215/seawatch/internal/ingest"
	"github.com/tomtom215/seawatch/internal/logging"
)

// newTransport builds the report pub/sub for cfg.Ingest.Mode. cleanup
// closes the pub/sub and stops an embedded server; it is safe to call once
// after the supervisor tree has stopped.
func newTransport(cfg *config.Config) (*ingest.PubSub, func(), error) {
	logger := logging.NewWatermillAdapter()

	if cfg.Ingest.Mode == "gochannel" {
		ps := ingest.NewGoChannel(logger)
		logging.Info().Str("topic", cfg.Ingest.Topic).Msg("In-process report transport")
		return ps, func() { closePubSub(ps) }, nil
	}

	url := cfg.Ingest.NATSURL
	var embedded *ingest.EmbeddedServer
	if cfg.Ingest.EmbeddedServer {
		var err error
		embedded, err = ingest.StartEmbeddedServer(cfg.Ingest.StoreDir)
		if err != nil {
			return nil, nil, err
		}
		url = embedded.ClientURL()
		logging.Info().
			Str("url", url).
			Bool("jetstream", embedded.JetStreamEnabled()).
			Msg("Embedded NATS server started")
	}

	ps, err := ingest.NewNATS(url, cfg.Ingest, logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, nil, err
	}
	logging.Info().Str("url", url).Str("topic", cfg.Ingest.Topic).Msg("NATS JetStream report transport")

	return ps, func() {
		closePubSub(ps)
		if embedded != nil {
			embedded.Shutdown()
		}
	}, nil
}

func closePubSub(ps *ingest.PubSub) {
	if err := ps.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing report transport")
	}
}
