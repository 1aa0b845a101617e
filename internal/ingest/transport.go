// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package ingest

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/seawatch/internal/config"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
	natsAckWait       = 30 * time.Second
	natsMaxDeliver    = 5
	natsMaxAckPending = 1000
)

// PubSub is a publisher and subscriber pair for one transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides.
func (p *PubSub) Close() error {
	perr := p.Publisher.Close()
	serr := p.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// NewGoChannel returns an in-process pub/sub. The same value serves both
// sides.
func NewGoChannel(logger watermill.LoggerAdapter) *PubSub {
	gc := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
	}, logger)
	return &PubSub{Publisher: gc, Subscriber: gc}
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("seawatch"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsMaxReconnects),
		natsgo.ReconnectWait(natsReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

// NewNATS connects a JetStream publisher and durable subscriber to url.
func NewNATS(url string, cfg config.IngestConfig, logger watermill.LoggerAdapter) (*PubSub, error) {
	opts := natsOptions(logger)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   natsAckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      opts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(natsMaxDeliver),
				natsgo.MaxAckPending(natsMaxAckPending),
				natsgo.AckWait(natsAckWait),
				natsgo.DeliverNew(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return &PubSub{Publisher: pub, Subscriber: sub}, nil
}
