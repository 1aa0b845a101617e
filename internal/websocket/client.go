// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/seawatch/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// clientIDCounter gives clients a stable broadcast order.
var clientIDCounter atomic.Uint64

// inbound is a frame sent by a client.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is one browser connection. It receives event transitions that
// match its Filter and may change the filter at any time.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	filter atomic.Pointer[Filter]
	logger zerolog.Logger
}

// NewClient wraps conn. Register it with the hub before calling Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := clientIDCounter.Add(1)
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: logging.WithComponent("websocket-client").With().Uint64("client_id", id).Logger(),
	}
}

// ID returns the client's identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Filter returns the active subscription, nil when the client receives
// everything.
func (c *Client) Filter() *Filter {
	return c.filter.Load()
}

func (c *Client) accepts(msg Message) bool {
	return c.filter.Load().Match(msg)
}

// reply queues a direct response without blocking the read loop.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// handle processes one client frame.
func (c *Client) handle(in inbound) {
	switch in.Type {
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})

	case MessageTypeSubscribe:
		var f Filter
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &f); err != nil {
				c.reply(errorMessage("invalid subscription: " + err.Error()))
				return
			}
		}
		if err := f.Validate(); err != nil {
			c.reply(errorMessage(err.Error()))
			return
		}
		c.filter.Store(&f)
		c.logger.Debug().Int("kinds", len(f.Kinds)).Int("mmsi", len(f.MMSIs)).Msg("Subscription updated")
		c.reply(Message{Type: MessageTypeSubscribed, Data: f})

	case MessageTypeUnsubscribe:
		c.filter.Store(nil)
		c.reply(Message{Type: MessageTypeSubscribed, Data: Filter{}})

	default:
		c.reply(errorMessage("unknown message type " + in.Type))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.reply(errorMessage("malformed frame"))
			continue
		}
		c.handle(in)
	}
}

// writePump drains send and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := MarshalMessage(msg)
			if err != nil {
				c.logger.Error().Err(err).Str("message_type", msg.Type).Msg("Failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
