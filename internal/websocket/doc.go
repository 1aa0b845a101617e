// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package websocket pushes abnormal event transitions to connected clients.
//
// The Hub implements the behavior manager's broadcaster. Every raise,
// maintain and lower is sent as a Message whose Data is the event:
//
//	{"type":"event_raised","data":{"id":"...","kind":"SpeedOverGround",...}}
//
// Clients may send {"type":"ping"} and receive {"type":"pong"}. A client
// narrows what it receives with
//
//	{"type":"subscribe","data":{"kinds":["SpeedOverGround"],"mmsi":[219000001]}}
//
// and is answered with "subscribed" or "error". "unsubscribe" restores the
// full stream. A client that cannot keep up with broadcasts is
// disconnected rather than slowing the hub.
package websocket
