// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

/*
Package api serves the Seawatch HTTP interface on a chi router.

Routes:

	GET  /health                      component status
	GET  /health/live                 liveness check
	GET  /health/ready                readiness check (503 until ready)
	GET  /metrics                     Prometheus exposition
	GET  /api/v1/tracks               live tracks, ordered by mmsi
	GET  /api/v1/tracks/{mmsi}        one live track
	POST /api/v1/reports              submit JSON reports to the ingest topic
	GET  /api/v1/events?from=&to=     events active in a time range (RFC3339)
	GET  /api/v1/events/recent?limit= newest events first
	GET  /api/v1/events/kinds         per-kind totals
	GET  /api/v1/events/{id}          one event by UUID
	GET  /ws                          websocket feed of event transitions

Every JSON response uses the APIResponse envelope:

	{"status":"success","data":...,"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"metadata":{...},"error":{"code":"...","message":"..."}}
*/
package api
