// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package ingest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/seawatch/internal/tracker"
)

// ErrMalformed is returned for payloads that are not a report.
var ErrMalformed = errors.New("ingest: malformed report")

// DecodeReport parses a JSON report. The timestamp is mandatory; every
// other check is left to the registry.
func DecodeReport(payload []byte) (*tracker.Report, error) {
	var r tracker.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	return &r, nil
}

// NewReportMessage encodes r as a watermill message.
func NewReportMessage(r *tracker.Report) (*message.Message, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataMMSI, strconv.FormatInt(r.MMSI, 10))
	return msg, nil
}

// PublishReports encodes and publishes reports to topic.
func PublishReports(pub message.Publisher, topic string, reports ...*tracker.Report) error {
	msgs := make([]*message.Message, 0, len(reports))
	for _, r := range reports {
		msg, err := NewReportMessage(r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return pub.Publish(topic, msgs...)
}

const metadataMMSI = "mmsi"

// reportIdentity is the subset decoded to build the deduplication key.
type reportIdentity struct {
	MMSI      int64  `json:"mmsi"`
	Timestamp string `json:"timestamp"`
}

// dedupKey identifies a report by vessel and timestamp, so the same report
// relayed by two receivers is processed once. Payloads that do not decode
// fall back to the message UUID and are rejected by the handler.
func dedupKey(msg *message.Message) (string, error) {
	var id reportIdentity
	if err := json.Unmarshal(msg.Payload, &id); err != nil || id.MMSI == 0 || id.Timestamp == "" {
		return msg.UUID, nil
	}
	return strconv.FormatInt(id.MMSI, 10) + "@" + id.Timestamp, nil
}
