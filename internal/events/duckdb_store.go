// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/seawatch/internal/logging"
	"github.com/tomtom215/seawatch/internal/metrics"

	// registers the "duckdb" database/sql driver
	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBStore implements Repository on DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps an open database. Call InitSchema before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// OpenDuckDB opens the database file at path (":memory:" for an in-memory
// database) and initializes the schema.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	s := NewDuckDBStore(db)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logging.Info().Str("path", path).Msg("Event store opened")
	return s, nil
}

// DB returns the underlying handle.
func (s *DuckDBStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the event table if it does not exist.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS abnormal_events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			mmsi BIGINT NOT NULL,
			vessel_name TEXT,
			callsign TEXT,
			imo INTEGER,
			cell_id BIGINT NOT NULL,
			state TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			payload TEXT NOT NULL,
			tracking_points TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		// only columns that are never updated are indexed
		`CREATE INDEX IF NOT EXISTS idx_abnormal_events_mmsi ON abnormal_events(mmsi)`,
		`CREATE INDEX IF NOT EXISTS idx_abnormal_events_start ON abnormal_events(start_time)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

const eventColumns = `id, kind, mmsi, vessel_name, callsign, imo, cell_id, state,
	start_time, end_time, title, description, payload, tracking_points`

// Save implements Sink.
func (s *DuckDBStore) Save(ctx context.Context, e *AbnormalEvent) (err error) {
	start := time.Now()
	defer func() { metrics.RecordEventSink("save", time.Since(start), err) }()

	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	points, err := json.Marshal(e.TrackingPoints)
	if err != nil {
		return fmt.Errorf("failed to encode tracking points: %w", err)
	}
	var end interface{}
	if e.End != nil {
		end = e.End.UTC()
	}

	query := `INSERT INTO abnormal_events (` + eventColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			vessel_name = EXCLUDED.vessel_name,
			callsign = EXCLUDED.callsign,
			imo = EXCLUDED.imo,
			state = EXCLUDED.state,
			end_time = EXCLUDED.end_time,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			payload = EXCLUDED.payload,
			tracking_points = EXCLUDED.tracking_points,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		e.ID.String(),
		string(e.Kind),
		e.Vessel.MMSI,
		e.Vessel.Name,
		e.Vessel.CallSign,
		e.Vessel.IMO,
		e.CellID,
		string(e.State),
		e.Start.UTC(),
		end,
		e.Title,
		e.Description,
		string(payload),
		string(points),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save event %s: %w", e.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*AbnormalEvent, error) {
	var (
		e                       AbnormalEvent
		id, kind, state         string
		name, callsign          sql.NullString
		imo                     sql.NullInt64
		end                     sql.NullTime
		payload, trackingPoints string
	)
	if err := row.Scan(&id, &kind, &e.Vessel.MMSI, &name, &callsign, &imo, &e.CellID, &state,
		&e.Start, &end, &e.Title, &e.Description, &payload, &trackingPoints); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad event id %q: %w", id, err)
	}
	e.ID = parsed
	e.Kind = Kind(kind)
	e.State = State(state)
	e.Vessel.Name = name.String
	e.Vessel.CallSign = callsign.String
	e.Vessel.IMO = int(imo.Int64)
	e.Start = e.Start.UTC()
	if end.Valid {
		t := end.Time.UTC()
		e.End = &t
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(trackingPoints), &e.TrackingPoints); err != nil {
		return nil, fmt.Errorf("failed to decode tracking points of %s: %w", id, err)
	}
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]AbnormalEvent, error) {
	var out []AbnormalEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// FindOngoingEvent implements Sink. If more than one ONGOING row exists
// the newest is returned and the duplicates are logged.
func (s *DuckDBStore) FindOngoingEvent(ctx context.Context, mmsi int64, kind Kind) (_ *AbnormalEvent, err error) {
	start := time.Now()
	defer func() { metrics.RecordEventSink("find_ongoing", time.Since(start), err) }()

	query := `SELECT ` + eventColumns + ` FROM abnormal_events
		WHERE mmsi = ? AND kind = ? AND state = ?
		ORDER BY start_time DESC`
	rows, err := s.db.QueryContext(ctx, query, mmsi, string(kind), string(StateOngoing))
	if err != nil {
		return nil, fmt.Errorf("failed to query ongoing event: %w", err)
	}
	defer rows.Close()

	found, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 1 {
		ids := make([]string, len(found))
		for i := range found {
			ids[i] = found[i].ID.String()
		}
		logging.Ctx(ctx).Warn().
			Int64("mmsi", mmsi).
			Str("kind", string(kind)).
			Strs("event_ids", ids).
			Msg("More than one ongoing event; using the newest")
	}
	return &found[0], nil
}

// GetEvent implements Repository.
func (s *DuckDBStore) GetEvent(ctx context.Context, id uuid.UUID) (*AbnormalEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM abnormal_events WHERE id = ?`
	e, err := scanEvent(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// RecentEvents implements Repository.
func (s *DuckDBStore) RecentEvents(ctx context.Context, limit int) ([]AbnormalEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT ` + eventColumns + ` FROM abnormal_events
		ORDER BY start_time DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsBetween implements Repository.
func (s *DuckDBStore) EventsBetween(ctx context.Context, from, to time.Time) ([]AbnormalEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to, from)
	}
	query := `SELECT ` + eventColumns + ` FROM abnormal_events
		WHERE start_time <= ? AND (end_time IS NULL OR end_time >= ?)
		ORDER BY start_time, id`
	rows, err := s.db.QueryContext(ctx, query, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query events between: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventKinds implements Repository.
func (s *DuckDBStore) EventKinds(ctx context.Context) ([]KindCount, error) {
	query := `SELECT kind, COUNT(*), COUNT(*) FILTER (WHERE state = ?)
		FROM abnormal_events GROUP BY kind ORDER BY kind`
	rows, err := s.db.QueryContext(ctx, query, string(StateOngoing))
	if err != nil {
		return nil, fmt.Errorf("failed to count event kinds: %w", err)
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		var kind string
		if err := rows.Scan(&kind, &kc.Total, &kc.Ongoing); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		kc.Kind = Kind(kind)
		out = append(out, kc)
	}
	return out, rows.Err()
}
