package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dutycal/internal/model"
)

// EventStore archives raw source events so that past duties survive after
// the roster provider stops publishing them.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// SyncStats describes what Sync changed.
type SyncStats struct {
	Replaced int // active events deleted before re-insert
	Archived int // events kept from earlier runs, ending at or before the horizon
	Total    int
}

// Sync merges the current source events into the archive and returns the
// archive contents ordered by start, then ID.
//
// Events ending after horizon are active: all stored active events are
// deleted and replaced by the current ones. Events ending at or before
// horizon are archived: stored ones are kept as they are and only missing
// ones are added.
func (s *EventStore) Sync(ctx context.Context, events []model.RawEvent, horizon time.Time) ([]model.RawEvent, SyncStats, error) {
	var stats SyncStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, stats, fmt.Errorf("sync events: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE end_at > ?`, horizon.Unix())
	if err != nil {
		return nil, stats, fmt.Errorf("sync events: delete active: %w", err)
	}
	n, _ := res.RowsAffected()
	stats.Replaced = int(n)

	replace, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO events (id, title, description, location, all_day, start_at, end_at, stamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, stats, fmt.Errorf("sync events: prepare: %w", err)
	}
	defer replace.Close()

	keep, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO events (id, title, description, location, all_day, start_at, end_at, stamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, stats, fmt.Errorf("sync events: prepare: %w", err)
	}
	defer keep.Close()

	for _, ev := range events {
		stmt := replace
		if !ev.End.After(horizon) {
			stmt = keep
		}
		if _, err := stmt.ExecContext(ctx, ev.ID, ev.Title, ev.Description, ev.Location, ev.AllDay,
			ev.Start.Unix(), ev.End.Unix(), ev.Stamp.Unix()); err != nil {
			return nil, stats, fmt.Errorf("sync events: insert %s: %w", ev.ID, err)
		}
	}

	out, err := listEvents(ctx, tx)
	if err != nil {
		return nil, stats, err
	}
	if err := tx.Commit(); err != nil {
		return nil, stats, fmt.Errorf("sync events: commit: %w", err)
	}

	for _, ev := range out {
		if !ev.End.After(horizon) {
			stats.Archived++
		}
	}
	stats.Total = len(out)
	return out, stats, nil
}

// List returns all archived events ordered by start, then ID.
func (s *EventStore) List(ctx context.Context) ([]model.RawEvent, error) {
	return listEvents(ctx, s.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listEvents(ctx context.Context, q querier) ([]model.RawEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, description, location, all_day, start_at, end_at, stamp
		 FROM events ORDER BY start_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.RawEvent
	for rows.Next() {
		var ev model.RawEvent
		var start, end, stamp int64
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.AllDay, &start, &end, &stamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Start = time.Unix(start, 0).UTC()
		ev.End = time.Unix(end, 0).UTC()
		ev.Stamp = time.Unix(stamp, 0).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
