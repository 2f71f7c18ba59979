package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dutycal/internal/airport"
	"dutycal/internal/model"
)

// Dataset names tracked in dataset_refreshes.
const (
	DatasetAirports  = "airports"
	DatasetCountries = "countries"
)

type AirportStore struct {
	db *sql.DB
}

func NewAirportStore(db *sql.DB) *AirportStore {
	return &AirportStore{db: db}
}

// ReplaceAirports swaps the airports table for airports in one transaction
// and records the refresh time.
func (s *AirportStore) ReplaceAirports(ctx context.Context, airports []model.Airport, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace airports: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM airports`); err != nil {
		return fmt.Errorf("replace airports: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO airports (id, ident, type, name, latitude, longitude, continent, iso_country, municipality, scheduled_service, gps_code, icao_code, iata_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("replace airports: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range airports {
		if _, err := stmt.ExecContext(ctx, a.ID, a.Ident, a.Type, a.Name, a.Latitude, a.Longitude,
			a.Continent, a.ISOCountry, a.Municipality, a.ScheduledService, a.GPSCode, a.ICAOCode, a.IATACode); err != nil {
			return fmt.Errorf("replace airports: insert %s: %w", a.Ident, err)
		}
	}

	if err := markRefreshed(ctx, tx, DatasetAirports, now, len(airports)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace airports: commit: %w", err)
	}
	return nil
}

// ReplaceCountries swaps the countries table for countries.
func (s *AirportStore) ReplaceCountries(ctx context.Context, countries []model.Country, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace countries: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM countries`); err != nil {
		return fmt.Errorf("replace countries: clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO countries (code, name, continent) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("replace countries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range countries {
		if _, err := stmt.ExecContext(ctx, c.Code, c.Name, c.Continent); err != nil {
			return fmt.Errorf("replace countries: insert %s: %w", c.Code, err)
		}
	}

	if err := markRefreshed(ctx, tx, DatasetCountries, now, len(countries)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace countries: commit: %w", err)
	}
	return nil
}

// Records returns the directory records for every airport that carries an
// IATA code, with the country name joined in. Rows are ordered so that
// closed airports come first and scheduled-service airports last; with
// last-write-wins in airport.Build the active airport keeps a shared code.
func (s *AirportStore) Records(ctx context.Context) ([]airport.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.iata_code, a.icao_code, a.gps_code, a.ident, a.name, a.municipality, COALESCE(c.name, a.iso_country)
		 FROM airports a
		 LEFT JOIN countries c ON c.code = a.iso_country
		 WHERE a.iata_code != ''
		 ORDER BY (a.type = 'closed') DESC, a.scheduled_service ASC, a.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list airport records: %w", err)
	}
	defer rows.Close()

	var records []airport.Record
	for rows.Next() {
		var a model.Airport
		var country string
		if err := rows.Scan(&a.IATACode, &a.ICAOCode, &a.GPSCode, &a.Ident, &a.Name, &a.Municipality, &country); err != nil {
			return nil, fmt.Errorf("scan airport record: %w", err)
		}
		records = append(records, airport.Record{
			Code:         a.IATACode,
			Canonical:    a.CanonicalCode(),
			Name:         a.Name,
			Municipality: a.Municipality,
			Country:      country,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate airport records: %w", err)
	}
	return records, nil
}

// LastRefresh returns when dataset was last replaced. ok is false if it
// never was.
func (s *AirportStore) LastRefresh(ctx context.Context, dataset string) (refreshedAt time.Time, rowCount int, ok bool, err error) {
	var unix int64
	err = s.db.QueryRowContext(ctx,
		`SELECT refreshed_at, row_count FROM dataset_refreshes WHERE name = ?`, dataset,
	).Scan(&unix, &rowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("get %s refresh: %w", dataset, err)
	}
	return time.Unix(unix, 0).UTC(), rowCount, true, nil
}

func markRefreshed(ctx context.Context, tx *sql.Tx, dataset string, now time.Time, rows int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO dataset_refreshes (name, refreshed_at, row_count) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET refreshed_at = excluded.refreshed_at, row_count = excluded.row_count`,
		dataset, now.Unix(), rows)
	if err != nil {
		return fmt.Errorf("mark %s refreshed: %w", dataset, err)
	}
	return nil
}
