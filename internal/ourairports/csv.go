// Package ourairports downloads the ourairports.com airport and country
// datasets, stores them and builds the airport directory from them.
package ourairports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	appLog "dutycal/internal/log"
	"dutycal/internal/model"
)

const (
	DefaultAirportsURL  = "https://davidmegginson.github.io/ourairports-data/airports.csv"
	DefaultCountriesURL = "https://davidmegginson.github.io/ourairports-data/countries.csv"
)

// header maps column names to indexes.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	cols, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.TrimSpace(c)] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return h, nil
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func newReader(body []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.LazyQuotes = true
	return r
}

// badRow reports whether err only affects the current row.
func badRow(err error) bool {
	var perr *csv.ParseError
	return errors.As(err, &perr)
}

// ParseAirports parses airports.csv. Malformed rows and rows with an
// unparsable id are skipped and counted.
func ParseAirports(body []byte) ([]model.Airport, int, error) {
	r := newReader(body)
	h, err := readHeader(r, "id", "ident", "name")
	if err != nil {
		return nil, 0, fmt.Errorf("airports.csv: %w", err)
	}

	var out []model.Airport
	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if badRow(err) {
			appLog.Debug("airports.csv: skipping malformed row", "err", err)
			skipped++
			continue
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("airports.csv: %w", err)
		}

		id, err := strconv.ParseInt(h.get(rec, "id"), 10, 64)
		if err != nil || h.get(rec, "ident") == "" {
			skipped++
			continue
		}
		lat, _ := strconv.ParseFloat(h.get(rec, "latitude_deg"), 64)
		lon, _ := strconv.ParseFloat(h.get(rec, "longitude_deg"), 64)

		out = append(out, model.Airport{
			ID:               id,
			Ident:            strings.ToUpper(h.get(rec, "ident")),
			Type:             h.get(rec, "type"),
			Name:             h.get(rec, "name"),
			Latitude:         lat,
			Longitude:        lon,
			Continent:        h.get(rec, "continent"),
			ISOCountry:       h.get(rec, "iso_country"),
			Municipality:     h.get(rec, "municipality"),
			ScheduledService: strings.EqualFold(h.get(rec, "scheduled_service"), "yes"),
			GPSCode:          strings.ToUpper(h.get(rec, "gps_code")),
			ICAOCode:         strings.ToUpper(h.get(rec, "icao_code")),
			IATACode:         strings.ToUpper(h.get(rec, "iata_code")),
		})
	}
	return out, skipped, nil
}

// ParseCountries parses countries.csv.
func ParseCountries(body []byte) ([]model.Country, error) {
	r := newReader(body)
	h, err := readHeader(r, "code", "name")
	if err != nil {
		return nil, fmt.Errorf("countries.csv: %w", err)
	}

	var out []model.Country
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if badRow(err) {
			appLog.Debug("countries.csv: skipping malformed row", "err", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("countries.csv: %w", err)
		}
		code := strings.ToUpper(h.get(rec, "code"))
		if code == "" {
			continue
		}
		out = append(out, model.Country{
			Code:      code,
			Name:      h.get(rec, "name"),
			Continent: h.get(rec, "continent"),
		})
	}
	return out, nil
}
