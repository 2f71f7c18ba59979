package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"dutycal/internal/database"
	"dutycal/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestRecordsJoinCountryAndOrderForTieBreak(t *testing.T) {
	s := NewAirportStore(setupTestDB(t))
	ctx := context.Background()

	airports := []model.Airport{
		{ID: 1, Ident: "EDDF", Type: "large_airport", Name: "Frankfurt am Main", ISOCountry: "DE", Municipality: "Frankfurt", ScheduledService: true, GPSCode: "EDDF", ICAOCode: "EDDF", IATACode: "FRA"},
		{ID: 2, Ident: "XX-0001", Type: "closed", Name: "Old Frankfurt Field", ISOCountry: "DE", IATACode: "FRA"},
		{ID: 3, Ident: "KJFK", Type: "large_airport", Name: "John F Kennedy International", ISOCountry: "US", ScheduledService: true, GPSCode: "KJFK", IATACode: "JFK"},
		{ID: 4, Ident: "EDFE", Type: "small_airport", Name: "Egelsbach", ISOCountry: "DE"},
		{ID: 5, Ident: "ZZ-9", Type: "small_airport", Name: "Nowhere Strip", ISOCountry: "ZZ", IATACode: "NWS"},
	}
	if err := s.ReplaceAirports(ctx, airports, now); err != nil {
		t.Fatalf("ReplaceAirports: %v", err)
	}
	countries := []model.Country{{Code: "DE", Name: "Germany", Continent: "EU"}, {Code: "US", Name: "United States", Continent: "NA"}}
	if err := s.ReplaceCountries(ctx, countries, now); err != nil {
		t.Fatalf("ReplaceCountries: %v", err)
	}

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4 (no IATA code skipped)", len(records))
	}
	// Closed airport first, scheduled service last.
	if records[0].Name != "Old Frankfurt Field" {
		t.Errorf("first record = %+v", records[0])
	}
	last := records[len(records)-1]
	if last.Code != "JFK" || last.Canonical != "KJFK" || last.Country != "United States" {
		t.Errorf("last record = %+v", last)
	}
	for _, r := range records {
		if r.Code == "NWS" && r.Country != "ZZ" {
			t.Errorf("country fallback = %q, want ZZ", r.Country)
		}
	}
}

func TestReplaceAirportsReplacesAndTracksRefresh(t *testing.T) {
	s := NewAirportStore(setupTestDB(t))
	ctx := context.Background()

	if _, _, ok, err := s.LastRefresh(ctx, DatasetAirports); err != nil || ok {
		t.Fatalf("LastRefresh before load = %v, %v", ok, err)
	}

	first := []model.Airport{{ID: 1, Ident: "EDDF", IATACode: "FRA"}, {ID: 2, Ident: "EDDM", IATACode: "MUC"}}
	if err := s.ReplaceAirports(ctx, first, now); err != nil {
		t.Fatal(err)
	}
	second := []model.Airport{{ID: 3, Ident: "KJFK", IATACode: "JFK"}}
	if err := s.ReplaceAirports(ctx, second, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Code != "JFK" {
		t.Errorf("records = %+v", records)
	}

	at, rows, ok, err := s.LastRefresh(ctx, DatasetAirports)
	if err != nil || !ok {
		t.Fatalf("LastRefresh = %v, %v", ok, err)
	}
	if !at.Equal(now.Add(time.Hour)) || rows != 1 {
		t.Errorf("refresh = %s rows=%d", at, rows)
	}
}

func raw(id, title string, start time.Time) model.RawEvent {
	return model.RawEvent{ID: id, Title: title, Start: start, End: start.Add(2 * time.Hour), Stamp: start.Add(-24 * time.Hour)}
}

func TestSyncFirstRunStoresEverything(t *testing.T) {
	s := NewEventStore(setupTestDB(t))
	horizon := now.AddDate(0, 0, -7)

	events := []model.RawEvent{
		raw("old", "Standby", now.AddDate(0, 0, -20)),
		raw("new", "LH 400: FRA-JFK", now.AddDate(0, 0, 2)),
	}
	out, stats, err := s.Sync(context.Background(), events, horizon)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(out) != 2 || out[0].ID != "old" || out[1].ID != "new" {
		t.Fatalf("out = %+v", out)
	}
	if stats.Archived != 1 || stats.Total != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !out[1].Start.Equal(events[1].Start) || !out[1].Stamp.Equal(events[1].Stamp) {
		t.Errorf("times not preserved: %+v", out[1])
	}
}

func TestSyncKeepsArchiveAndReplacesActive(t *testing.T) {
	s := NewEventStore(setupTestDB(t))
	ctx := context.Background()
	horizon := now.AddDate(0, 0, -7)

	first := []model.RawEvent{
		raw("past", "Simulator (LOFT)", now.AddDate(0, 0, -30)),
		raw("cancelled", "Standby", now.AddDate(0, 0, 3)),
		raw("changed", "Standby", now.AddDate(0, 0, 4)),
	}
	if _, _, err := s.Sync(ctx, first, horizon); err != nil {
		t.Fatal(err)
	}

	// The provider dropped the past event and the cancelled duty and changed
	// one title.
	second := []model.RawEvent{
		raw("changed", "LH 400: FRA-JFK", now.AddDate(0, 0, 4)),
	}
	out, stats, err := s.Sync(ctx, second, horizon)
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	for _, ev := range out {
		got[ev.ID] = ev.Title
	}
	if len(got) != 2 {
		t.Fatalf("events = %v", got)
	}
	if got["past"] != "Simulator (LOFT)" {
		t.Errorf("archived event lost: %v", got)
	}
	if got["changed"] != "LH 400: FRA-JFK" {
		t.Errorf("active event not replaced: %v", got)
	}
	if _, ok := got["cancelled"]; ok {
		t.Error("cancelled active event kept")
	}
	if stats.Replaced != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncDoesNotOverwriteArchivedEvent(t *testing.T) {
	s := NewEventStore(setupTestDB(t))
	ctx := context.Background()
	horizon := now.AddDate(0, 0, -7)

	if _, _, err := s.Sync(ctx, []model.RawEvent{raw("past", "Standby", now.AddDate(0, 0, -30))}, horizon); err != nil {
		t.Fatal(err)
	}
	out, _, err := s.Sync(ctx, []model.RawEvent{raw("past", "Rewritten", now.AddDate(0, 0, -30))}, horizon)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Title != "Standby" {
		t.Errorf("out = %+v", out)
	}

	listed, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Errorf("List = %+v", listed)
	}
}
