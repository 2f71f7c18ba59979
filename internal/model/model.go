package model

import "time"

// RawEvent is one entry of the source roster calendar after ICS parsing
// and recurrence expansion. It is never modified once built.
type RawEvent struct {
	// ID is the stable identifier (iCalendar UID, or UID plus instance key
	// for expanded recurrences). It is the join key between runs.
	ID string

	Title       string
	Description string
	Location    string

	AllDay bool

	Start time.Time
	End   time.Time

	// Stamp is the source DTSTAMP, or Start when the source has none.
	// Copying it keeps re-encoded output byte-stable.
	Stamp time.Time
}

// Reminder is a display alarm relative to the event start.
type Reminder struct {
	// Offset is how long before the start the reminder fires.
	Offset      time.Duration `json:"offset"`
	Description string        `json:"description"`
}

// ComposedEvent is the cleaned output event derived from a RawEvent.
type ComposedEvent struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	AllDay      bool       `json:"all_day"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Stamp       time.Time  `json:"stamp"`
	Reminders   []Reminder `json:"reminders,omitempty"`
}

// Equal reports whether two composed events render identically.
func (e ComposedEvent) Equal(o ComposedEvent) bool {
	if e.ID != o.ID || e.Summary != o.Summary || e.Location != o.Location ||
		e.Description != o.Description || e.AllDay != o.AllDay {
		return false
	}
	if !e.Start.Equal(o.Start) || !e.End.Equal(o.End) || !e.Stamp.Equal(o.Stamp) {
		return false
	}
	if len(e.Reminders) != len(o.Reminders) {
		return false
	}
	for i := range e.Reminders {
		if e.Reminders[i] != o.Reminders[i] {
			return false
		}
	}
	return true
}

// WarningKind classifies a non-fatal pipeline condition.
type WarningKind string

const (
	WarningUnclassified   WarningKind = "unclassified"
	WarningUnresolvedCode WarningKind = "unresolved_code"
	WarningMalformedRoute WarningKind = "malformed_route"
	WarningDuplicateID    WarningKind = "duplicate_id"
	WarningEventFailure   WarningKind = "event_failure"
)

// Warning is a data-quality condition attached to one event. Warnings never
// stop processing.
type Warning struct {
	EventID string      `json:"event_id"`
	Kind    WarningKind `json:"kind"`
	// Code is the airport code involved, if any.
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.EventID == "" {
		return string(w.Kind) + ": " + w.Message
	}
	return w.EventID + ": " + string(w.Kind) + ": " + w.Message
}

// Airport is one row of the ourairports.com airports dataset.
type Airport struct {
	ID               int64
	Ident            string
	Type             string
	Name             string
	Latitude         float64
	Longitude        float64
	Continent        string
	ISOCountry       string
	Municipality     string
	ScheduledService bool
	GPSCode          string
	ICAOCode         string
	IATACode         string
}

// CanonicalCode is the ICAO-style code used in summaries: icao_code, then
// gps_code, then ident.
func (a Airport) CanonicalCode() string {
	switch {
	case a.ICAOCode != "":
		return a.ICAOCode
	case a.GPSCode != "":
		return a.GPSCode
	default:
		return a.Ident
	}
}

// Country is one row of the ourairports.com countries dataset.
type Country struct {
	Code      string
	Name      string
	Continent string
}
