package pipeline

import (
	"strings"

	"dutycal/internal/duty"
	"dutycal/internal/model"
)

// Compose builds the output event for raw. It never fails: kinds without
// enough detail fall back to the raw title.
func Compose(raw model.RawEvent, kind duty.Kind, legs []Leg, reminders []model.Reminder, warnings []model.Warning) model.ComposedEvent {
	return model.ComposedEvent{
		ID:          raw.ID,
		Summary:     summary(raw, kind, legs),
		Location:    location(legs),
		Description: description(raw, warnings),
		AllDay:      raw.AllDay,
		Start:       raw.Start,
		End:         raw.End,
		Stamp:       raw.Stamp,
		Reminders:   reminders,
	}
}

func summary(raw model.RawEvent, kind duty.Kind, legs []Leg) string {
	switch k := kind.(type) {
	case duty.Flight:
		return routeSummary("Flight", k.FlightNumber, k.Origin, k.Destination, legs)
	case duty.Deadhead:
		return routeSummary("Deadhead", k.FlightNumber, k.Origin, k.Destination, legs)
	case duty.Training:
		switch {
		case k.Category != "" && k.Description != "":
			return k.Category + ": " + k.Description
		case k.Description != "":
			return k.Description
		case k.Category != "":
			return k.Category
		default:
			return "Training"
		}
	case duty.Briefing:
		return withStation("Briefing", k.Station)
	case duty.Pickup:
		return withStation("Pickup", k.Station)
	case duty.Unknown:
		return k.RawTitle
	case nil:
		return raw.Title
	default:
		return duty.Label(kind)
	}
}

// routeSummary renders "Flight FRA→JFK LH400" using canonical codes where
// the legs carry them.
func routeSummary(label, flightNumber, origin, destination string, legs []Leg) string {
	if len(legs) == 2 {
		origin, destination = legs[0].Canonical, legs[1].Canonical
	}
	s := label + " " + origin + "→" + destination
	if flightNumber != "" {
		s += " " + flightNumber
	}
	return s
}

func withStation(label, station string) string {
	if station == "" {
		return label
	}
	return label + " " + station
}

func location(legs []Leg) string {
	if len(legs) == 0 {
		return ""
	}
	names := make([]string, len(legs))
	for i, l := range legs {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}

// description keeps the raw title and appends one line per unresolved code.
func description(raw model.RawEvent, warnings []model.Warning) string {
	var b strings.Builder
	b.WriteString(raw.Title)
	for _, w := range warnings {
		if w.Kind != model.WarningUnresolvedCode {
			continue
		}
		b.WriteString("\nUnresolved airport code: ")
		b.WriteString(w.Code)
	}
	return b.String()
}
