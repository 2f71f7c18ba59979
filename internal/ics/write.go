package ics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"dutycal/internal/model"
)

// DefaultCalendarName is the X-WR-CALNAME of the output calendar.
const DefaultCalendarName = "Duty Plan"

const productID = "dutycal"

// Encode renders events as an ICS calendar. Events are written sorted by
// start, then ID, so the same map always encodes to the same bytes.
func Encode(events map[string]model.ComposedEvent, calendarName string) []byte {
	if calendarName == "" {
		calendarName = DefaultCalendarName
	}

	cal := ical.NewCalendarFor(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(calendarName)

	for _, ev := range Sorted(events) {
		ve := cal.AddEvent(ev.ID)

		stamp := ev.Stamp
		if stamp.IsZero() {
			stamp = ev.Start
		}
		ve.SetDtStampTime(stamp)

		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
		}

		ve.SetSummary(ev.Summary)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}

		for _, r := range ev.Reminders {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(FormatTrigger(r.Offset))
			desc := r.Description
			if desc == "" {
				desc = ev.Summary
			}
			alarm.SetDescription(desc)
		}
	}

	return []byte(cal.Serialize())
}

// Sorted returns the events ordered by start time, then ID.
func Sorted(events map[string]model.ComposedEvent) []model.ComposedEvent {
	out := make([]model.ComposedEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FormatTrigger renders a reminder offset as a relative TRIGGER before the
// start, in whole hours or minutes when exact: 1h -> "-PT1H", 35m -> "-PT35M".
func FormatTrigger(offset time.Duration) string {
	if offset < 0 {
		offset = -offset
	}
	switch {
	case offset == 0:
		return "PT0S"
	case offset%time.Hour == 0:
		return fmt.Sprintf("-PT%dH", offset/time.Hour)
	case offset%time.Minute == 0:
		return fmt.Sprintf("-PT%dM", offset/time.Minute)
	default:
		return fmt.Sprintf("-PT%dS", offset/time.Second)
	}
}

var durationRe = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration parses an iCalendar DURATION value such as "-PT1H30M" or
// "P1D". The sign is kept.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
