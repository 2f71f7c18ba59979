package ics

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "dutycal/internal/log"
	"dutycal/internal/model"
)

// Read decodes a calendar previously written by Encode back into the
// identifier-keyed event map. An empty body yields an empty map.
func Read(body []byte) (map[string]model.ComposedEvent, error) {
	out := make(map[string]model.ComposedEvent)
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("read ics: %w", err)
	}

	for _, ve := range cal.Events() {
		ev, err := readVEvent(ve)
		if err != nil {
			appLog.Warn("ics output event skipped", "uid", ve.Id(), "err", err)
			continue
		}
		out[ev.ID] = ev
	}
	return out, nil
}

func readVEvent(ve *ical.VEvent) (model.ComposedEvent, error) {
	ev := model.ComposedEvent{ID: ve.Id()}
	if ev.ID == "" {
		return ev, errors.New("missing UID")
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, errors.New("missing DTSTART")
	}
	start, allDay, err := propertyTime(startProp, time.UTC)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.Start, ev.AllDay = start, allDay

	ev.End = ev.Start
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, _, err := propertyTime(p, time.UTC)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.End = end
	}

	if stamp, err := ve.GetDtStampTime(); err == nil {
		ev.Stamp = stamp.UTC()
	}

	for _, a := range ve.Alarms() {
		p := a.GetProperty(ical.ComponentPropertyTrigger)
		if p == nil {
			continue
		}
		d, err := ParseDuration(p.Value)
		if err != nil {
			appLog.Debug("ics alarm trigger ignored", "uid", ev.ID, "trigger", p.Value)
			continue
		}
		r := model.Reminder{Offset: -d}
		if dp := a.GetProperty(ical.ComponentPropertyDescription); dp != nil {
			r.Description = dp.Value
		}
		ev.Reminders = append(ev.Reminders, r)
	}

	return ev, nil
}
