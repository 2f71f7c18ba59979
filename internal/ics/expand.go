package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "dutycal/internal/log"
	"dutycal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 1000

	// InstanceKeyLayout formats the original start of a recurring instance
	// into its identifier suffix.
	InstanceKeyLayout = "20060102T150405Z"
)

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive window for occurrences of
	// recurring events. Non-recurring events are never filtered.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero uses the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the list of raw events plus the UIDs whose expansion was
// truncated by the cap.
type ExpandResult struct {
	Events          []model.RawEvent
	TruncatedEvents []string
}

// InstanceID is the identifier of one occurrence of a recurring event.
func InstanceID(uid string, originalStart time.Time) string {
	return uid + "/" + originalStart.UTC().Format(InstanceKeyLayout)
}

// Expand turns parsed events into raw events:
//
//   - non-recurring events map one to one and keep their UID
//   - RRULE events yield one event per occurrence in the window, with EXDATEs
//     removed and RECURRENCE-ID overrides applied
//   - overrides whose instance was not generated are kept on their own
//
// The output is in source order, occurrences of one event by start time.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	recurring := make(map[string]bool)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else if ev.RawRRule != "" {
			recurring[ev.UID] = true
		}
	}

	// Instance IDs of overrides already applied to a generated occurrence.
	used := make(map[string]bool)
	for _, ev := range events {
		switch {
		case ev.IsOverride():
			continue
		case ev.RawRRule == "":
			result.Events = append(result.Events, toRaw(ev.UID, ev, ev.Start, ev.End))
		default:
			occ, hitCap := expandRecurring(ev, overridesByUID[ev.UID], cfg, used)
			result.Events = append(result.Events, occ...)
			if hitCap {
				result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
				appLog.Warn("expand: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
			}
		}
	}

	for _, ev := range events {
		if !ev.IsOverride() {
			continue
		}
		id := InstanceID(ev.UID, *ev.Recurrence)
		if used[id] {
			continue
		}
		if !recurring[ev.UID] || inRange(*ev.Recurrence, cfg) {
			used[id] = true
			result.Events = append(result.Events, toRaw(id, ev, ev.Start, ev.End))
		}
	}

	return result, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig, used map[string]bool) ([]model.RawEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("expand: bad RRULE, keeping first instance only", "uid", ev.UID, "rrule", ev.RawRRule, "err", err)
		return []model.RawEvent{toRaw(ev.UID, ev, ev.Start, ev.End)}, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Occurrences arrive in order; stop at the window end or the cap.
	var times []time.Time
	hitCap := false
	next := set.Iterator()
	for t, ok := next(); ok; t, ok = next() {
		if t.After(cfg.RangeEnd) {
			break
		}
		if t.Before(cfg.RangeStart) {
			continue
		}
		if len(times) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		times = append(times, t)
	}

	out := make([]model.RawEvent, 0, len(times))
	for _, occStart := range times {
		occEnd := occurrenceEnd(ev, occStart)
		id := InstanceID(ev.UID, occStart)

		if o, ok := findOverride(overrides, occStart); ok {
			used[id] = true
			out = append(out, toRaw(id, *o, o.Start, o.End))
			continue
		}
		out = append(out, toRaw(id, ev, occStart, occEnd))
	}
	return out, hitCap
}

func occurrenceEnd(ev ParsedEvent, occStart time.Time) time.Time {
	if ev.AllDay {
		days := int(ev.End.Sub(ev.Start).Round(time.Hour).Hours() / 24)
		return occStart.AddDate(0, 0, days)
	}
	return occStart.Add(ev.End.Sub(ev.Start))
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (*ParsedEvent, bool) {
	for i := range overrides {
		if overrides[i].Recurrence != nil && overrides[i].Recurrence.Equal(start) {
			return &overrides[i], true
		}
	}
	return nil, false
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}

func toRaw(id string, ev ParsedEvent, start, end time.Time) model.RawEvent {
	return model.RawEvent{
		ID:          id,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
		Stamp:       ev.Stamp,
	}
}
