package duty

import (
	"fmt"
	"slices"
	"time"

	"dutycal/internal/model"
)

// Policy maps kind names to reminder offsets before the event start.
// A missing or empty entry means no reminders for that kind.
type Policy map[string][]time.Duration

// DefaultPolicy returns the built-in reminder table.
func DefaultPolicy() Policy {
	return Policy{
		NameFlight:   {30 * time.Minute},
		NameDeadhead: {90 * time.Minute, 35 * time.Minute},
		NameStandby:  {time.Hour},
		NameTraining: {time.Hour, 5 * time.Minute},
		NameBriefing: {time.Hour, 5 * time.Minute},
		NamePickup:   {time.Hour, 15 * time.Minute},
		NameOff:      nil,
		NameLayover:  nil,
		NameHoliday:  nil,
		NameSickness: nil,
		NameUnknown:  nil,
	}
}

// WithOverrides returns a copy of p with the entries of overrides replacing
// the corresponding kinds. Unknown kind names and negative offsets are
// rejected.
func (p Policy) WithOverrides(overrides map[string][]time.Duration) (Policy, error) {
	out := make(Policy, len(p)+len(overrides))
	for k, v := range p {
		out[k] = slices.Clone(v)
	}
	for name, offsets := range overrides {
		if !slices.Contains(Names, name) {
			return nil, fmt.Errorf("reminders: unknown duty kind %q", name)
		}
		for _, d := range offsets {
			if d < 0 {
				return nil, fmt.Errorf("reminders: %s: negative offset %s", name, d)
			}
		}
		out[name] = slices.Clone(offsets)
	}
	return out, nil
}

// RemindersFor returns the reminders for kind, farthest from the start
// first.
func (p Policy) RemindersFor(kind Kind) []model.Reminder {
	offsets := slices.Clone(p[kind.Name()])
	if len(offsets) == 0 {
		return nil
	}
	slices.SortStableFunc(offsets, func(a, b time.Duration) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})

	label := Label(kind)
	out := make([]model.Reminder, 0, len(offsets))
	for _, d := range slices.Compact(offsets) {
		out = append(out, model.Reminder{Offset: d, Description: label})
	}
	return out
}

// Label is the short human-readable name of a kind.
func Label(kind Kind) string {
	switch kind.(type) {
	case Flight:
		return "Flight"
	case Deadhead:
		return "Deadhead"
	case Standby:
		return "Standby"
	case Training:
		return "Training"
	case Off:
		return "Off"
	case Briefing:
		return "Briefing"
	case Pickup:
		return "Pickup"
	case Layover:
		return "Layover"
	case Holiday:
		return "Holiday"
	case Sickness:
		return "Sick"
	default:
		return "Event"
	}
}
