package duty

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"dutycal/internal/model"
)

// Result is the outcome of classifying one title. Warnings carry no event
// ID; the caller attaches it.
type Result struct {
	Kind     Kind
	Warnings []model.Warning
}

// rule is one entry of the ordered classification table. The first rule
// with a matching pattern decides the kind.
type rule struct {
	name     string
	patterns []*regexp.Regexp
	build    func(m map[string]string) (Kind, error)
}

const (
	// Airline designator plus flight number, e.g. "LH 400", "4U9123", "X3 2140A".
	flightNumberPattern = `(?:[A-Z\d][A-Z]|[A-Z]\d)\s?\d{1,4}[A-Z]?`
	routeSeparator      = `(?:->|[-–—→/>])`
	deadheadPrefix      = `(?:DH|DHD|Deadhead)\s+`
)

var strictRoute = regexp.MustCompile(`(?i)^(?P<origin>[A-Z]{3,4})\s*` + routeSeparator + `\s*(?P<destination>[A-Z]{3,4})$`)

// flightShapes returns the accepted title shapes for a flight, with an
// optional required prefix:
//
//	LH 400: FRA-JFK
//	FRA-JFK LH400
//	LH400 FRA-JFK
func flightShapes(prefix string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + prefix + `(?P<flight>` + flightNumberPattern + `)\s*:\s*(?P<route>.+)$`),
		regexp.MustCompile(`(?i)^` + prefix + `(?P<route>[A-Z]{3,4}\s*` + routeSeparator + `\s*\S+)\s+(?P<flight>` + flightNumberPattern + `)$`),
		regexp.MustCompile(`(?i)^` + prefix + `(?P<flight>` + flightNumberPattern + `)\s+(?P<route>[A-Z]{3,4}\s*` + routeSeparator + `\s*\S+)$`),
	}
}

var rules = []rule{
	{
		name:     NameDeadhead,
		patterns: flightShapes(deadheadPrefix),
		build: func(m map[string]string) (Kind, error) {
			fn, orig, dest, err := parseRoute(m)
			if err != nil {
				return nil, err
			}
			return Deadhead{FlightNumber: fn, Origin: orig, Destination: dest}, nil
		},
	},
	{
		name:     NameFlight,
		patterns: flightShapes(""),
		build: func(m map[string]string) (Kind, error) {
			fn, orig, dest, err := parseRoute(m)
			if err != nil {
				return nil, err
			}
			return Flight{FlightNumber: fn, Origin: orig, Destination: dest}, nil
		},
	},
	{
		name: NameStandby,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:(?:Airport|Home)\s+)?(?:SBY|STBY|Stand-?by|Reserve)(?:\s*\([^)]*\))?(?:\s+[A-Z]{3,4})?$`),
		},
		build: func(map[string]string) (Kind, error) { return Standby{}, nil },
	},
	{
		name: NameTraining,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?P<category>GeneralEvent|Mandatory Training|Training|Simulator|SIM|Classroom)\s*\((?P<description>.+)\)$`),
			regexp.MustCompile(`(?i)^(?P<category>Mandatory Training|Training|Simulator|SIM|Classroom)$`),
		},
		build: func(m map[string]string) (Kind, error) {
			return Training{Category: trainingCategory(m["category"]), Description: strings.TrimSpace(m["description"])}, nil
		},
	},
	{
		name: NameOff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:Off Day(?:\s*\((?:ORTSTAG|OFF)\))?|Day Off|Off|Rest Day|Free Day)$`),
		},
		build: func(map[string]string) (Kind, error) { return Off{}, nil },
	},
	{
		name: NameBriefing,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:\d{1,2}:\d{2}\s*(?:LT\s+)?)?Briefing(?:\s+(?P<station>[A-Z]{3,4}))?$`),
		},
		build: func(m map[string]string) (Kind, error) {
			return Briefing{Station: strings.ToUpper(m["station"])}, nil
		},
	},
	{
		name: NamePickup,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:\d{1,2}:\d{2}\s*(?:LT\s+)?)?(?:Hotel\s+)?Pick-?up(?:\s+(?P<station>[A-Z]{3,4}))?$`),
		},
		build: func(m map[string]string) (Kind, error) {
			return Pickup{Station: strings.ToUpper(m["station"])}, nil
		},
	},
	{
		name: NameLayover,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^Layover(?:\s+[A-Z]{3,4})?$`),
		},
		build: func(map[string]string) (Kind, error) { return Layover{}, nil },
	},
	{
		name: NameHoliday,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:Absence\s*\(U\)|Holiday|Vacation|Annual Leave)$`),
		},
		build: func(map[string]string) (Kind, error) { return Holiday{}, nil },
	},
	{
		name: NameSickness,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:Sickness\s*\(KO?\)|Sickness|Sick|Sick Leave)$`),
		},
		build: func(map[string]string) (Kind, error) { return Sickness{}, nil },
	},
}

// Classify maps a raw roster title to a duty kind. Titles matching no rule
// yield Unknown with an unclassified warning; titles shaped like a flight
// whose route cannot be parsed yield Unknown with a malformed_route warning.
func Classify(title string) Result {
	norm := normalizeTitle(title)

	for _, r := range rules {
		for _, re := range r.patterns {
			m := namedMatch(re, norm)
			if m == nil {
				continue
			}
			kind, err := r.build(m)
			if err != nil {
				return Result{
					Kind: Unknown{RawTitle: title},
					Warnings: []model.Warning{{
						Kind:    model.WarningMalformedRoute,
						Message: fmt.Sprintf("%s title %q: %v", r.name, title, err),
					}},
				}
			}
			return Result{Kind: kind}
		}
	}

	return Result{
		Kind: Unknown{RawTitle: title},
		Warnings: []model.Warning{{
			Kind:    model.WarningUnclassified,
			Message: fmt.Sprintf("could not determine duty type of title %q", title),
		}},
	}
}

func parseRoute(m map[string]string) (flightNumber, origin, destination string, err error) {
	route := strings.TrimSpace(m["route"])
	rm := namedMatch(strictRoute, route)
	if rm == nil {
		return "", "", "", fmt.Errorf("cannot parse route %q", route)
	}
	flightNumber = strings.ToUpper(strings.Join(strings.Fields(m["flight"]), ""))
	return flightNumber, strings.ToUpper(rm["origin"]), strings.ToUpper(rm["destination"]), nil
}

// trainingCategory maps roster categories to shorter labels. General events
// carry no useful category.
func trainingCategory(raw string) string {
	switch strings.ToLower(raw) {
	case "generalevent":
		return ""
	case "mandatory training", "training":
		return "Training"
	case "simulator", "sim":
		return "Simulator"
	case "classroom":
		return "Classroom"
	default:
		return raw
	}
}

func namedMatch(re *regexp.Regexp, s string) map[string]string {
	sub := re.FindStringSubmatch(s)
	if sub == nil {
		return nil
	}
	m := make(map[string]string, len(sub))
	for i, name := range re.SubexpNames() {
		if name != "" {
			m[name] = sub[i]
		}
	}
	return m
}

// normalizeTitle strips surrounding whitespace and punctuation that roster
// exports tend to add and collapses inner whitespace runs.
func normalizeTitle(title string) string {
	trimmed := strings.TrimFunc(title, func(r rune) bool {
		if unicode.IsSpace(r) {
			return true
		}
		return strings.ContainsRune("\"'`“”‘’.,;:•*·", r)
	})
	return strings.Join(strings.Fields(trimmed), " ")
}
