package pipeline

import (
	"fmt"

	"dutycal/internal/airport"
	"dutycal/internal/duty"
	"dutycal/internal/model"
)

// Leg is one resolved endpoint of a flight.
type Leg struct {
	// Code is the code as it appeared in the title.
	Code      string
	Canonical string
	Name      string
	Resolved  bool
}

// Resolve looks up the airport codes carried by kind. Only Flight and
// Deadhead have legs. A code missing from dir yields an unresolved leg that
// repeats the original code and exactly one unresolved_code warning.
func Resolve(kind duty.Kind, dir *airport.Directory) ([]Leg, []model.Warning) {
	_, origin, destination, ok := duty.Route(kind)
	if !ok {
		return nil, nil
	}

	var warnings []model.Warning
	legs := make([]Leg, 0, 2)
	for _, code := range []string{origin, destination} {
		rec, found := dir.Lookup(code)
		if !found {
			legs = append(legs, Leg{Code: code, Canonical: code, Name: code})
			warnings = append(warnings, model.Warning{
				Kind:    model.WarningUnresolvedCode,
				Code:    code,
				Message: fmt.Sprintf("airport code %s not found in directory", code),
			})
			continue
		}
		canonical := rec.Canonical
		if canonical == "" {
			canonical = rec.Code
		}
		if canonical == "" {
			canonical = code
		}
		legs = append(legs, Leg{
			Code:      code,
			Canonical: canonical,
			Name:      rec.DisplayName(),
			Resolved:  true,
		})
	}
	return legs, warnings
}
