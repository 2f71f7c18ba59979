package pipeline

import (
	"testing"

	"dutycal/internal/airport"
	"dutycal/internal/duty"
	"dutycal/internal/model"
)

func TestResolve(t *testing.T) {
	dir, _ := airport.Build([]airport.Record{
		{Code: "FRA", Canonical: "EDDF", Name: "Frankfurt"},
		{Code: "JFK", Name: "New York JFK"},
	})

	tests := []struct {
		name     string
		kind     duty.Kind
		want     []Leg
		wantWarn []string
	}{
		{
			name: "both resolved",
			kind: duty.Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"},
			want: []Leg{
				{Code: "FRA", Canonical: "EDDF", Name: "Frankfurt", Resolved: true},
				{Code: "JFK", Canonical: "JFK", Name: "New York JFK", Resolved: true},
			},
		},
		{
			name: "deadhead with miss",
			kind: duty.Deadhead{FlightNumber: "LH1", Origin: "XYZ", Destination: "FRA"},
			want: []Leg{
				{Code: "XYZ", Canonical: "XYZ", Name: "XYZ"},
				{Code: "FRA", Canonical: "EDDF", Name: "Frankfurt", Resolved: true},
			},
			wantWarn: []string{"XYZ"},
		},
		{
			name:     "both missing",
			kind:     duty.Flight{Origin: "AAA", Destination: "BBB"},
			want:     []Leg{{Code: "AAA", Canonical: "AAA", Name: "AAA"}, {Code: "BBB", Canonical: "BBB", Name: "BBB"}},
			wantWarn: []string{"AAA", "BBB"},
		},
		{name: "standby", kind: duty.Standby{}},
		{name: "unknown", kind: duty.Unknown{RawTitle: "FRA-JFK"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs, warnings := Resolve(tt.kind, dir)
			if len(legs) != len(tt.want) {
				t.Fatalf("legs = %+v, want %+v", legs, tt.want)
			}
			for i := range legs {
				if legs[i] != tt.want[i] {
					t.Errorf("leg %d = %+v, want %+v", i, legs[i], tt.want[i])
				}
			}
			if len(warnings) != len(tt.wantWarn) {
				t.Fatalf("warnings = %v, want codes %v", warnings, tt.wantWarn)
			}
			for i, w := range warnings {
				if w.Kind != model.WarningUnresolvedCode || w.Code != tt.wantWarn[i] {
					t.Errorf("warning %d = %+v", i, w)
				}
			}
		})
	}
}

func TestResolveNilDirectory(t *testing.T) {
	legs, warnings := Resolve(duty.Flight{Origin: "FRA", Destination: "JFK"}, nil)
	if len(legs) != 2 || legs[0].Resolved || legs[1].Resolved {
		t.Errorf("legs = %+v", legs)
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v", warnings)
	}
}
