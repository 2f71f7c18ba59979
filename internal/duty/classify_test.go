package duty

import (
	"testing"

	"dutycal/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		title string
		want  Kind
	}{
		{"LH 400: FRA-JFK", Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"}},
		{"FRA-JFK LH400", Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"}},
		{"  \"lh 400: fra-jfk\". ", Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"}},
		{"XYZ-ABC LH9999", Flight{FlightNumber: "LH9999", Origin: "XYZ", Destination: "ABC"}},
		{"4U 9123: CGN-PMI", Flight{FlightNumber: "4U9123", Origin: "CGN", Destination: "PMI"}},
		{"EDDF-KJFK LH400", Flight{FlightNumber: "LH400", Origin: "EDDF", Destination: "KJFK"}},
		{"LH 400 FRA-JFK", Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"}},
		{"LH400 FRA-JFK", Flight{FlightNumber: "LH400", Origin: "FRA", Destination: "JFK"}},
		{"DH LH 1234: MUC-FRA", Deadhead{FlightNumber: "LH1234", Origin: "MUC", Destination: "FRA"}},
		{"DH MUC-FRA LH1234", Deadhead{FlightNumber: "LH1234", Origin: "MUC", Destination: "FRA"}},
		{"DH LH1234 MUC-FRA", Deadhead{FlightNumber: "LH1234", Origin: "MUC", Destination: "FRA"}},
		{"Standby", Standby{}},
		{"SBY", Standby{}},
		{"Airport Standby (AS1)", Standby{}},
		{"Simulator (LOFT 3)", Training{Category: "Simulator", Description: "LOFT 3"}},
		{"Mandatory Training (CRM)", Training{Category: "Training", Description: "CRM"}},
		{"GeneralEvent (Medical check)", Training{Category: "", Description: "Medical check"}},
		{"Training", Training{Category: "Training"}},
		{"Off Day (ORTSTAG)", Off{}},
		{"Off Day (OFF)", Off{}},
		{"off", Off{}},
		{"13:05 LT Briefing FRA", Briefing{Station: "FRA"}},
		{"Briefing", Briefing{}},
		{"06:30 LT Pickup JFK", Pickup{Station: "JFK"}},
		{"LAYOVER", Layover{}},
		{"Absence (U)", Holiday{}},
		{"Sickness (K)", Sickness{}},
		{"Sickness (KO)", Sickness{}},
		{"Company party", Unknown{RawTitle: "Company party"}},
		{"", Unknown{RawTitle: ""}},
	}
	for _, tt := range tests {
		got := Classify(tt.title)
		if got.Kind != tt.want {
			t.Errorf("Classify(%q) = %#v, want %#v", tt.title, got.Kind, tt.want)
		}
	}
}

func TestClassifyWarnings(t *testing.T) {
	tests := []struct {
		title    string
		wantWarn model.WarningKind
	}{
		{"Standby", ""},
		{"LH 400: FRA-JFK", ""},
		{"Company party", model.WarningUnclassified},
		{"LH 400: FRA", model.WarningMalformedRoute},
		{"LH 400: FRA-JF1", model.WarningMalformedRoute},
		{"FRA-JF1 LH400", model.WarningMalformedRoute},
		{"DH LH 400: FRA to JFK", model.WarningMalformedRoute},
	}
	for _, tt := range tests {
		got := Classify(tt.title)
		if tt.wantWarn == "" {
			if len(got.Warnings) != 0 {
				t.Errorf("Classify(%q) warnings = %v, want none", tt.title, got.Warnings)
			}
			continue
		}
		if len(got.Warnings) != 1 || got.Warnings[0].Kind != tt.wantWarn {
			t.Errorf("Classify(%q) warnings = %v, want one %s", tt.title, got.Warnings, tt.wantWarn)
		}
		if _, ok := got.Kind.(Unknown); !ok {
			t.Errorf("Classify(%q) kind = %#v, want Unknown", tt.title, got.Kind)
		}
	}
}

func TestClassifyUnknownKeepsRawTitle(t *testing.T) {
	title := "  Something odd.  "
	got := Classify(title)
	u, ok := got.Kind.(Unknown)
	if !ok {
		t.Fatalf("kind = %#v, want Unknown", got.Kind)
	}
	if u.RawTitle != title {
		t.Errorf("RawTitle = %q, want %q", u.RawTitle, title)
	}
}

func TestRulesFollowNames(t *testing.T) {
	if len(rules) != len(Names)-1 {
		t.Fatalf("rules = %d, names = %d", len(rules), len(Names))
	}
	for i, r := range rules {
		if r.name != Names[i] {
			t.Errorf("rule %d = %s, want %s", i, r.name, Names[i])
		}
	}
}

func TestRoute(t *testing.T) {
	fn, o, d, ok := Route(Deadhead{FlightNumber: "LH1", Origin: "FRA", Destination: "MUC"})
	if !ok || fn != "LH1" || o != "FRA" || d != "MUC" {
		t.Errorf("Route(Deadhead) = %q %q %q %v", fn, o, d, ok)
	}
	if _, _, _, ok := Route(Standby{}); ok {
		t.Error("Route(Standby) ok = true")
	}
}
