// Package duty turns roster event titles into typed duty kinds and maps
// each kind to its reminder policy.
package duty

// Kind is the closed set of duty variants. The unexported method seals the
// interface to this package.
type Kind interface {
	// Name is the stable lower-case variant name used in config and logs.
	Name() string
	isKind()
}

// Kind names, also used as reminder policy keys.
const (
	NameFlight   = "flight"
	NameDeadhead = "deadhead"
	NameStandby  = "standby"
	NameTraining = "training"
	NameOff      = "off"
	NameBriefing = "briefing"
	NamePickup   = "pickup"
	NameLayover  = "layover"
	NameHoliday  = "holiday"
	NameSickness = "sickness"
	NameUnknown  = "unknown"
)

// Names lists every variant name in classification order, Unknown last.
var Names = []string{
	NameDeadhead,
	NameFlight,
	NameStandby,
	NameTraining,
	NameOff,
	NameBriefing,
	NamePickup,
	NameLayover,
	NameHoliday,
	NameSickness,
	NameUnknown,
}

// Flight is an operated flight from Origin to Destination.
type Flight struct {
	FlightNumber string
	Origin       string
	Destination  string
}

// Deadhead is a positioning flight as passenger.
type Deadhead struct {
	FlightNumber string
	Origin       string
	Destination  string
}

type Standby struct{}

// Training covers ground events: classroom, simulator and general events.
// Category is empty for general events.
type Training struct {
	Category    string
	Description string
}

type Off struct{}

// Briefing is the pre-rotation briefing at Station.
type Briefing struct {
	Station string
}

// Pickup is the hotel pickup at Station.
type Pickup struct {
	Station string
}

type Layover struct{}

type Holiday struct{}

type Sickness struct{}

// Unknown is the fallback for titles no rule matches.
type Unknown struct {
	RawTitle string
}

func (Flight) Name() string   { return NameFlight }
func (Deadhead) Name() string { return NameDeadhead }
func (Standby) Name() string  { return NameStandby }
func (Training) Name() string { return NameTraining }
func (Off) Name() string      { return NameOff }
func (Briefing) Name() string { return NameBriefing }
func (Pickup) Name() string   { return NamePickup }
func (Layover) Name() string  { return NameLayover }
func (Holiday) Name() string  { return NameHoliday }
func (Sickness) Name() string { return NameSickness }
func (Unknown) Name() string  { return NameUnknown }

func (Flight) isKind()   {}
func (Deadhead) isKind() {}
func (Standby) isKind()  {}
func (Training) isKind() {}
func (Off) isKind()      {}
func (Briefing) isKind() {}
func (Pickup) isKind()   {}
func (Layover) isKind()  {}
func (Holiday) isKind()  {}
func (Sickness) isKind() {}
func (Unknown) isKind()  {}

// Route returns the flight number and leg codes of flight-shaped kinds.
// ok is false for kinds that carry no airport codes.
func Route(k Kind) (flightNumber, origin, destination string, ok bool) {
	switch v := k.(type) {
	case Flight:
		return v.FlightNumber, v.Origin, v.Destination, true
	case Deadhead:
		return v.FlightNumber, v.Origin, v.Destination, true
	default:
		return "", "", "", false
	}
}
