package model

import "fmt"

// StationPhase tags what a station is doing in the current slot.
type StationPhase int

const (
	// PhaseBackoff means the station is counting down Backoff slots.
	PhaseBackoff StationPhase = iota
	// PhaseSending means the station holds the medium; Backoff is unused.
	PhaseSending
)

func (p StationPhase) String() string {
	switch p {
	case PhaseBackoff:
		return "BACKOFF"
	case PhaseSending:
		return "SENDING"
	default:
		return fmt.Sprintf("StationPhase(%d)", int(p))
	}
}

// Station is one contending node on the shared medium. Stations live for a
// single population run and are never shared between runs.
type Station struct {
	ID    int
	Phase StationPhase

	// Backoff is the number of slots left before the station may request
	// the medium. Only meaningful in PhaseBackoff.
	Backoff int

	// ContentionWindow is the exclusive upper bound for the next drawn
	// backoff value.
	ContentionWindow int

	CollisionsInARow int
	TotalPacketsSent int
}

// NewStation returns a station in PhaseBackoff with the given window and
// counter.
func NewStation(id, window, backoff int) *Station {
	return &Station{
		ID:               id,
		Phase:            PhaseBackoff,
		Backoff:          backoff,
		ContentionWindow: window,
	}
}

// Sending reports whether the station currently occupies the medium.
func (s *Station) Sending() bool {
	return s.Phase == PhaseSending
}

// Requesting reports whether the station's countdown has expired and it wants
// the medium this slot.
func (s *Station) Requesting() bool {
	return s.Phase == PhaseBackoff && s.Backoff == 0
}

func (s *Station) String() string {
	if s.Sending() {
		return fmt.Sprintf("station#%d[%s cw=%d sent=%d]", s.ID, s.Phase, s.ContentionWindow, s.TotalPacketsSent)
	}
	return fmt.Sprintf("station#%d[%s backoff=%d cw=%d collisions=%d sent=%d]",
		s.ID, s.Phase, s.Backoff, s.ContentionWindow, s.CollisionsInARow, s.TotalPacketsSent)
}
