package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStations is returned when a run is requested with no stations.
	ErrNoStations = errors.New("station count must be at least one")
	// ErrMultipleSenders means more than one station holds the medium.
	ErrMultipleSenders = errors.New("more than one station is sending")
	// ErrWindowOutOfRange means a contention window left its bounds.
	ErrWindowOutOfRange = errors.New("contention window out of range")
	// ErrBackoffOutOfRange means a backoff counter is outside [0, window).
	ErrBackoffOutOfRange = errors.New("backoff counter out of range")
	// ErrChannelState means the channel and the stations disagree about
	// whether the medium is occupied.
	ErrChannelState = errors.New("channel state inconsistent with stations")
)

// CheckInvariants verifies the global engine invariants and returns the first
// violation found.
func (e *Engine) CheckInvariants() error {
	sender := -1
	for i, s := range e.stations {
		if s.ContentionWindow < e.cfg.InitialWindow || s.ContentionWindow > e.cfg.MaxWindow {
			return fmt.Errorf("%w: station %d window %d not in [%d, %d]",
				ErrWindowOutOfRange, i, s.ContentionWindow, e.cfg.InitialWindow, e.cfg.MaxWindow)
		}
		if s.Sending() {
			if sender >= 0 {
				return fmt.Errorf("%w: stations %d and %d", ErrMultipleSenders, sender, i)
			}
			sender = i
			continue
		}
		if s.Backoff < 0 || s.Backoff >= s.ContentionWindow {
			return fmt.Errorf("%w: station %d backoff %d with window %d",
				ErrBackoffOutOfRange, i, s.Backoff, s.ContentionWindow)
		}
	}

	ch := e.channel
	occupied := ch.SendTimeRemaining > 0 || sender >= 0
	if ch.Idle == occupied {
		return fmt.Errorf("%w: idle=%t remaining=%d sender=%d",
			ErrChannelState, ch.Idle, ch.SendTimeRemaining, sender)
	}
	if sender >= 0 && ch.Sender != sender {
		return fmt.Errorf("%w: channel sender %d, sending station %d", ErrChannelState, ch.Sender, sender)
	}
	return nil
}
