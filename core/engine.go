package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/contention-simulator/model"
)

// Config parameterises a contention engine.
type Config struct {
	InitialWindow int
	MaxWindow     int
	Timing        Timing
}

// DefaultConfig returns binary exponential backoff between windows of 31 and
// 1023 slots with DefaultTiming.
func DefaultConfig() Config {
	return Config{
		InitialWindow: 31,
		MaxWindow:     1023,
		Timing:        DefaultTiming(),
	}
}

// Validate checks the window bounds and timing constants.
func (c Config) Validate() error {
	if c.InitialWindow < 1 {
		return fmt.Errorf("initial contention window must be at least 1, got %d", c.InitialWindow)
	}
	if c.MaxWindow < c.InitialWindow {
		return fmt.Errorf("max contention window %d below initial window %d", c.MaxWindow, c.InitialWindow)
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	return nil
}

// GrowWindow applies one binary exponential backoff step to w, bounded by
// MaxWindow.
func (c Config) GrowWindow(w int) int {
	w = (w+1)*2 - 1
	if w > c.MaxWindow {
		return c.MaxWindow
	}
	return w
}

// SlotOutcome describes what happened on the medium during one slot.
type SlotOutcome struct {
	Slot int64

	// Busy is true when the medium was occupied at the start of the slot.
	Busy bool

	Requesting int
	Collision  bool

	// Blocked counts requesters that redrew because the medium was busy.
	Blocked int

	// Winner is the station that began transmitting, or model.NoStation.
	Winner   int
	Duration int

	// Released is the station whose transmission ended, or model.NoStation.
	Released int
}

// Started reports whether a transmission began in this slot.
func (o SlotOutcome) Started() bool {
	return o.Winner != model.NoStation
}

// SlotObserver is notified after every slot transition.
type SlotObserver func(SlotOutcome)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a per-slot observer.
func WithObserver(fn SlotObserver) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// Engine advances a set of stations contending for one channel, one slot at
// a time. It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	rng      Source
	stations []*model.Station
	channel  *model.Channel

	requesting []int
	slot       int64
	observers  []SlotObserver
}

// NewEngine builds stationCount stations with fresh backoffs drawn in
// [0, InitialWindow) and an idle channel.
func NewEngine(cfg Config, stationCount int, rng Source, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stationCount < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoStations, stationCount)
	}
	if rng == nil {
		return nil, errors.New("random source is nil")
	}

	e := &Engine{
		cfg:        cfg,
		rng:        rng,
		stations:   make([]*model.Station, stationCount),
		channel:    model.NewChannel(),
		requesting: make([]int, 0, stationCount),
	}
	for i := range e.stations {
		e.stations[i] = model.NewStation(i, cfg.InitialWindow, rng.IntN(cfg.InitialWindow))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Step performs one slot transition. Backoff counters are advanced first,
// then access is resolved against the channel state seen at the start of the
// slot, and finally an ongoing occupation is counted down. A transmission
// that starts in this slot is not counted down until the next one.
func (e *Engine) Step() SlotOutcome {
	out := SlotOutcome{
		Slot:     e.slot,
		Busy:     !e.channel.Idle,
		Winner:   model.NoStation,
		Released: model.NoStation,
	}

	e.requesting = e.requesting[:0]
	for i, s := range e.stations {
		if s.Sending() {
			continue
		}
		if s.Backoff > 0 {
			s.Backoff--
		}
		if s.Requesting() {
			e.requesting = append(e.requesting, i)
		}
	}
	out.Requesting = len(e.requesting)

	switch {
	case len(e.requesting) == 0:
	case out.Busy:
		e.deferRequests()
		out.Blocked = len(e.requesting)
	case len(e.requesting) > 1:
		e.collide()
		out.Collision = true
	default:
		out.Winner = e.requesting[0]
		out.Duration = e.transmit(out.Winner)
	}

	if out.Busy {
		out.Released = e.countdown()
	}

	e.slot++
	for _, fn := range e.observers {
		fn(out)
	}
	return out
}

// Run steps the engine n times and returns the last outcome.
func (e *Engine) Run(n int64) SlotOutcome {
	var out SlotOutcome
	for i := int64(0); i < n; i++ {
		out = e.Step()
	}
	return out
}

// collide penalises every requester identically: grow the window, redraw,
// and extend the collision streak.
func (e *Engine) collide() {
	for _, i := range e.requesting {
		s := e.stations[i]
		s.ContentionWindow = e.cfg.GrowWindow(s.ContentionWindow)
		s.Backoff = e.rng.IntN(s.ContentionWindow)
		s.CollisionsInARow++
	}
}

// deferRequests redraws requesters within their current window. Being
// blocked by an ongoing transmission is not a collision.
func (e *Engine) deferRequests() {
	for _, i := range e.requesting {
		s := e.stations[i]
		s.Backoff = e.rng.IntN(s.ContentionWindow)
	}
}

func (e *Engine) transmit(i int) int {
	s := e.stations[i]
	s.Phase = model.PhaseSending
	s.Backoff = 0
	s.TotalPacketsSent++

	slots := e.cfg.Timing.DrawExchange(e.rng)
	e.channel.Occupy(i, slots)
	return slots
}

func (e *Engine) countdown() int {
	e.channel.SendTimeRemaining--
	if e.channel.SendTimeRemaining > 0 {
		return model.NoStation
	}
	sender := e.channel.Release()
	if sender == model.NoStation {
		return sender
	}
	s := e.stations[sender]
	s.Phase = model.PhaseBackoff
	s.ContentionWindow = e.cfg.InitialWindow
	s.Backoff = e.rng.IntN(s.ContentionWindow)
	s.CollisionsInARow = 0
	return sender
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Slot returns the number of slots stepped so far.
func (e *Engine) Slot() int64 { return e.slot }

// StationCount returns the population size.
func (e *Engine) StationCount() int { return len(e.stations) }

// Station returns a copy of station i.
func (e *Engine) Station(i int) model.Station { return *e.stations[i] }

// Channel returns a copy of the channel state.
func (e *Engine) Channel() model.Channel { return *e.channel }

// StationSends returns total_packets_sent for each station.
func (e *Engine) StationSends() []int {
	sends := make([]int, len(e.stations))
	for i, s := range e.stations {
		sends[i] = s.TotalPacketsSent
	}
	return sends
}
