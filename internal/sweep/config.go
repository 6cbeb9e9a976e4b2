package sweep

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/contention-simulator/core"
)

// ErrInvalidRange is returned when the population range is empty or starts
// below one station.
var ErrInvalidRange = errors.New("invalid station range")

// ErrAccounting means per-station send counts disagree with the number of
// transmissions observed by the driver.
var ErrAccounting = errors.New("per-station sends do not match successful transmissions")

// Config describes one sweep over population sizes.
type Config struct {
	// MinStations and MaxStations bound the sweep, both inclusive.
	MinStations int
	MaxStations int

	SlotsPerRun int64

	// Seed is the base seed; population n runs with Seed+n.
	Seed uint64

	// Workers bounds how many populations run concurrently.
	Workers int

	// CheckInvariants verifies engine invariants after every slot.
	CheckInvariants bool

	Engine core.Config
}

// DefaultConfig sweeps 1..49 stations for one million slots each.
func DefaultConfig() Config {
	return Config{
		MinStations: 1,
		MaxStations: 49,
		SlotsPerRun: 1_000_000,
		Seed:        1,
		Workers:     1,
		Engine:      core.DefaultConfig(),
	}
}

// Validate checks the sweep bounds and the engine configuration.
func (c Config) Validate() error {
	if c.MinStations < 1 {
		return fmt.Errorf("%w: min stations %d below 1", ErrInvalidRange, c.MinStations)
	}
	if c.MaxStations < c.MinStations {
		return fmt.Errorf("%w: max stations %d below min %d", ErrInvalidRange, c.MaxStations, c.MinStations)
	}
	if c.SlotsPerRun < 1 {
		return fmt.Errorf("slots per run must be positive, got %d", c.SlotsPerRun)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Populations lists the station counts visited, in order.
func (c Config) Populations() []int {
	if c.MaxStations < c.MinStations {
		return nil
	}
	sizes := make([]int, 0, c.MaxStations-c.MinStations+1)
	for n := c.MinStations; n <= c.MaxStations; n++ {
		sizes = append(sizes, n)
	}
	return sizes
}

// SeedFor returns the seed used for a population of n stations.
func (c Config) SeedFor(n int) uint64 {
	return c.Seed + uint64(n)
}
