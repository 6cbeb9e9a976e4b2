package sweep

import (
	"math"

	"github.com/signalsfoundry/contention-simulator/core"
)

// Counters accumulates per-slot outcomes for one population run.
type Counters struct {
	Slots      int64
	Occupied   int64
	Collisions int64
	Successes  int64
	Blocked    int64
}

// Observe folds one slot outcome into the counters.
func (c *Counters) Observe(out core.SlotOutcome) {
	c.Slots++
	if out.Busy {
		c.Occupied++
	}
	if out.Collision {
		c.Collisions++
	}
	if out.Started() {
		c.Successes++
	}
	c.Blocked += int64(out.Blocked)
}

// Throughput is the fraction of slots with the medium occupied.
func Throughput(occupied, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(occupied) / float64(total)
}

// CollisionProbability is collisions per successful transmission, or 0 when
// nothing was sent.
func CollisionProbability(collisions, successes int64) float64 {
	if successes <= 0 {
		return 0
	}
	return float64(collisions) / float64(successes)
}

// FairnessVariance is the population variance of each station's percentage
// share of successful sends around the equal share 100/n. It is 0 when
// nothing was sent.
func FairnessVariance(sends []int, successes int64) float64 {
	n := len(sends)
	if n == 0 || successes <= 0 {
		return 0
	}
	mean := 100.0 / float64(n)
	var variance float64
	for _, sent := range sends {
		share := float64(sent) / float64(successes) * 100
		variance += math.Pow(share-mean, 2) / float64(n)
	}
	return variance
}
