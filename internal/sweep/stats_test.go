package sweep

import (
	"math"
	"testing"

	"github.com/signalsfoundry/contention-simulator/core"
)

func TestFairnessVariance(t *testing.T) {
	cases := []struct {
		name      string
		sends     []int
		successes int64
		want      float64
	}{
		{"equal shares", []int{5, 5, 5, 5}, 20, 0},
		{"one station hogs", []int{10, 0}, 10, 2500},
		{"single station", []int{42}, 42, 0},
		{"nothing sent", []int{0, 0, 0}, 0, 0},
		{"no stations", nil, 5, 0},
		{"uneven", []int{3, 1}, 4, 625},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FairnessVariance(tc.sends, tc.successes)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("FairnessVariance(%v, %d) = %v, want %v", tc.sends, tc.successes, got, tc.want)
			}
		})
	}
}

func TestCollisionProbability(t *testing.T) {
	if got := CollisionProbability(3, 12); got != 0.25 {
		t.Fatalf("CollisionProbability(3, 12) = %v, want 0.25", got)
	}
	if got := CollisionProbability(7, 0); got != 0 {
		t.Fatalf("CollisionProbability(7, 0) = %v, want 0", got)
	}
}

func TestThroughput(t *testing.T) {
	if got := Throughput(250, 1000); got != 0.25 {
		t.Fatalf("Throughput(250, 1000) = %v, want 0.25", got)
	}
	if got := Throughput(1, 0); got != 0 {
		t.Fatalf("Throughput(1, 0) = %v, want 0", got)
	}
}

func TestCountersObserve(t *testing.T) {
	var c Counters
	c.Observe(core.SlotOutcome{Winner: -1, Released: -1, Collision: true})
	c.Observe(core.SlotOutcome{Winner: 2, Released: -1, Duration: 40})
	c.Observe(core.SlotOutcome{Winner: -1, Released: -1, Busy: true, Blocked: 3})

	want := Counters{Slots: 3, Occupied: 1, Collisions: 1, Successes: 1, Blocked: 3}
	if c != want {
		t.Fatalf("Counters = %+v, want %+v", c, want)
	}
}
