package timectrl

import (
	"context"
	"time"
)

// SlotClock gives read access to logical simulation time. Components that
// only need the current slot depend on this rather than on SlotController.
type SlotClock interface {
	// Now returns the number of slots elapsed.
	Now() int64
	// Elapsed converts Now into simulated airtime.
	Elapsed() time.Duration
}

// checkEvery is how many slots run between context checks.
const checkEvery = 4096

// SlotController drives logical slot time and notifies registered listeners
// once per slot. Listeners run synchronously on the caller's goroutine, in
// registration order.
type SlotController struct {
	SlotDuration time.Duration

	current   int64
	listeners []func(slot int64)
}

// NewSlotController constructs a controller at slot zero.
func NewSlotController(slotDuration time.Duration) *SlotController {
	return &SlotController{SlotDuration: slotDuration}
}

// Now returns the number of slots advanced so far. Implements SlotClock.
func (sc *SlotController) Now() int64 {
	return sc.current
}

// Elapsed returns the simulated airtime covered so far. Implements SlotClock.
func (sc *SlotController) Elapsed() time.Duration {
	return time.Duration(sc.current) * sc.SlotDuration
}

// AddListener registers a callback invoked on every slot.
func (sc *SlotController) AddListener(fn func(slot int64)) {
	sc.listeners = append(sc.listeners, fn)
}

// Run advances budget slots, or until ctx is cancelled. It returns the number
// of slots advanced by this call and ctx.Err() if it stopped early.
func (sc *SlotController) Run(ctx context.Context, budget int64) (int64, error) {
	var n int64
	for n < budget {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		slot := sc.current
		for _, fn := range sc.listeners {
			fn(slot)
		}
		sc.current++
		n++
	}
	return n, nil
}
