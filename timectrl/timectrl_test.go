package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlotControllerRunNotifiesEverySlot(t *testing.T) {
	sc := NewSlotController(20 * time.Microsecond)

	var slots []int64
	sc.AddListener(func(slot int64) { slots = append(slots, slot) })

	n, err := sc.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 10 {
		t.Fatalf("Run advanced %d slots, want 10", n)
	}
	for i, s := range slots {
		if s != int64(i) {
			t.Fatalf("slot[%d] = %d", i, s)
		}
	}
	if got := sc.Now(); got != 10 {
		t.Fatalf("Now() = %d, want 10", got)
	}
	if got := sc.Elapsed(); got != 200*time.Microsecond {
		t.Fatalf("Elapsed() = %v, want 200µs", got)
	}
}

func TestSlotControllerListenersRunInOrder(t *testing.T) {
	sc := NewSlotController(time.Microsecond)
	var order []string
	sc.AddListener(func(int64) { order = append(order, "a") })
	sc.AddListener(func(int64) { order = append(order, "b") })

	if _, err := sc.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "a", "b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSlotControllerResumesAcrossRuns(t *testing.T) {
	sc := NewSlotController(time.Microsecond)
	if _, err := sc.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := sc.Run(context.Background(), 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sc.Now(); got != 7 {
		t.Fatalf("Now() = %d, want 7", got)
	}
}

func TestSlotControllerStopsOnCancel(t *testing.T) {
	sc := NewSlotController(time.Microsecond)
	ctx, cancel := context.WithCancel(context.Background())
	sc.AddListener(func(slot int64) {
		if slot == 10 {
			cancel()
		}
	})

	n, err := sc.Run(ctx, 1_000_000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if n != checkEvery {
		t.Fatalf("Run advanced %d slots, want %d", n, checkEvery)
	}
}
