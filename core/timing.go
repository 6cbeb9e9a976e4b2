package core

import (
	"errors"
	"fmt"
	"time"
)

// Timing holds the protocol constants that determine how long one
// RTS/CTS/DATA/ACK exchange keeps the medium busy. All gaps are in slots and
// frame sizes in bytes.
type Timing struct {
	SlotDuration time.Duration

	SIFSSlots int
	DIFSSlots int

	// DataRate is the number of bits carried per slot.
	DataRate int

	RTSBytes        int
	CTSBytes        int
	ACKBytes        int
	MaxPayloadBytes int
}

// DefaultTiming returns the reference 802.11-style constants: SIFS of one
// slot, DIFS of 2*slot+SIFS, 12 bits per slot, 20 byte RTS, 14 byte CTS and
// ACK, and DATA payloads below 100 bytes.
func DefaultTiming() Timing {
	return Timing{
		SlotDuration:    20 * time.Microsecond,
		SIFSSlots:       1,
		DIFSSlots:       3,
		DataRate:        12,
		RTSBytes:        20,
		CTSBytes:        14,
		ACKBytes:        14,
		MaxPayloadBytes: 100,
	}
}

// Validate reports whether the constants describe a usable exchange.
func (t Timing) Validate() error {
	if t.DataRate <= 0 {
		return fmt.Errorf("data rate must be positive, got %d", t.DataRate)
	}
	if t.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max payload must be positive, got %d", t.MaxPayloadBytes)
	}
	if t.SIFSSlots < 0 || t.DIFSSlots < 0 {
		return errors.New("inter-frame spacing must be non-negative")
	}
	if t.RTSBytes < 0 || t.CTSBytes < 0 || t.ACKBytes < 0 {
		return errors.New("control frame sizes must be non-negative")
	}
	return nil
}

// FrameSlots converts a frame size in bytes into whole slots at DataRate,
// rounding down.
func (t Timing) FrameSlots(bytes int) int {
	return bytes * 8 / t.DataRate
}

// OverheadSlots is the payload-independent part of one exchange.
func (t Timing) OverheadSlots() int {
	return t.DIFSSlots +
		t.FrameSlots(t.RTSBytes) + t.SIFSSlots +
		t.FrameSlots(t.CTSBytes) + t.SIFSSlots +
		t.SIFSSlots +
		t.FrameSlots(t.ACKBytes) + t.DIFSSlots
}

// ExchangeSlots returns DIFS + RTS + SIFS + CTS + SIFS + DATA + SIFS + ACK +
// DIFS for a payload of the given size. The result is at least one slot.
func (t Timing) ExchangeSlots(payloadBytes int) int {
	return t.exchange(t.FrameSlots(payloadBytes))
}

func (t Timing) exchange(dataSlots int) int {
	slots := t.OverheadSlots() + dataSlots
	if slots < 1 {
		return 1
	}
	return slots
}

// PayloadSlotLimit is the exclusive upper bound on DATA slots: the slot
// length of a MaxPayloadBytes frame, and never less than one.
func (t Timing) PayloadSlotLimit() int {
	if n := t.FrameSlots(t.MaxPayloadBytes); n > 1 {
		return n
	}
	return 1
}

// DrawExchange draws the DATA length uniformly in [0, PayloadSlotLimit())
// slots and returns the duration of the whole exchange. Drawing in slots
// keeps every duration equally likely.
func (t Timing) DrawExchange(rng Source) int {
	return t.exchange(rng.IntN(t.PayloadSlotLimit()))
}

// MinExchangeSlots and MaxExchangeSlots bound DrawExchange.
func (t Timing) MinExchangeSlots() int { return t.exchange(0) }
func (t Timing) MaxExchangeSlots() int { return t.exchange(t.PayloadSlotLimit() - 1) }

// Airtime converts a slot count into simulated wall time.
func (t Timing) Airtime(slots int64) time.Duration {
	return time.Duration(slots) * t.SlotDuration
}
