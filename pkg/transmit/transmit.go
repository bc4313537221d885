// Package transmit drives the IR transmitter pins for a sequence of
// alternating pulse/space durations, with an optional software generated
// carrier during the pulses.
package transmit

import (
	"fmt"

	"github.com/womat/debug"

	"girt/pkg/carrier"
	"girt/pkg/pulse"
	"girt/pkg/raspberry"
	"girt/pkg/timing"
)

// MaxTransmitters is the highest number of output pins a transmitter
// set can hold.
const MaxTransmitters = 8

// ErrInvalidParameter rejects a malformed duration sequence.
var ErrInvalidParameter = fmt.Errorf("invalid parameters")

// TxMaskError rejects a transmitter mask with bits beyond the configured
// transmitter count. Transmitters carries the count as a hint.
type TxMaskError struct {
	Transmitters int
}

func (e *TxMaskError) Error() string {
	return fmt.Sprintf("transmitter mask exceeds %d configured transmitters", e.Transmitters)
}

// Transmitter drives a set of output pins.
//
// Send runs to completion once started and busy-waits between toggles;
// the caller serializes Send against configuration changes and receive
// activity (see app).
type Transmitter struct {
	pins   []raspberry.Pin
	txMask uint32

	params      *carrier.Params
	clock       timing.Clock
	softCarrier bool
	// invert swaps the active and idle output levels
	invert bool
}

// New returns a Transmitter for the given output pins. All transmitters
// start enabled.
func New(pins []raspberry.Pin, params *carrier.Params, clock timing.Clock, softCarrier, invert bool) (*Transmitter, error) {
	if len(pins) == 0 || len(pins) > MaxTransmitters {
		return nil, ErrInvalidParameter
	}

	return &Transmitter{
		pins:        pins,
		txMask:      1<<len(pins) - 1,
		params:      params,
		clock:       clock,
		softCarrier: softCarrier,
		invert:      invert,
	}, nil
}

// SetMask selects which transmitters drive the signal. Masks with bits
// beyond the configured transmitter count are rejected with a TxMaskError
// carrying the count.
func (t *Transmitter) SetMask(mask uint32) error {
	if mask&(1<<len(t.pins)-1) != mask {
		return &TxMaskError{Transmitters: len(t.pins)}
	}
	t.txMask = mask
	return nil
}

// Mask returns the current transmitter mask.
func (t *Transmitter) Mask() uint32 {
	return t.txMask
}

// Transmitters returns the configured transmitter count.
func (t *Transmitter) Transmitters() int {
	return len(t.pins)
}

// Send emits the duration sequence: even indexes are pulses, odd indexes
// spaces, in microseconds. The sequence must have even length and every
// value must be representable. Pulse overshoot is carried into the
// following space so each pulse/space pair keeps its total length.
// All enabled pins are driven idle when the sequence completes.
func (t *Transmitter) Send(durations []uint32) error {
	if len(durations) == 0 || len(durations)%2 != 0 {
		return ErrInvalidParameter
	}
	for _, d := range durations {
		if d > pulse.Mask {
			return ErrInvalidParameter
		}
	}

	debug.DebugLog.Printf("sending %d durations, mask %#x, carrier %v Hz",
		len(durations), t.txMask, t.params.Frequency())

	var carry int64
	for i, d := range durations {
		if i%2 == 0 {
			carry = t.sendPulse(int64(d))
		} else {
			t.sendSpace(int64(d) - carry)
		}
	}
	t.setEnabled(t.idleLevel())

	return nil
}

// sendPulse drives the enabled pins active for length microseconds and
// returns the overshoot in microseconds (always >= 0).
func (t *Transmitter) sendPulse(length int64) int64 {
	if length <= 0 {
		return 0
	}

	if t.softCarrier && t.params.Enabled() {
		return t.sendPulseSoftCarrier(length)
	}

	t.setEnabled(t.activeLevel())
	timing.Delay(t.clock, length)
	return 0
}

// sendPulseSoftCarrier toggles the enabled pins at the carrier cadence for
// length microseconds. Toggles aim at an absolute elapsed-time target and
// the clock is re-read after each toggle, so rounding and write latency
// never accumulate as drift. Elapsed time is tracked in nanoseconds
// separately from the microsecond clock samples.
func (t *Transmitter) sendPulseSoftCarrier(length int64) int64 {
	length *= 1000

	var actual, target int64
	flag := false
	actualUS := t.clock.Now()

	for actual < length {
		if flag {
			t.setEnabled(t.idleLevel())
			target += t.params.SpaceWidth()
		} else {
			t.setEnabled(t.activeLevel())
			target += t.params.PulseWidth()
		}

		initialUS := actualUS
		// the carrier validation guarantees target stays ahead of actual
		if d := (target - actual) / 1000; d > 0 {
			timing.Delay(t.clock, d)
		}
		actualUS = t.clock.Now()
		actual += (actualUS - initialUS) * 1000
		flag = !flag
	}

	return (actual - length) / 1000
}

// sendSpace drives the enabled pins idle and waits length microseconds.
// Lengths <= 0 only restore the idle level; they absorb the pulse carry.
func (t *Transmitter) sendSpace(length int64) {
	t.setEnabled(t.idleLevel())
	if length <= 0 {
		return
	}
	timing.Delay(t.clock, length)
}

func (t *Transmitter) setEnabled(level bool) {
	for i, p := range t.pins {
		if t.txMask&(1<<i) != 0 {
			p.Set(level)
		}
	}
}

func (t *Transmitter) activeLevel() bool { return !t.invert }
func (t *Transmitter) idleLevel() bool   { return t.invert }
