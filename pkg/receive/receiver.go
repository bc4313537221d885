// Package receive converts edge events on the IR input pin into a
// filtered, bounded stream of pulse/space duration records.
package receive

import (
	"fmt"
	"time"

	"github.com/womat/debug"

	"girt/pkg/pulse"
	"girt/pkg/raspberry"
	"girt/pkg/timing"
)

// ErrInvalidParameter rejects a sense value outside the Sense* range.
var ErrInvalidParameter = fmt.Errorf("invalid parameters")

// Sense polarity of the receiver: how the physical line level maps to
// pulse/space.
const (
	// SenseAuto requests statistical auto-detection at arm time.
	SenseAuto = -1
	// SenseActiveHigh means a high line level is a pulse.
	SenseActiveHigh = 0
	// SenseActiveLow means a low line level is a pulse.
	SenseActiveLow = 1
)

const (
	// longGap is the edge spacing, in microseconds, beyond which a gap
	// is "really long": unmeasurable, and suspicious enough to recheck
	// the sense polarity.
	longGap = 15 * 1000 * 1000

	// senseSamples is the number of level samples in the polarity vote.
	senseSamples = 9
	// senseSampleGap is the spacing between vote samples.
	senseSampleGap = 40 * time.Millisecond
	// senseSettle is the wait before the vote, for the receiver's power
	// supply to come up.
	senseSettle = 500 * time.Millisecond
)

// Receiver owns the input pin, the resolved sense polarity and the
// receive pipeline (edge decoder, noise filter, ring buffer).
//
// The edge handler runs on the GPIO event goroutine; it never blocks and
// recovers every anomaly locally. Everything else runs in caller context.
type Receiver struct {
	pin    raspberry.Pin
	clock  timing.Clock
	ring   *Ring
	filter filter

	sense int
	// lastEdge is the timestamp of the previous edge, in microseconds.
	// Reset when the handler is armed, mutated only by the handler.
	lastEdge int64

	// vote sizing and timing, adjusted by tests
	samples   int
	sampleGap time.Duration
	settle    time.Duration
}

// New returns a disarmed Receiver on the given input pin. sense is one of
// SenseAuto, SenseActiveHigh, SenseActiveLow.
func New(pin raspberry.Pin, clock timing.Clock, sense int) (*Receiver, error) {
	if sense < SenseAuto || sense > SenseActiveLow {
		return nil, ErrInvalidParameter
	}

	r := &Receiver{
		pin:       pin,
		clock:     clock,
		ring:      NewRing(),
		sense:     sense,
		samples:   senseSamples,
		sampleGap: senseSampleGap,
		settle:    senseSettle,
	}
	r.filter.ring = r.ring
	return r, nil
}

// Buffer returns the receive ring buffer.
func (r *Receiver) Buffer() *Ring {
	return r.ring
}

// Sense returns the resolved sense polarity, or SenseAuto before Arm.
func (r *Receiver) Sense() int {
	return r.sense
}

// Arm resolves the sense polarity if still unknown, resets the edge
// timestamp and installs the edge handler. The decoder must not run
// before the polarity is known.
func (r *Receiver) Arm() error {
	if r.sense == SenseAuto {
		r.detectSense()
	}

	r.lastEdge = r.clock.Now()
	return r.pin.Watch(raspberry.EdgeBoth, r.edge)
}

// Disarm removes the edge handler. Records already buffered stay
// available to the consumer.
func (r *Receiver) Disarm() {
	r.pin.Unwatch()
}

// Resume re-installs the edge handler after a Disarm, discarding the
// interval that passed in between.
func (r *Receiver) Resume() error {
	r.lastEdge = r.clock.Now()
	return r.pin.Watch(raspberry.EdgeBoth, r.edge)
}

// detectSense resolves the polarity by majority vote over repeated level
// samples. A mostly-high idle line means an active low receiver; ties
// resolve to active low.
func (r *Receiver) detectSense() {
	time.Sleep(r.settle)

	var nlow, nhigh int
	for i := 0; i < r.samples; i++ {
		if r.pin.Read() {
			nlow++
		} else {
			nhigh++
		}
		time.Sleep(r.sampleGap)
	}

	if nlow >= nhigh {
		r.sense = SenseActiveLow
	} else {
		r.sense = SenseActiveHigh
	}

	polarity := "high"
	if r.sense == SenseActiveLow {
		polarity = "low"
	}
	debug.InfoLog.Printf("auto-detected active %s receiver on GPIO pin %d", polarity, r.pin.Pin())
}

// edge decodes one edge event: the interval since the previous edge
// becomes a record tagged by the sampled level and the sense polarity,
// and goes through the noise filter into the ring buffer.
func (r *Receiver) edge(p raspberry.Pin) {
	level := 0
	if p.Read() {
		level = 1
	}

	now := r.clock.Now()
	delta := now - r.lastEdge

	var d pulse.Duration
	switch {
	case delta < 0:
		// the clock jumped backwards; substitute the sentinel and move on
		debug.WarningLog.Printf("clock jumped backwards: %d < %d", now, r.lastEdge)
		d = pulse.New(pulse.MaxValue, true)

	case delta > longGap:
		if level^r.sense == 0 {
			// a pulse after this long an idle period must be a space:
			// the polarity was misdetected, flip it
			debug.WarningLog.Printf("pulse after %dus gap, flipping sense polarity (level %d, sense %d)",
				delta, level, r.sense)
			r.sense ^= 1
		}
		d = pulse.New(pulse.MaxValue, level^r.sense == 0)

	default:
		d = pulse.New(uint32(delta), level^r.sense == 0)
	}

	r.filter.record(d)
	r.lastEdge = now
}
