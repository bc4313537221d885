package receive

import "girt/pkg/pulse"

const (
	// pulseNoiseLimit is the accumulated pulse length, in microseconds,
	// above which a pulse is deemed real rather than a glitch.
	pulseNoiseLimit = 250
	// spaceNoiseLimit is the space length, in microseconds, above which
	// a space clearly separates two signals.
	spaceNoiseLimit = 20000
)

// filter merges spuriously short pulses into the surrounding space before
// records reach the ring buffer. Consumer IR receivers routinely produce
// sub-250us glitches inside long idle gaps; emitting those as data would
// corrupt every following record pair.
//
// The thresholds are fixed heuristics tuned for consumer IR noise, not a
// general smoothing filter.
type filter struct {
	ring *Ring

	// accumulators for the candidate space and the glitch pulses inside it
	space  uint32
	pulses uint32
	// pending is true once a space candidate has been opened
	pending bool
}

// record runs one tagged duration through the filter, enqueuing whatever
// it resolves. It runs in the edge handler and never blocks.
func (f *filter) record(l pulse.Duration) {
	if f.pending && l.IsPulse() {
		f.pulses += l.Value()
		if f.pulses > pulseNoiseLimit {
			// a real pulse terminates the candidate space
			f.flush()
		}
		return
	}

	if !l.IsPulse() {
		if !f.pending {
			if l.Value() > spaceNoiseLimit {
				f.space = l.Value()
				f.pending = true
				return
			}
		} else {
			if l.Value() > spaceNoiseLimit {
				// the pulses so far were noise inside one long space;
				// fold them in and keep accumulating
				f.space = clamp(f.space + f.pulses)
				f.space = clamp(f.space + l.Value())
				f.pulses = 0
				return
			}
			f.flush()
		}
	}

	f.ring.Push(l)
}

// flush emits the accumulated space and pulse, in that order, and resets
// the filter.
func (f *filter) flush() {
	f.ring.Push(pulse.New(f.space, false))
	f.ring.Push(pulse.New(f.pulses, true))
	f.space = 0
	f.pulses = 0
	f.pending = false
}

func clamp(v uint32) uint32 {
	if v > pulse.Mask {
		return pulse.Mask
	}
	return v
}
