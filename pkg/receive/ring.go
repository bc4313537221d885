package receive

import (
	"sync/atomic"

	"github.com/womat/debug"

	"girt/pkg/pulse"
)

// Capacity is the fixed size of the receive ring buffer.
const Capacity = 256

// Ring is the bounded queue of duration records between the edge handler
// (producer) and the consumer. Single producer, single consumer: the two
// sides never touch the same slot, so no lock is needed. A full buffer
// drops the incoming record and counts an overrun; stored records are
// never overwritten.
type Ring struct {
	buf  [Capacity]pulse.Duration
	widx uint32
	ridx uint32

	overruns uint64
	// wake is signaled whenever at least one record is available
	wake chan struct{}
}

// NewRing returns an empty ring buffer.
func NewRing() *Ring {
	return &Ring{wake: make(chan struct{}, 1)}
}

// Push appends a record. It never blocks; on a full buffer the record is
// dropped and the overrun counter incremented. Push reports whether the
// record was stored.
func (r *Ring) Push(d pulse.Duration) bool {
	w := atomic.LoadUint32(&r.widx)
	if w-atomic.LoadUint32(&r.ridx) >= Capacity {
		atomic.AddUint64(&r.overruns, 1)
		debug.WarningLog.Print("buffer overrun")
		return false
	}

	r.buf[w%Capacity] = d
	atomic.StoreUint32(&r.widx, w+1)

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Pop removes and returns the oldest record.
func (r *Ring) Pop() (pulse.Duration, bool) {
	rd := atomic.LoadUint32(&r.ridx)
	if rd == atomic.LoadUint32(&r.widx) {
		return 0, false
	}
	d := r.buf[rd%Capacity]
	atomic.StoreUint32(&r.ridx, rd+1)
	return d, true
}

// Drain removes and returns up to max records; max <= 0 drains everything.
func (r *Ring) Drain(max int) []pulse.Duration {
	if max <= 0 || max > Capacity {
		max = Capacity
	}

	out := make([]pulse.Duration, 0, max)
	for len(out) < max {
		d, ok := r.Pop()
		if !ok {
			break
		}
		out = append(out, d)
	}
	return out
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	return int(atomic.LoadUint32(&r.widx) - atomic.LoadUint32(&r.ridx))
}

// Overruns returns the number of records dropped on a full buffer.
func (r *Ring) Overruns() uint64 {
	return atomic.LoadUint64(&r.overruns)
}

// Wait returns the channel signaled whenever a record becomes available.
// Consumers block on it to implement read/poll semantics.
func (r *Ring) Wait() <-chan struct{} {
	return r.wake
}
