// Package pulse holds the duration record exchanged between the receiver
// and its consumers. A record is a microsecond interval tagged as pulse
// (IR light present) or space (line idle).
package pulse

import (
	"encoding/binary"
	"fmt"
)

const (
	// Flag marks a record as a pulse. Records without the flag are spaces.
	Flag uint32 = 0x01000000
	// Mask selects the microsecond magnitude of a record.
	Mask uint32 = 0x00FFFFFF
	// MaxValue is the longest representable interval. It doubles as the
	// "gap too long to measure" sentinel emitted by the receiver.
	MaxValue uint32 = Mask
)

// Duration is a single pulse or space record.
type Duration uint32

// New builds a record from a microsecond magnitude, clamping to MaxValue.
func New(usecs uint32, isPulse bool) Duration {
	if usecs > Mask {
		usecs = Mask
	}
	if isPulse {
		return Duration(usecs | Flag)
	}
	return Duration(usecs)
}

// Value returns the interval length in microseconds.
func (d Duration) Value() uint32 {
	return uint32(d) & Mask
}

// IsPulse reports whether the record is a pulse.
func (d Duration) IsPulse() bool {
	return uint32(d)&Flag != 0
}

func (d Duration) String() string {
	if d.IsPulse() {
		return fmt.Sprintf("pulse %dus", d.Value())
	}
	return fmt.Sprintf("space %dus", d.Value())
}

// AppendWire appends the 4 byte little endian wire form of the record,
// the same layout the record stream is read in.
func (d Duration) AppendWire(b []byte) []byte {
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], uint32(d))
	return append(b, w[:]...)
}

// FromWire decodes a record from its 4 byte wire form.
func FromWire(b []byte) (Duration, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("pulse: short record: %d bytes", len(b))
	}
	return Duration(binary.LittleEndian.Uint32(b)), nil
}
