// Package raspberry abstracts the GPIO chip and its lines for the IR
// transceiver: level writes on the transmitter pins, level reads and
// edge watching on the receiver pin.
package raspberry

import "fmt"

var ErrInvalidParam = fmt.Errorf("invalid parameters")

// Edge selects which line transitions trigger a watch handler.
type Edge int

const (
	EdgeNone Edge = iota
	// EdgeRising indicates a low to high transition.
	EdgeRising
	// EdgeFalling indicates a high to low transition.
	EdgeFalling
	// EdgeBoth indicates either transition.
	EdgeBoth
)

// GPIO is a single GPIO chip controlling a set of pins.
type GPIO interface {
	// NewPin requests control of a single pin on the chip.
	// The pin number is the BCM GPIO number.
	NewPin(gpio int) (Pin, error)
	// Close releases the chip. Requested pins must be closed separately.
	Close() error
}

// Pin is a single requested line.
type Pin interface {
	// Output configures the pin as an output driven to the given level.
	// Output writes must have small, bounded latency; the software
	// carrier toggles through this path.
	Output(level bool) error
	// Input configures the pin as an input with the given terminator
	// ("pullup", "pulldown" or "none").
	Input(terminator string) error
	// Set drives an output pin to the given level.
	Set(level bool)
	// Read returns the pin level (true = high).
	Read() bool
	// Watch calls handler on every matching edge. There can only be
	// one watcher on the pin at a time. The handler must not block.
	Watch(edge Edge, handler func(Pin)) error
	// Unwatch removes any watch from the pin.
	Unwatch()
	// Pin returns the pin number this Pin represents.
	Pin() int
	// Close releases all resources held by the requested pin.
	Close() error
}
