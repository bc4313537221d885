//go:build linux
// +build linux

package raspberry

import (
	"github.com/warthog618/gpio"
	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
)

// Chip represents a single GPIO chip that controls a set of lines.
//
// Inputs are requested through the GPIO character device (edge events,
// bias control). Outputs are driven through the memory mapped register
// interface, which keeps a single level write fast enough lines can be
// toggled at software carrier rates.
type Chip struct {
	gpiodChip *gpiod.Chip
	pins      map[int]*chipPin
}

// Open opens the named GPIO character device and maps the GPIO registers
// for output access.
func Open(chipname string) (*Chip, error) {
	c, err := gpiod.NewChip(chipname)
	if err != nil {
		return nil, err
	}

	if err = gpio.Open(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return &Chip{gpiodChip: c, pins: map[int]*chipPin{}}, nil
}

// IsChip reports whether the named GPIO chip exists on this system.
func IsChip(chipname string) bool {
	for _, name := range gpiod.Chips() {
		if name == chipname {
			return true
		}
	}
	return false
}

// NewPin requests control of a single pin on the chip.
func (c *Chip) NewPin(gpio int) (Pin, error) {
	if _, ok := c.pins[gpio]; ok {
		return nil, ErrInvalidParam
	}

	p := &chipPin{chip: c, gpio: gpio}
	c.pins[gpio] = p
	return p, nil
}

// Close releases the chip and unmaps the GPIO registers.
//
// It does not release any pins which may be requested - they must be
// closed independently.
func (c *Chip) Close() error {
	if err := gpio.Close(); err != nil {
		debug.ErrorLog.Printf("closing gpio memory map: %v", err)
	}
	return c.gpiodChip.Close()
}

type chipPin struct {
	chip *Chip
	gpio int

	// out is the memory mapped pin, set once Output is called
	out *gpio.Pin
	// in is the character device request, set once Input is called
	in         *gpiod.Line
	terminator string
}

func (p *chipPin) Output(level bool) error {
	p.out = gpio.NewPin(p.gpio)
	p.out.Output()
	p.Set(level)
	return nil
}

func (p *chipPin) Input(terminator string) error {
	p.terminator = terminator

	opts, err := p.inputOptions()
	if err != nil {
		return err
	}

	p.in, err = p.chip.gpiodChip.RequestLine(p.gpio, opts...)
	return err
}

func (p *chipPin) Set(level bool) {
	p.out.Write(gpio.Level(level))
}

func (p *chipPin) Read() bool {
	if p.in != nil {
		v, err := p.in.Value()
		if err != nil {
			debug.ErrorLog.Printf("reading pin %d: %v", p.gpio, err)
			return false
		}
		return v != 0
	}
	return bool(p.out.Read())
}

// Watch re-requests the input line with an edge event handler.
// The handler runs on the gpiod event goroutine and must not block.
func (p *chipPin) Watch(edge Edge, handler func(Pin)) error {
	var edgeOpt gpiod.LineReqOption
	switch edge {
	case EdgeRising:
		edgeOpt = gpiod.WithRisingEdge
	case EdgeFalling:
		edgeOpt = gpiod.WithFallingEdge
	case EdgeBoth:
		edgeOpt = gpiod.WithBothEdges
	default:
		return ErrInvalidParam
	}

	opts, err := p.inputOptions(edgeOpt,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) { handler(p) }))
	if err != nil {
		return err
	}

	if p.in != nil {
		if err = p.in.Close(); err != nil {
			return err
		}
		p.in = nil
	}

	p.in, err = p.chip.gpiodChip.RequestLine(p.gpio, opts...)
	return err
}

// Unwatch drops the edge handler, re-requesting the line as a plain input.
func (p *chipPin) Unwatch() {
	if p.in == nil {
		return
	}
	if err := p.in.Close(); err != nil {
		debug.ErrorLog.Printf("unwatching pin %d: %v", p.gpio, err)
	}
	p.in = nil

	if err := p.Input(p.terminator); err != nil {
		debug.ErrorLog.Printf("re-requesting pin %d: %v", p.gpio, err)
	}
}

func (p *chipPin) Pin() int {
	return p.gpio
}

func (p *chipPin) Close() error {
	delete(p.chip.pins, p.gpio)
	if p.in != nil {
		return p.in.Close()
	}
	return nil
}

func (p *chipPin) inputOptions(extra ...gpiod.LineReqOption) ([]gpiod.LineReqOption, error) {
	opts := []gpiod.LineReqOption{gpiod.AsInput}

	switch p.terminator {
	case "pullup":
		opts = append(opts, gpiod.WithPullUp)
	case "pulldown":
		opts = append(opts, gpiod.WithPullDown)
	case "none", "":
	default:
		return nil, ErrInvalidParam
	}

	return append(opts, extra...), nil
}
