package raspberry

import "sync"

// Emulator is an in-memory GPIO chip. It backs the driver on systems
// without GPIO hardware and is used by tests to inject edges.
type Emulator struct {
	mu   sync.Mutex
	pins map[int]*EmuPin
}

// OpenEmulator returns an Emulator with no pins requested.
func OpenEmulator() (*Emulator, error) {
	return &Emulator{pins: map[int]*EmuPin{}}, nil
}

// NewPin requests control of a single emulated pin.
func (c *Emulator) NewPin(gpio int) (Pin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pins[gpio]; ok {
		return nil, ErrInvalidParam
	}

	p := &EmuPin{chip: c, gpio: gpio}
	c.pins[gpio] = p
	return p, nil
}

// Close releases the emulated chip.
func (c *Emulator) Close() error {
	return nil
}

// EmuPin is a single emulated pin. Writes update the stored level;
// EmuEdge drives the level from the "hardware" side and fires the
// watch handler like a real edge interrupt would.
type EmuPin struct {
	chip    *Emulator
	gpio    int
	level   bool
	edge    Edge
	handler func(Pin)
}

func (p *EmuPin) Output(level bool) error {
	p.level = level
	return nil
}

func (p *EmuPin) Input(terminator string) error {
	switch terminator {
	case "pullup":
		p.level = true
	case "pulldown", "none", "":
		p.level = false
	default:
		return ErrInvalidParam
	}
	return nil
}

func (p *EmuPin) Set(level bool) {
	p.level = level
}

func (p *EmuPin) Read() bool {
	return p.level
}

func (p *EmuPin) Watch(edge Edge, handler func(Pin)) error {
	if edge == EdgeNone {
		return ErrInvalidParam
	}
	p.edge = edge
	p.handler = handler
	return nil
}

func (p *EmuPin) Unwatch() {
	p.edge = EdgeNone
	p.handler = nil
}

func (p *EmuPin) Pin() int {
	return p.gpio
}

func (p *EmuPin) Close() error {
	p.chip.mu.Lock()
	defer p.chip.mu.Unlock()
	delete(p.chip.pins, p.gpio)
	return nil
}

// EmuEdge emulates a level change seen by the pin. The watch handler is
// called when the resulting edge matches the watched edge.
func (p *EmuPin) EmuEdge(level bool) {
	if level == p.level {
		return
	}
	p.level = level

	if p.handler == nil {
		return
	}
	switch p.edge {
	case EdgeBoth:
		p.handler(p)
	case EdgeRising:
		if level {
			p.handler(p)
		}
	case EdgeFalling:
		if !level {
			p.handler(p)
		}
	}
}
