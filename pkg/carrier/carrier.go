// Package carrier derives the software carrier timing from a requested
// frequency and duty cycle.
package carrier

import "fmt"

const (
	// TransmitterLatency is the minimum achievable line transition time
	// in nanoseconds. A carrier whose pulse or space width does not
	// exceed it cannot be honored by the bit-bang path.
	TransmitterLatency = 50
	// MaxFrequency is the highest accepted carrier frequency in Hz.
	MaxFrequency = 500000

	// disabled marks the derived widths of a switched-off carrier.
	disabled = -1
)

// ErrInvalidParameter rejects a duty cycle, frequency or carrier
// combination outside the supported range.
var ErrInvalidParameter = fmt.Errorf("invalid parameters")

// Params holds the carrier configuration and its derived widths.
// A zero frequency means the carrier is disabled and pulses are emitted
// as a fixed active level.
type Params struct {
	frequency uint32
	dutyCycle uint32

	// derived, in nanoseconds; disabled when no carrier is set
	period     int64
	pulseWidth int64
	spaceWidth int64
}

// New returns Params initialized with the given duty cycle and frequency.
func New(dutyCycle, frequency uint32) (*Params, error) {
	p := &Params{}
	if err := p.Set(dutyCycle, frequency); err != nil {
		return nil, err
	}
	return p, nil
}

// Set recomputes the carrier widths for the given duty cycle (percent)
// and frequency (Hz). On failure the previous parameters are kept.
func (p *Params) Set(dutyCycle, frequency uint32) error {
	if frequency == 0 {
		p.frequency = 0
		p.period = disabled
		p.pulseWidth = disabled
		p.spaceWidth = disabled
		return nil
	}

	if dutyCycle < 1 || dutyCycle > 100 || frequency > MaxFrequency {
		return ErrInvalidParameter
	}

	period := int64(1000000000) / int64(frequency)
	pulseWidth := period * int64(dutyCycle) / 100
	spaceWidth := period - pulseWidth

	// both half waves must be longer than a single line transition
	if pulseWidth <= TransmitterLatency || spaceWidth <= TransmitterLatency {
		return ErrInvalidParameter
	}

	p.dutyCycle = dutyCycle
	p.frequency = frequency
	p.period = period
	p.pulseWidth = pulseWidth
	p.spaceWidth = spaceWidth
	return nil
}

// SetDutyCycle updates the duty cycle (1-100), keeping the frequency.
func (p *Params) SetDutyCycle(dutyCycle uint32) error {
	if dutyCycle < 1 || dutyCycle > 100 {
		return ErrInvalidParameter
	}
	if p.frequency == 0 {
		p.dutyCycle = dutyCycle
		return nil
	}
	return p.Set(dutyCycle, p.frequency)
}

// SetFrequency updates the carrier frequency (0-500000 Hz, 0 disables),
// keeping the duty cycle.
func (p *Params) SetFrequency(frequency uint32) error {
	if frequency > MaxFrequency {
		return ErrInvalidParameter
	}
	return p.Set(p.dutyCycle, frequency)
}

// Enabled reports whether a carrier is configured.
func (p *Params) Enabled() bool {
	return p.frequency > 0
}

// Frequency returns the configured carrier frequency in Hz.
func (p *Params) Frequency() uint32 {
	return p.frequency
}

// DutyCycle returns the configured duty cycle in percent.
func (p *Params) DutyCycle() uint32 {
	return p.dutyCycle
}

// PulseWidth returns the carrier on time in nanoseconds.
func (p *Params) PulseWidth() int64 {
	return p.pulseWidth
}

// SpaceWidth returns the carrier off time in nanoseconds.
func (p *Params) SpaceWidth() int64 {
	return p.spaceWidth
}
