package transmit

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"

	"girt/pkg/carrier"
	"girt/pkg/pulse"
	"girt/pkg/raspberry"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

// tickClock advances by step microseconds on every read, simulating the
// cost of a clock sample.
type tickClock struct {
	now  int64
	step int64
}

func (c *tickClock) Now() int64 {
	c.now += c.step
	return c.now
}

// toggle is one recorded level write with the clock reading at the time.
type toggle struct {
	level bool
	at    int64
}

// recordPin records every level write against the synthetic clock.
type recordPin struct {
	clock   *tickClock
	gpio    int
	toggles []toggle
}

func (p *recordPin) Output(level bool) error       { return nil }
func (p *recordPin) Input(terminator string) error { return nil }
func (p *recordPin) Read() bool                    { return false }
func (p *recordPin) Unwatch()                      {}
func (p *recordPin) Pin() int                      { return p.gpio }
func (p *recordPin) Close() error                  { return nil }

func (p *recordPin) Set(level bool) {
	p.toggles = append(p.toggles, toggle{level, p.clock.now})
}

func (p *recordPin) Watch(edge raspberry.Edge, handler func(raspberry.Pin)) error {
	return nil
}

func newTestTransmitter(t *testing.T, npins int, freq uint32, invert bool) (*Transmitter, []*recordPin, *tickClock) {
	t.Helper()

	clock := &tickClock{step: 1}
	params, err := carrier.New(50, freq)
	require.NoError(t, err)

	pins := make([]*recordPin, npins)
	ifacePins := make([]raspberry.Pin, npins)
	for i := range pins {
		pins[i] = &recordPin{clock: clock, gpio: i}
		ifacePins[i] = pins[i]
	}

	tx, err := New(ifacePins, params, clock, freq > 0, invert)
	require.NoError(t, err)
	return tx, pins, clock
}

func TestSendValidation(t *testing.T) {
	tx, _, _ := newTestTransmitter(t, 1, 0, false)

	assert.ErrorIs(t, tx.Send(nil), ErrInvalidParameter)
	assert.ErrorIs(t, tx.Send([]uint32{500}), ErrInvalidParameter)
	assert.ErrorIs(t, tx.Send([]uint32{500, 1000, 300}), ErrInvalidParameter)
	assert.ErrorIs(t, tx.Send([]uint32{pulse.Mask + 1, 1000}), ErrInvalidParameter)
}

// TestSendRawIntervals checks the end-to-end shape of an uncarried burst:
// two active intervals of 500us and 300us separated and followed by idle,
// lines idle at completion.
func TestSendRawIntervals(t *testing.T) {
	tx, pins, _ := newTestTransmitter(t, 1, 0, false)

	require.NoError(t, tx.Send([]uint32{500, 1000, 300, 2000}))

	toggles := pins[0].toggles
	require.Len(t, toggles, 5)

	wantLevels := []bool{true, false, true, false, false}
	for i, tg := range toggles {
		assert.Equal(t, wantLevels[i], tg.level, "toggle %d", i)
	}

	wantIntervals := []int64{500, 1000, 300, 2000}
	for i, want := range wantIntervals {
		got := toggles[i+1].at - toggles[i].at
		assert.InDelta(t, want, got, 10, "interval %d", i)
	}
}

func TestSendInvertedLevels(t *testing.T) {
	tx, pins, _ := newTestTransmitter(t, 1, 0, true)

	require.NoError(t, tx.Send([]uint32{100, 100}))

	toggles := pins[0].toggles
	require.NotEmpty(t, toggles)
	assert.False(t, toggles[0].level, "active level must be inverted")
	assert.True(t, toggles[len(toggles)-1].level, "idle level must be inverted")
}

// TestSoftCarrierOvershootCarry checks that pulse overshoot is subtracted
// from the following space: the total burst time converges to the sum of
// the requested durations within one carrier half period.
func TestSoftCarrierOvershootCarry(t *testing.T) {
	pairs := [][2]uint32{
		{500, 1000},
		{600, 600},
		{1000, 2000},
		{437, 1873},
	}

	for _, pair := range pairs {
		tx, pins, _ := newTestTransmitter(t, 1, 38000, false)

		require.NoError(t, tx.Send([]uint32{pair[0], pair[1]}))

		toggles := pins[0].toggles
		require.Greater(t, len(toggles), 4, "carrier must toggle repeatedly")

		total := toggles[len(toggles)-1].at - toggles[0].at
		want := int64(pair[0] + pair[1])
		// one half period at 38 kHz is ~13us; allow a few clock samples
		// of overhead on top
		assert.InDelta(t, want, total, 20, "pair %v", pair)
	}
}

func TestSoftCarrierTogglesAllEnabledPins(t *testing.T) {
	tx, pins, _ := newTestTransmitter(t, 3, 38000, false)

	require.NoError(t, tx.SetMask(0b101))
	require.NoError(t, tx.Send([]uint32{500, 500}))

	assert.NotEmpty(t, pins[0].toggles)
	assert.Empty(t, pins[1].toggles, "masked pin must not be driven")
	assert.NotEmpty(t, pins[2].toggles)
}

func TestSetMask(t *testing.T) {
	tx, _, _ := newTestTransmitter(t, 3, 0, false)

	require.NoError(t, tx.SetMask(0b111))
	require.NoError(t, tx.SetMask(0b000))
	require.NoError(t, tx.SetMask(0b010))
	assert.Equal(t, uint32(0b010), tx.Mask())

	err := tx.SetMask(0b1000)
	var maskErr *TxMaskError
	require.ErrorAs(t, err, &maskErr)
	assert.Equal(t, 3, maskErr.Transmitters)
	assert.Equal(t, uint32(0b010), tx.Mask(), "rejected mask must not be applied")
}

func TestNewLimitsTransmitters(t *testing.T) {
	clock := &tickClock{step: 1}
	params, err := carrier.New(50, 0)
	require.NoError(t, err)

	_, err = New(nil, params, clock, false, false)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	pins := make([]raspberry.Pin, MaxTransmitters+1)
	for i := range pins {
		pins[i] = &recordPin{clock: clock, gpio: i}
	}
	_, err = New(pins, params, clock, false, false)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

// TestSendSpaceAbsorbsCarry checks that a space shorter than the carry
// still restores the idle level immediately.
func TestSendSpaceAbsorbsCarry(t *testing.T) {
	tx, pins, _ := newTestTransmitter(t, 1, 0, false)

	tx.sendSpace(-5)
	require.Len(t, pins[0].toggles, 1)
	assert.False(t, pins[0].toggles[0].level)
}
