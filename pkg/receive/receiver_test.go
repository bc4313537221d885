package receive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"girt/pkg/pulse"
	"girt/pkg/raspberry"
)

// manualClock is advanced explicitly between injected edges.
type manualClock struct {
	now int64
}

func (c *manualClock) Now() int64 { return c.now }

func newTestReceiver(t *testing.T, pin raspberry.Pin, clock *manualClock, sense int) *Receiver {
	t.Helper()

	r, err := New(pin, clock, sense)
	require.NoError(t, err)
	r.samples = senseSamples
	r.sampleGap = 0
	r.settle = 0
	return r
}

func armedReceiver(t *testing.T, sense int) (*Receiver, *raspberry.EmuPin, *manualClock) {
	t.Helper()

	chip, err := raspberry.OpenEmulator()
	require.NoError(t, err)
	p, err := chip.NewPin(18)
	require.NoError(t, err)
	pin := p.(*raspberry.EmuPin)
	require.NoError(t, pin.Input("pullup")) // idle high, active low receiver

	clock := &manualClock{}
	r := newTestReceiver(t, pin, clock, sense)
	require.NoError(t, r.Arm())
	return r, pin, clock
}

// levelPin serves a scripted sequence of level reads to the sense vote.
type levelPin struct {
	levels []bool
	idx    int
}

func (p *levelPin) Read() bool {
	l := p.levels[p.idx%len(p.levels)]
	p.idx++
	return l
}

func (p *levelPin) Output(level bool) error { return nil }

func (p *levelPin) Input(terminator string) error { return nil }

func (p *levelPin) Set(level bool) {}

func (p *levelPin) Watch(edge raspberry.Edge, handler func(raspberry.Pin)) error {
	return nil
}

func (p *levelPin) Unwatch() {}

func (p *levelPin) Pin() int { return 18 }

func (p *levelPin) Close() error { return nil }

func TestSenseAutoDetectMajority(t *testing.T) {
	tests := []struct {
		name   string
		levels []bool // one per sample, true = high
		want   int
	}{
		{
			// 5 high, 4 low: mostly-high idle means active low
			name:   "majority high resolves active low",
			levels: []bool{true, false, true, false, true, false, true, false, true},
			want:   SenseActiveLow,
		},
		{
			// 2 high, 7 low: mostly-low idle means active high
			name:   "majority low resolves active high",
			levels: []bool{false, false, true, false, false, false, true, false, false},
			want:   SenseActiveHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin := &levelPin{levels: tt.levels}
			clock := &manualClock{}
			r := newTestReceiver(t, pin, clock, SenseAuto)

			require.NoError(t, r.Arm())
			assert.Equal(t, tt.want, r.Sense())
		})
	}
}

// TestSenseTieResolvesActiveLow pins the tie-break direction: with equal
// votes the receiver is assumed active low.
func TestSenseTieResolvesActiveLow(t *testing.T) {
	pin := &levelPin{levels: []bool{true, false, true, false, true, false, true, false}}
	clock := &manualClock{}
	r := newTestReceiver(t, pin, clock, SenseAuto)
	r.samples = 8 // even vote, 4 high vs 4 low

	require.NoError(t, r.Arm())
	assert.Equal(t, SenseActiveLow, r.Sense())
}

func TestSenseOverrideSkipsVote(t *testing.T) {
	pin := &levelPin{levels: []bool{false}}
	clock := &manualClock{}
	r := newTestReceiver(t, pin, clock, SenseActiveLow)

	require.NoError(t, r.Arm())
	assert.Equal(t, SenseActiveLow, r.Sense())
	assert.Zero(t, pin.idx, "no samples read with an explicit override")
}

func TestNewRejectsInvalidSense(t *testing.T) {
	pin := &levelPin{levels: []bool{false}}

	_, err := New(pin, &manualClock{}, 2)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(pin, &manualClock{}, -2)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

// TestReceiveBurst decodes a realistic burst on an active low receiver:
// a long idle space, glitches merged by the noise filter, then the real
// records.
func TestReceiveBurst(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)

	// 30 ms idle, then the line drops: a 30000us space opens the
	// filter candidate
	clock.now += 30000
	pin.EmuEdge(false)
	// 50us glitch pulse inside the gap
	clock.now += 50
	pin.EmuEdge(true)
	// the gap continues for another 25 ms
	clock.now += 25000
	pin.EmuEdge(false)
	// a real 400us pulse ends the gap
	clock.now += 400
	pin.EmuEdge(true)

	got := r.Buffer().Drain(0)
	require.Len(t, got, 2)

	assert.False(t, got[0].IsPulse())
	assert.Equal(t, uint32(30000+50+25000), got[0].Value(), "glitch must be folded into the space")
	assert.True(t, got[1].IsPulse())
	assert.Equal(t, uint32(400), got[1].Value())
}

// TestReceiveAlternatingSignal checks plain decoding: edge spacings come
// out as records tagged by level and sense.
func TestReceiveAlternatingSignal(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)

	// open and flush a candidate so the following records pass raw
	clock.now += 25000
	pin.EmuEdge(false) // space 25000
	clock.now += 560
	pin.EmuEdge(true) // pulse 560
	clock.now += 1690
	pin.EmuEdge(false) // space 1690
	clock.now += 560
	pin.EmuEdge(true) // pulse 560

	got := r.Buffer().Drain(0)
	require.Len(t, got, 4)

	assert.Equal(t, pulse.New(25000, false), got[0])
	assert.Equal(t, pulse.New(560, true), got[1])
	assert.Equal(t, pulse.New(1690, false), got[2])
	assert.Equal(t, pulse.New(560, true), got[3])
}

// TestClockRegression substitutes the sentinel and keeps running.
func TestClockRegression(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)
	clock.now = 1000000
	require.NoError(t, r.Resume()) // lastEdge = 1000000

	clock.now = 999000 // jump backwards
	pin.EmuEdge(false)

	got := r.Buffer().Drain(0)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsPulse())
	assert.Equal(t, pulse.MaxValue, got[0].Value())

	// the decoder keeps going from the new timestamp
	clock.now += 560
	pin.EmuEdge(true)
	got = r.Buffer().Drain(0)
	require.Len(t, got, 1)
	assert.Equal(t, pulse.New(560, true), got[0])
}

// TestLongGapFlipsMisdetectedSense: a pulse classification after a >15s
// gap is implausible; the receiver flips its sense polarity and emits the
// gap sentinel.
func TestLongGapFlipsMisdetectedSense(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)

	// bring the line low so the anomalous edge can rise
	clock.now += 100
	pin.EmuEdge(false)
	r.Buffer().Drain(0)

	// 16 s of silence, then a rising edge: level high with sense
	// active-low would classify as a pulse, so the polarity flips
	clock.now += 16 * 1000 * 1000
	pin.EmuEdge(true)

	assert.Equal(t, SenseActiveHigh, r.Sense())

	// flush the pending sentinel space with a real pulse
	clock.now += 560
	pin.EmuEdge(false) // level low, sense active-high: pulse

	got := r.Buffer().Drain(0)
	require.Len(t, got, 2)
	assert.Equal(t, pulse.New(pulse.MaxValue, false), got[0], "gap sentinel space")
	assert.Equal(t, pulse.New(560, true), got[1])
}

// TestLongGapKeepsConsistentSense: the same gap with a consistent level
// emits the sentinel without touching the polarity.
func TestLongGapKeepsConsistentSense(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)

	clock.now += 16 * 1000 * 1000
	pin.EmuEdge(false) // level low, sense active-low: space, consistent

	assert.Equal(t, SenseActiveLow, r.Sense())

	clock.now += 560
	pin.EmuEdge(true)

	got := r.Buffer().Drain(0)
	require.Len(t, got, 2)
	assert.Equal(t, pulse.New(pulse.MaxValue, false), got[0])
	assert.Equal(t, pulse.New(560, true), got[1])
}

// TestDisarmStopsDecoding: edges after Disarm produce no records.
func TestDisarmStopsDecoding(t *testing.T) {
	r, pin, clock := armedReceiver(t, SenseActiveLow)

	r.Disarm()
	clock.now += 500
	pin.EmuEdge(false)

	assert.Zero(t, r.Buffer().Len())
}
