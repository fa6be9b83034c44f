package switchhid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/input"
)

// report builds a full-state report with centered sticks.
func report() []byte {
	b := make([]byte, MinReportLen)
	b[0] = InputReportID
	packStick(b[6:9], 2048, 2048)
	packStick(b[9:12], 2048, 2048)
	return b
}

func packStick(dst []byte, x, y int) {
	dst[0] = byte(x)
	dst[1] = byte(x>>8)&0x0f | byte(y&0x0f)<<4
	dst[2] = byte(y >> 4)
}

func TestRequiresReportID(t *testing.T) {
	p := New()
	b := report()
	assert.True(t, p.CanParse(b))

	b[0] = 0x21 // subcommand reply, not an input report
	assert.False(t, p.CanParse(b))
	assert.Empty(t, p.Parse(b, time.Now()))
}

func TestButtons(t *testing.T) {
	p := New()
	now := time.Now()

	b := report()
	b[3] = ButtonA | ButtonZR // right-hand block, original byte 3
	b[4] = ButtonMinus        // left-hand block

	events := p.Parse(b, now)
	require.Len(t, events, 3)
	assert.Equal(t, input.ButtonA, events[0].Button)
	assert.Equal(t, input.ButtonRTrigger, events[1].Button)
	assert.Equal(t, input.ButtonBack, events[2].Button)

	assert.Empty(t, p.Parse(b, now))
}

func TestDPad(t *testing.T) {
	p := New()
	now := time.Now()

	b := report()
	b[4] = ButtonDPadUp | ButtonDPadLeft
	events := p.Parse(b, now)
	require.Len(t, events, 1)
	assert.Equal(t, input.EventDPadMove, events[0].Type)
	assert.Equal(t, int8(-1), events[0].DPadX)
	assert.Equal(t, int8(-1), events[0].DPadY)
}

func TestStickUnpack(t *testing.T) {
	p := New()
	now := time.Now()

	b := report()
	packStick(b[6:9], 4095, 0) // left stick full right, full down
	events := p.Parse(b, now)
	require.Len(t, events, 2)
	assert.Equal(t, input.AxisLStickX, events[0].Axis)
	assert.InDelta(t, 1.0, events[0].Value, 0.01)
	assert.Equal(t, input.AxisLStickY, events[1].Axis)
	assert.Equal(t, float32(-1.0), events[1].Value)
}

func TestCenteredSticksAreSilent(t *testing.T) {
	p := New()
	assert.Empty(t, p.Parse(report(), time.Now()))
}
