package gip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/input"
)

func neutralReport() []byte {
	return make([]byte, 16)
}

func TestParseButtons(t *testing.T) {
	p := New()
	now := time.Now()

	rep := neutralReport()
	rep[0] = ButtonA | ButtonX
	rep[1] = ButtonStart

	events := p.Parse(rep, now)
	require.Len(t, events, 3)
	assert.Equal(t, input.EventButtonPress, events[0].Type)
	assert.Equal(t, input.ButtonA, events[0].Button)
	assert.Equal(t, input.ButtonX, events[1].Button)
	assert.Equal(t, input.ButtonStart, events[2].Button)

	// Releasing A keeps X and Start held.
	rep2 := neutralReport()
	rep2[0] = ButtonX
	rep2[1] = ButtonStart
	events = p.Parse(rep2, now)
	require.Len(t, events, 1)
	assert.Equal(t, input.EventButtonRelease, events[0].Type)
	assert.Equal(t, input.ButtonA, events[0].Button)
}

func TestParseMonotone(t *testing.T) {
	p := New()
	now := time.Now()
	rep := neutralReport()
	rep[0] = ButtonB
	rep[4] = 0xff
	rep[5] = 0x7f // LSX = 32767
	rep[12] = 200 // LT

	first := p.Parse(rep, now)
	assert.NotEmpty(t, first)
	// Identical bytes emit nothing on the second call.
	assert.Empty(t, p.Parse(rep, now))
}

func TestParseAxes(t *testing.T) {
	p := New()
	now := time.Now()
	rep := neutralReport()
	rep[offLStickX] = 0xff
	rep[offLStickX+1] = 0x7f

	events := p.Parse(rep, now)
	require.Len(t, events, 1)
	assert.Equal(t, input.EventAxisMove, events[0].Type)
	assert.Equal(t, input.AxisLStickX, events[0].Axis)
	assert.Equal(t, float32(1.0), events[0].Value)
	assert.Equal(t, int16(32767), events[0].Raw)

	// A change below the hysteresis threshold is swallowed.
	rep[offLStickX] = 0xfe
	assert.Empty(t, p.Parse(rep, now))
}

func TestParseTriggers(t *testing.T) {
	p := New()
	now := time.Now()
	rep := neutralReport()
	rep[offLTrigger] = 255

	events := p.Parse(rep, now)
	require.Len(t, events, 1)
	assert.Equal(t, input.EventTriggerMove, events[0].Type)
	assert.Equal(t, input.AxisLTrigger, events[0].Axis)
	assert.Equal(t, float32(1.0), events[0].Value)
	assert.True(t, events[0].Pressed)

	rep[offLTrigger] = 0
	events = p.Parse(rep, now)
	require.Len(t, events, 1)
	assert.False(t, events[0].Pressed)
}

func TestParseDPadTrailingPair(t *testing.T) {
	p := New()
	now := time.Now()
	rep := neutralReport()
	rep[offDPadH] = 0xff // -1: left
	rep[offDPadV] = 0x01 // +1: down

	events := p.Parse(rep, now)
	require.Len(t, events, 1)
	assert.Equal(t, input.EventDPadMove, events[0].Type)
	assert.Equal(t, int8(-1), events[0].DPadX)
	assert.Equal(t, int8(1), events[0].DPadY)
}

func TestParseDPadNibbleFallback(t *testing.T) {
	p := New()
	now := time.Now()
	// Minimum-length report: d-pad comes from the byte 0 nibble.
	rep := make([]byte, MinReportLen)
	rep[0] = ButtonDPadUp | ButtonDPadRight

	events := p.Parse(rep, now)
	require.Len(t, events, 1)
	assert.Equal(t, int8(1), events[0].DPadX)
	assert.Equal(t, int8(-1), events[0].DPadY)
}

func TestRejectsShortReports(t *testing.T) {
	p := New()
	assert.False(t, p.CanParse(make([]byte, 10)))
	assert.Empty(t, p.Parse(make([]byte, 10), time.Now()))
	// A zero-length read yields no events.
	assert.Empty(t, p.Parse(nil, time.Now()))
}
