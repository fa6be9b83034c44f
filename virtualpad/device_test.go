package virtualpad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/hiddesc"
	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/usbip"
)

func TestBuildReport(t *testing.T) {
	st := InputState{
		Buttons:  0x2a05,
		Hat:      2,
		Axes:     [4]uint8{0x80, 0x7f, 0x00, 0xff},
		Triggers: [2]uint8{0x10, 0xf0},
	}
	b := st.BuildReport()
	require.Len(t, b, InputReportSize)
	assert.Equal(t, uint8(0x05), b[0])
	assert.Equal(t, uint8(0x2a), b[1]) // upper button bits masked to 14 bits
	assert.Equal(t, uint8(0x02), b[2])
	assert.Equal(t, []byte{0x80, 0x7f, 0x00, 0xff}, b[3:7])
	assert.Equal(t, []byte{0x10, 0xf0}, b[7:9])
}

// The registered report descriptor must describe exactly the layout
// BuildReport emits. Walking it with the descriptor interpreter cross-checks
// both.
func TestReportDescriptorMatchesLayout(t *testing.T) {
	fields, err := hiddesc.ParseDescriptor(reportDescriptor.Bytes())
	require.NoError(t, err)

	var inputBits int
	for _, f := range fields {
		inputBits += f.BitLength
	}
	assert.Equal(t, InputReportSize*8, inputBits)

	// 14 button fields at the start.
	for i := 0; i < 14; i++ {
		assert.Equal(t, uint16(hiddesc.PageButton), fields[i].UsagePage)
		assert.Equal(t, uint16(i+1), fields[i].Usage)
		assert.Equal(t, i, fields[i].BitOffset)
	}

	// Hat after the two padding bits (one constant field per padding bit).
	hat := fields[16]
	assert.Equal(t, uint16(hiddesc.UsageHat), hat.Usage)
	assert.Equal(t, 16, hat.BitOffset)
	assert.Equal(t, 4, hat.BitLength)
}

func TestDescriptorDrivenParseOfPadReport(t *testing.T) {
	p, err := hiddesc.FromDescriptor(reportDescriptor.Bytes())
	require.NoError(t, err)

	st := InputState{Buttons: 0x0001, Hat: HatNeutral, Axes: [4]uint8{255, 128, 128, 128}}
	events := p.Parse(st.BuildReport(), time.Now())

	var sawA, sawX bool
	for _, ev := range events {
		if ev.Type == input.EventButtonPress && ev.Button == input.ButtonA {
			sawA = true
		}
		if ev.Type == input.EventAxisMove && ev.Axis == input.AxisLStickX {
			sawX = true
			assert.Equal(t, float32(1.0), ev.Value)
		}
	}
	assert.True(t, sawA)
	assert.True(t, sawX)
}

func TestInterruptInServesState(t *testing.T) {
	g := NewGamepad(0x1234, 0x5678, "pad")
	g.SetState(InputState{Buttons: 0x0003, Hat: HatNeutral})

	report := g.HandleTransfer(1, usbip.DirIn, nil)
	require.Len(t, report, InputReportSize)
	assert.Equal(t, uint8(0x03), report[0])
	assert.Equal(t, uint8(HatNeutral), report[2])

	assert.Nil(t, g.HandleTransfer(2, usbip.DirIn, nil))
}

func TestOutputReportDispatchesRumble(t *testing.T) {
	g := NewGamepad(0x1234, 0x5678, "pad")

	var got RumbleState
	var led uint8
	g.SetRumbleCallback(func(r RumbleState) { got = r })
	g.SetLEDCallback(func(p uint8) { led = p })

	g.HandleTransfer(1, usbip.DirOut, []byte{255, 128, 3})
	assert.Equal(t, float32(1.0), got.Left)
	assert.InDelta(t, 0.5, got.Right, 0.01)
	assert.Equal(t, uint8(3), led)
}

func TestSetReportControlDispatchesRumble(t *testing.T) {
	g := NewGamepad(0x1234, 0x5678, "pad")

	var got RumbleState
	g.SetRumbleCallback(func(r RumbleState) { got = r })

	// SET_REPORT(output) on EP0.
	resp, handled := g.HandleControl(0x21, 0x09, 0x0200, 0, 3, []byte{51, 102, 0})
	assert.True(t, handled)
	assert.Nil(t, resp)
	assert.InDelta(t, 0.2, got.Left, 0.01)
	assert.InDelta(t, 0.4, got.Right, 0.01)
}

func TestGetReportControlReturnsInput(t *testing.T) {
	g := NewGamepad(0x1234, 0x5678, "pad")
	g.SetState(InputState{Buttons: 0x0001, Hat: HatNeutral})

	resp, handled := g.HandleControl(0xa1, 0x01, 0x0100, 0, InputReportSize, nil)
	assert.True(t, handled)
	require.Len(t, resp, InputReportSize)
	assert.Equal(t, uint8(0x01), resp[0])
}

func TestIdentityOverride(t *testing.T) {
	g := NewGamepad(0xdead, 0xbeef, "custom pad")
	desc := g.GetDescriptor()
	assert.Equal(t, uint16(0xdead), desc.Device.IDVendor)
	assert.Equal(t, uint16(0xbeef), desc.Device.IDProduct)
	assert.Equal(t, "custom pad", desc.Strings[2])
}
