// Package switchhid parses Nintendo Switch Pro Controller full-state (0x30)
// reports.
package switchhid

import (
	"time"

	"github.com/Alia5/HIDRA/input"
)

const axisThreshold = 0.01

var buttonBits = []struct {
	offset int
	mask   uint8
	id     input.ButtonID
}{
	{offButtonsRight, ButtonA, input.ButtonA},
	{offButtonsRight, ButtonB, input.ButtonB},
	{offButtonsRight, ButtonX, input.ButtonX},
	{offButtonsRight, ButtonY, input.ButtonY},
	{offButtonsRight, ButtonR, input.ButtonRShoulder},
	{offButtonsRight, ButtonZR, input.ButtonRTrigger},
	{offButtonsRight, ButtonPlus, input.ButtonStart},
	{offButtonsRight, ButtonRStick, input.ButtonRStick},
	{offButtonsLeft, ButtonL, input.ButtonLShoulder},
	{offButtonsLeft, ButtonZL, input.ButtonLTrigger},
	{offButtonsLeft, ButtonMinus, input.ButtonBack},
	{offButtonsLeft, ButtonLStick, input.ButtonLStick},
	{offButtonsMisc, ButtonHome, input.ButtonGuide},
	{offButtonsMisc, ButtonCapture, input.ButtonShare},
}

// Parser decodes Switch Pro reports with previous-state memory. Reports must
// carry the 0x30 report ID, which is stripped before parsing.
type Parser struct {
	prev         [3]uint8
	axesNorm     [4]float32
	dpadH, dpadV int8
}

func New() *Parser { return &Parser{} }

// CanParse reports whether b is a full-state report.
func (p *Parser) CanParse(b []byte) bool {
	return len(b) >= MinReportLen && b[0] == InputReportID
}

// Parse decodes one report and returns the state changes it carries.
func (p *Parser) Parse(b []byte, now time.Time) []input.Event {
	if !p.CanParse(b) {
		return nil
	}
	// Strip the report ID.
	b = b[1:]

	var events []input.Event

	for _, bit := range buttonBits {
		cur := b[bit.offset]&bit.mask != 0
		prev := p.prev[bit.offset-offButtonsRight]&bit.mask != 0
		if cur == prev {
			continue
		}
		if cur {
			events = append(events, input.ButtonPress(bit.id, now))
		} else {
			events = append(events, input.ButtonRelease(bit.id, now))
		}
	}
	p.prev[0] = b[offButtonsRight]
	p.prev[1] = b[offButtonsLeft]
	p.prev[2] = b[offButtonsMisc]

	h, v := dpadDirections(b[offButtonsLeft])
	if h != p.dpadH || v != p.dpadV {
		events = append(events, input.DPadMove(h, v, now))
		p.dpadH = h
		p.dpadV = v
	}

	lx, ly := unpackStick(b[offLStick : offLStick+3])
	rx, ry := unpackStick(b[offRStick : offRStick+3])
	sticks := []struct {
		raw int
		id  input.AxisID
	}{
		{lx, input.AxisLStickX},
		{ly, input.AxisLStickY},
		{rx, input.AxisRStickX},
		{ry, input.AxisRStickY},
	}
	for i, st := range sticks {
		raw := int16(st.raw - stickCenter)
		norm := normalize12(st.raw)
		if abs32(norm-p.axesNorm[i]) > axisThreshold {
			events = append(events, input.AxisMove(st.id, norm, raw, now))
			p.axesNorm[i] = norm
		}
	}

	return events
}

// unpackStick expands the three-byte packed pair of 12-bit stick values.
func unpackStick(b []byte) (x, y int) {
	x = int(b[0]) | int(b[1]&0x0f)<<8
	y = int(b[1]>>4) | int(b[2])<<4
	return x, y
}

// normalize12 maps a 12-bit stick value centered at 2048 into [-1,1].
// Fine per-unit geometry (asymmetric min/max) is the calibration layer's job.
func normalize12(v int) float32 {
	n := float32(v-stickCenter) / stickRange
	if n < -1 {
		n = -1
	}
	if n > 1 {
		n = 1
	}
	return n
}

func dpadDirections(left uint8) (h, v int8) {
	if left&ButtonDPadLeft != 0 {
		h = -1
	} else if left&ButtonDPadRight != 0 {
		h = 1
	}
	if left&ButtonDPadUp != 0 {
		v = -1
	} else if left&ButtonDPadDown != 0 {
		v = 1
	}
	return h, v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
