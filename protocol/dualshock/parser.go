// Package dualshock parses DualShock 4 and DualSense input reports. The two
// generations share the layout this driver consumes.
package dualshock

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
	{offButtons, ButtonCross, input.ButtonA},
	{offButtons, ButtonCircle, input.ButtonB},
	{offButtons, ButtonSquare, input.ButtonX},
	{offButtons, ButtonTriangle, input.ButtonY},
	{offTriggers, ButtonL2, input.ButtonLTrigger},
	{offTriggers, ButtonR2, input.ButtonRTrigger},
	{offShoulders, ButtonL1, input.ButtonLShoulder},
	{offShoulders, ButtonR1, input.ButtonRShoulder},
}

var axisOffsets = []struct {
	offset int
	id     input.AxisID
}{
	{offLStickX, input.AxisLStickX},
	{offLStickY, input.AxisLStickY},
	{offRStickX, input.AxisRStickX},
	{offRStickY, input.AxisRStickY},
}

// Parser decodes DualShock reports with previous-state memory.
type Parser struct {
	prev         [8]uint8
	hasPrev      bool
	axesNorm     [4]float32
	dpadH, dpadV int8
}

func New() *Parser { return &Parser{} }

// CanParse reports whether b is long enough for a DualShock report.
func (p *Parser) CanParse(b []byte) bool {
	return len(b) >= MinReportLen
}

// Parse decodes one report and returns the state changes it carries.
func (p *Parser) Parse(b []byte, now time.Time) []input.Event {
	if !p.CanParse(b) {
		return nil
	}

	var events []input.Event

	for _, bit := range buttonBits {
		cur := b[bit.offset]&bit.mask != 0
		prev := p.hasPrev && p.prev[bit.offset]&bit.mask != 0
		if cur == prev {
			continue
		}
		if cur {
			events = append(events, input.ButtonPress(bit.id, now))
		} else {
			events = append(events, input.ButtonRelease(bit.id, now))
		}
	}

	for i, ax := range axisOffsets {
		raw := int16(b[ax.offset]) - 128
		norm := input.NormalizeCentered8(b[ax.offset])
		if abs32(norm-p.axesNorm[i]) > axisThreshold {
			events = append(events, input.AxisMove(ax.id, norm, raw, now))
			p.axesNorm[i] = norm
		}
	}

	h, v := hatDirections(b[offHat])
	if h != p.dpadH || v != p.dpadV {
		events = append(events, input.DPadMove(h, v, now))
		p.dpadH = h
		p.dpadV = v
	}

	copy(p.prev[:], b[:MinReportLen])
	p.hasPrev = true

	return events
}

// hatDirections expands the 8-way hat value into horizontal and vertical
// components.
func hatDirections(hat uint8) (h, v int8) {
	switch hat {
	case HatUp:
		return 0, -1
	case HatUpRight:
		return 1, -1
	case HatRight:
		return 1, 0
	case HatDownRight:
		return 1, 1
	case HatDown:
		return 0, 1
	case HatDownLeft:
		return -1, 1
	case HatLeft:
		return -1, 0
	case HatUpLeft:
		return -1, -1
	default:
		return 0, 0
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
