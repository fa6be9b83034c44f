// Package generichid parses joysticks with no known protocol through a fixed
// best-effort layout. Devices that expose a usable report descriptor are
// handled by the descriptor-driven parser in hiddesc instead.
package generichid

import (
	"time"

	"github.com/Alia5/HIDRA/input"
)

const axisThreshold = 0.01

var buttonBits = []struct {
	mask uint8
	id   input.ButtonID
}{
	{Button1, input.ButtonA},
	{Button2, input.ButtonB},
	{Button3, input.ButtonX},
	{Button4, input.ButtonY},
}

var axisIDs = [axisCount]input.AxisID{
	input.AxisLStickX,
	input.AxisLStickY,
	input.AxisRStickX,
	input.AxisRStickY,
}

// Parser decodes fixed-layout generic reports with previous-state memory.
type Parser struct {
	buttons      uint8
	axesNorm     [axisCount]float32
	dpadH, dpadV int8
}

func New() *Parser { return &Parser{} }

// CanParse reports whether b is long enough for the fixed layout.
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
		cur := b[offButtons]&bit.mask != 0
		prev := p.buttons&bit.mask != 0
		if cur == prev {
			continue
		}
		if cur {
			events = append(events, input.ButtonPress(bit.id, now))
		} else {
			events = append(events, input.ButtonRelease(bit.id, now))
		}
	}
	p.buttons = b[offButtons]

	for i := 0; i < axisCount; i++ {
		raw := int8(b[offAxisFirst+i])
		norm := input.NormalizeSigned8(raw)
		if abs32(norm-p.axesNorm[i]) > axisThreshold {
			events = append(events, input.AxisMove(axisIDs[i], norm, int16(raw), now))
			p.axesNorm[i] = norm
		}
	}

	h := dpadHorizontal(b[offButtons] >> dpadHShift & dpadMask)
	v := dpadVertical(b[offButtons] >> dpadVShift & dpadMask)
	if h != p.dpadH || v != p.dpadV {
		events = append(events, input.DPadMove(h, v, now))
		p.dpadH = h
		p.dpadV = v
	}

	return events
}

// dpadHorizontal decodes the horizontal field: 1 is right, 3 is left.
func dpadHorizontal(field uint8) int8 {
	switch field {
	case 1:
		return 1
	case 3:
		return -1
	default:
		return 0
	}
}

// dpadVertical decodes the vertical field: 1 is up, 2 is down.
func dpadVertical(field uint8) int8 {
	switch field {
	case 1:
		return -1
	case 2:
		return 1
	default:
		return 0
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
