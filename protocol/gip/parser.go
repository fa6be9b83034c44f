// Package gip parses Xbox One/Series (GIP) interrupt input reports.
package gip

import (
	"encoding/binary"
	"time"

	"github.com/Alia5/HIDRA/input"
)

// axisThreshold is the minimum normalized change that produces an event.
const axisThreshold = 0.01

var buttonBits = []struct {
	offset int
	mask   uint8
	id     input.ButtonID
}{
	{offButtons0, ButtonA, input.ButtonA},
	{offButtons0, ButtonB, input.ButtonB},
	{offButtons0, ButtonX, input.ButtonX},
	{offButtons0, ButtonY, input.ButtonY},
	{offButtons1, ButtonLShoulder, input.ButtonLShoulder},
	{offButtons1, ButtonRShoulder, input.ButtonRShoulder},
	{offButtons1, ButtonBack, input.ButtonBack},
	{offButtons1, ButtonStart, input.ButtonStart},
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

// Parser decodes GIP reports and remembers the previous state so that only
// changes are emitted.
type Parser struct {
	buttons      [2]uint8
	axes         [4]int16
	axesNorm     [4]float32
	triggers     [2]uint8
	triggersNorm [2]float32
	dpadH, dpadV int8
}

func New() *Parser { return &Parser{} }

// CanParse reports whether b looks like a GIP input report.
func (p *Parser) CanParse(b []byte) bool {
	return len(b) >= MinReportLen
}

// Parse decodes one report and returns the state changes it carries.
// Two successive identical reports produce no events on the second call.
func (p *Parser) Parse(b []byte, now time.Time) []input.Event {
	if !p.CanParse(b) {
		return nil
	}

	var events []input.Event

	for _, bit := range buttonBits {
		cur := b[bit.offset]&bit.mask != 0
		prev := p.buttons[bit.offset]&bit.mask != 0
		if cur == prev {
			continue
		}
		if cur {
			events = append(events, input.ButtonPress(bit.id, now))
		} else {
			events = append(events, input.ButtonRelease(bit.id, now))
		}
	}
	p.buttons[0] = b[offButtons0]
	p.buttons[1] = b[offButtons1]

	for i, ax := range axisOffsets {
		raw := int16(binary.LittleEndian.Uint16(b[ax.offset : ax.offset+2]))
		norm := input.NormalizeSigned16(raw)
		if abs32(norm-p.axesNorm[i]) > axisThreshold {
			events = append(events, input.AxisMove(ax.id, norm, raw, now))
			p.axes[i] = raw
			p.axesNorm[i] = norm
		}
	}

	for i, off := range []int{offLTrigger, offRTrigger} {
		raw := b[off]
		norm := input.NormalizeUnsigned8(raw)
		if abs32(norm-p.triggersNorm[i]) > axisThreshold {
			id := input.AxisLTrigger
			if i == 1 {
				id = input.AxisRTrigger
			}
			events = append(events, input.TriggerMove(id, norm, raw, now))
			p.triggers[i] = raw
			p.triggersNorm[i] = norm
		}
	}

	h, v := p.decodeDPad(b)
	if h != p.dpadH || v != p.dpadV {
		events = append(events, input.DPadMove(h, v, now))
		p.dpadH = h
		p.dpadV = v
	}

	return events
}

// decodeDPad prefers the trailing signed pair when the report carries it and
// falls back to the byte 0 nibble for minimum-length reports.
func (p *Parser) decodeDPad(b []byte) (h, v int8) {
	if len(b) > offDPadV {
		return clampDir(int8(b[offDPadH])), clampDir(int8(b[offDPadV]))
	}
	if b[offButtons0]&ButtonDPadLeft != 0 {
		h = -1
	} else if b[offButtons0]&ButtonDPadRight != 0 {
		h = 1
	}
	if b[offButtons0]&ButtonDPadUp != 0 {
		v = -1
	} else if b[offButtons0]&ButtonDPadDown != 0 {
		v = 1
	}
	return h, v
}

func clampDir(v int8) int8 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
