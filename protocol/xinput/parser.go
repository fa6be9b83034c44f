// Package xinput parses legacy Xbox 360 (XInput) 8-byte interrupt reports.
package xinput

import (
	"time"

	"github.com/Alia5/HIDRA/input"
)

const axisThreshold = 0.01

var buttonBits = []struct {
	mask uint8
	id   input.ButtonID
}{
	{ButtonA, input.ButtonA},
	{ButtonB, input.ButtonB},
	{ButtonX, input.ButtonX},
	{ButtonY, input.ButtonY},
	{ButtonLShoulder, input.ButtonLShoulder},
	{ButtonRShoulder, input.ButtonRShoulder},
	{ButtonBack, input.ButtonBack},
	{ButtonStart, input.ButtonStart},
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

// Parser decodes XInput reports with previous-state memory.
type Parser struct {
	buttons      uint8
	axesNorm     [4]float32
	triggersNorm [2]float32
	dpadH, dpadV int8
}

func New() *Parser { return &Parser{} }

// CanParse reports whether b is long enough for an XInput report.
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

	for i, ax := range axisOffsets {
		raw := int16(b[ax.offset]) - 128
		norm := input.NormalizeCentered8(b[ax.offset])
		if abs32(norm-p.axesNorm[i]) > axisThreshold {
			events = append(events, input.AxisMove(ax.id, norm, raw, now))
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
			p.triggersNorm[i] = norm
		}
	}

	h := clampDir(int8(b[offDPadH]))
	v := p.dpadV
	if len(b) > offDPadV {
		v = clampDir(int8(b[offDPadV]))
	}
	if h != p.dpadH || v != p.dpadV {
		events = append(events, input.DPadMove(h, v, now))
		p.dpadH = h
		p.dpadV = v
	}

	return events
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
