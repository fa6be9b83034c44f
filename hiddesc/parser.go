package hiddesc

import (
	"time"

	"github.com/Alia5/HIDRA/input"
)

const axisThreshold = 0.01

// buttonUsageIDs maps HID button usages 1..16 onto the symbolic button set.
var buttonUsageIDs = [...]input.ButtonID{
	input.ButtonA,
	input.ButtonB,
	input.ButtonX,
	input.ButtonY,
	input.ButtonLShoulder,
	input.ButtonRShoulder,
	input.ButtonLTrigger,
	input.ButtonRTrigger,
	input.ButtonBack,
	input.ButtonStart,
	input.ButtonLStick,
	input.ButtonRStick,
	input.ButtonGuide,
	input.ButtonShare,
	input.ButtonView,
	input.ButtonMute,
}

// axisUsageIDs maps generic-desktop usages onto axis identifiers. Z and Rz
// are treated as triggers, matching common gamepad descriptors.
var axisUsageIDs = map[uint16]input.AxisID{
	UsageX:  input.AxisLStickX,
	UsageY:  input.AxisLStickY,
	UsageRx: input.AxisRStickX,
	UsageRy: input.AxisRStickY,
	UsageZ:  input.AxisLTrigger,
	UsageRz: input.AxisRTrigger,
}

// ButtonForUsage returns the symbolic button for a button-page usage.
func ButtonForUsage(usage uint16) input.ButtonID {
	if usage >= 1 && int(usage) <= len(buttonUsageIDs) {
		return buttonUsageIDs[usage-1]
	}
	return input.CustomButton(uint8(usage - 1))
}

// Parser decodes reports through a descriptor-derived field layout, with
// previous-state memory per channel.
type Parser struct {
	fields    []Field
	reportIDs map[uint8]struct{}
	stripID   bool

	buttons  map[input.ButtonID]bool
	axesNorm map[input.AxisID]float32
	hat      uint16
	hasHat   bool
}

// NewParser builds a parser from a parsed field layout.
func NewParser(fields []Field) *Parser {
	p := &Parser{
		fields:    fields,
		reportIDs: make(map[uint8]struct{}),
		buttons:   make(map[input.ButtonID]bool),
		axesNorm:  make(map[input.AxisID]float32),
		hat:       input.HatNeutral,
	}
	for _, f := range fields {
		if f.ReportID != 0 {
			p.reportIDs[f.ReportID] = struct{}{}
			p.stripID = true
		}
	}
	return p
}

// FromDescriptor parses the raw report descriptor and builds a parser.
func FromDescriptor(desc []byte) (*Parser, error) {
	fields, err := ParseDescriptor(desc)
	if err != nil {
		return nil, err
	}
	return NewParser(fields), nil
}

// CanParse reports whether b carries a report this layout describes.
func (p *Parser) CanParse(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if p.stripID {
		_, ok := p.reportIDs[b[0]]
		return ok
	}
	return true
}

// Parse decodes one report and returns the state changes it carries.
func (p *Parser) Parse(b []byte, now time.Time) []input.Event {
	if !p.CanParse(b) {
		return nil
	}
	reportID := uint8(0)
	if p.stripID {
		reportID = b[0]
		b = b[1:]
	}

	var events []input.Event

	for _, f := range p.fields {
		if f.IsConstant || f.ReportID != reportID {
			continue
		}
		if (f.BitOffset+f.BitLength+7)/8 > len(b) {
			continue
		}
		raw := extractBits(b, f.BitOffset, f.BitLength)
		value := int32(raw)
		if f.IsSigned {
			value = signExtend(raw, f.BitLength)
		}

		switch f.UsagePage {
		case PageButton:
			id := ButtonForUsage(f.Usage)
			cur := value != 0
			if cur == p.buttons[id] {
				continue
			}
			p.buttons[id] = cur
			if cur {
				events = append(events, input.ButtonPress(id, now))
			} else {
				events = append(events, input.ButtonRelease(id, now))
			}
		case PageGenericDesktop:
			if f.Usage == UsageHat {
				angle := hatAngle(value, f.LogicalMin, f.LogicalMax)
				if !p.hasHat || angle != p.hat {
					events = append(events, input.HatSwitch(angle, now))
					p.hat = angle
					p.hasHat = true
				}
				continue
			}
			id, ok := axisUsageIDs[f.Usage]
			if !ok {
				continue
			}
			norm := normalizeLogical(value, f.LogicalMin, f.LogicalMax)
			trigger := id == input.AxisLTrigger || id == input.AxisRTrigger
			if !trigger {
				// Axes span [-1,1]; triggers stay in [0,1].
				norm = norm*2 - 1
			}
			if abs32(norm-p.axesNorm[id]) <= axisThreshold {
				continue
			}
			p.axesNorm[id] = norm
			if trigger {
				events = append(events, input.TriggerMove(id, norm, uint8(clampI32(value, 0, 255)), now))
			} else {
				events = append(events, input.AxisMove(id, norm, int16(clampI32(value, -32768, 32767)), now))
			}
		}
	}

	return events
}

// extractBits pulls a little-endian bit field out of a report, the standard
// USB HID packing: fields fill each byte starting at its least significant
// bit.
func extractBits(data []byte, offset, length int) uint32 {
	var v uint32
	for i := 0; i < length; i++ {
		bit := offset + i
		if data[bit/8]>>(bit%8)&1 != 0 {
			v |= 1 << i
		}
	}
	return v
}

func signExtend(v uint32, bits int) int32 {
	if bits <= 0 || bits >= 32 {
		return int32(v)
	}
	if v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}

// normalizeLogical maps value into [0,1] across the logical range.
func normalizeLogical(v, lmin, lmax int32) float32 {
	if lmax <= lmin {
		return 0
	}
	n := float32(v-lmin) / float32(lmax-lmin)
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n
}

// hatAngle converts a hat value into degrees; out-of-range values (the usual
// null state) map to neutral.
func hatAngle(v, lmin, lmax int32) uint16 {
	if v < lmin || v > lmax || lmax <= lmin {
		return input.HatNeutral
	}
	positions := lmax - lmin + 1
	return uint16((v - lmin) * 360 / positions)
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
