package protocol

import (
	"time"

	"github.com/Alia5/HIDRA/hiddesc"
	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/protocol/dualshock"
	"github.com/Alia5/HIDRA/protocol/generichid"
	"github.com/Alia5/HIDRA/protocol/gip"
	"github.com/Alia5/HIDRA/protocol/switchhid"
	"github.com/Alia5/HIDRA/protocol/xinput"
)

// Parser is the per-protocol report parser as a closed sum: exactly one
// variant is set, and dispatch is a switch on the kind. This keeps the hot
// path free of interface dispatch and allocation.
type Parser struct {
	kind    Kind
	gip     *gip.Parser
	xinput  *xinput.Parser
	ds      *dualshock.Parser
	sw      *switchhid.Parser
	generic *generichid.Parser
	desc    *hiddesc.Parser
}

// NewParser builds the parser for a protocol kind. GenericHid uses the fixed
// best-effort layout; use NewDescriptorParser when a report descriptor is
// available.
func NewParser(kind Kind) *Parser {
	p := &Parser{kind: kind}
	switch kind {
	case Gip:
		p.gip = gip.New()
	case XInput:
		p.xinput = xinput.New()
	case Ds4, Ds5:
		p.ds = dualshock.New()
	case SwitchHid:
		p.sw = switchhid.New()
	default:
		p.kind = GenericHid
		p.generic = generichid.New()
	}
	return p
}

// NewDescriptorParser builds a descriptor-driven parser for a generic HID
// device from its raw report descriptor.
func NewDescriptorParser(descriptor []byte) (*Parser, error) {
	d, err := hiddesc.FromDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	return &Parser{kind: GenericHid, desc: d}, nil
}

// Kind returns the protocol this parser decodes.
func (p *Parser) Kind() Kind { return p.kind }

// CanParse reports whether b looks like a report of this protocol.
func (p *Parser) CanParse(b []byte) bool {
	switch {
	case p.gip != nil:
		return p.gip.CanParse(b)
	case p.xinput != nil:
		return p.xinput.CanParse(b)
	case p.ds != nil:
		return p.ds.CanParse(b)
	case p.sw != nil:
		return p.sw.CanParse(b)
	case p.desc != nil:
		return p.desc.CanParse(b)
	case p.generic != nil:
		return p.generic.CanParse(b)
	}
	return false
}

// Parse decodes one raw report into the state changes it carries. A report
// identical to the previous one produces no events.
func (p *Parser) Parse(b []byte, now time.Time) []input.Event {
	switch {
	case p.gip != nil:
		return p.gip.Parse(b, now)
	case p.xinput != nil:
		return p.xinput.Parse(b, now)
	case p.ds != nil:
		return p.ds.Parse(b, now)
	case p.sw != nil:
		return p.sw.Parse(b, now)
	case p.desc != nil:
		return p.desc.Parse(b, now)
	case p.generic != nil:
		return p.generic.Parse(b, now)
	}
	return nil
}
