package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/input"
)

func TestParserDispatch(t *testing.T) {
	for _, kind := range []Kind{Gip, XInput, Ds4, Ds5, SwitchHid, GenericHid} {
		p := NewParser(kind)
		assert.Equal(t, kind, p.Kind(), kind.String())
	}

	// An unknown kind falls back to the generic parser.
	p := NewParser(Unknown)
	assert.Equal(t, GenericHid, p.Kind())
}

func TestParserMonotoneAcrossKinds(t *testing.T) {
	reports := map[Kind][]byte{
		Gip:        append([]byte{0x01}, make([]byte, 15)...),
		XInput:     {0x01, 0x80, 0x80, 0x80, 0x80, 0x00, 0x00, 0x00},
		Ds4:        {0x01, 0x00, 0x80, 0x80, 0x80, 0x80, 0x08, 0x00},
		GenericHid: {0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	}
	for kind, report := range reports {
		p := NewParser(kind)
		require.True(t, p.CanParse(report), kind.String())
		first := p.Parse(report, time.Now())
		assert.NotEmpty(t, first, kind.String())
		assert.Empty(t, p.Parse(report, time.Now()), kind.String())
	}
}

func TestDescriptorParserDispatch(t *testing.T) {
	desc := []byte{
		0x05, 0x01, // Usage Page (Generic Desktop)
		0x09, 0x05, // Usage (Game Pad)
		0xa1, 0x01, // Collection (Application)
		0x05, 0x09, //   Usage Page (Button)
		0x19, 0x01,
		0x29, 0x08,
		0x15, 0x00,
		0x25, 0x01,
		0x75, 0x01,
		0x95, 0x08,
		0x81, 0x02,
		0xc0,
	}
	p, err := NewDescriptorParser(desc)
	require.NoError(t, err)
	assert.Equal(t, GenericHid, p.Kind())

	events := p.Parse([]byte{0x01}, time.Now())
	require.Len(t, events, 1)
	assert.Equal(t, input.ButtonA, events[0].Button)

	_, err = NewDescriptorParser([]byte{0x05})
	assert.Error(t, err)
}

func TestKindReportLengths(t *testing.T) {
	assert.Equal(t, 15, Gip.MinReportLen())
	assert.Equal(t, 8, XInput.MinReportLen())
	assert.Equal(t, 8, Ds4.MinReportLen())
	for _, k := range []Kind{Gip, XInput, Ds4, Ds5, SwitchHid, GenericHid} {
		assert.GreaterOrEqual(t, k.MaxReportLen(), k.MinReportLen())
	}
}
