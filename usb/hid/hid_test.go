package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemEncoding(t *testing.T) {
	cases := []struct {
		name string
		item Item
		want []byte
	}{
		{"usage page", UsagePage{Page: UsagePageGenericDesktop}, []byte{0x05, 0x01}},
		{"usage", Usage{Usage: UsageGamePad}, []byte{0x09, 0x05}},
		{"usage minimum", UsageMinimum{Min: 0x01}, []byte{0x19, 0x01}},
		{"usage maximum", UsageMaximum{Max: 0x0e}, []byte{0x29, 0x0e}},
		{"logical minimum zero", LogicalMinimum{Min: 0}, []byte{0x15, 0x00}},
		{"logical maximum byte", LogicalMaximum{Max: 1}, []byte{0x25, 0x01}},
		{"logical maximum 255 needs two bytes", LogicalMaximum{Max: 255}, []byte{0x26, 0xff, 0x00}},
		{"logical minimum negative", LogicalMinimum{Min: -127}, []byte{0x15, 0x81}},
		{"report size", ReportSize{Bits: 8}, []byte{0x75, 0x08}},
		{"report count", ReportCount{Count: 6}, []byte{0x95, 0x06}},
		{"report id", ReportID{ID: 3}, []byte{0x85, 0x03}},
		{"input data var abs", Input{Flags: MainData | MainVar | MainAbs}, []byte{0x81, 0x02}},
		{"input const", Input{Flags: MainConst}, []byte{0x81, 0x01}},
		{"input rel", Input{Flags: MainData | MainVar | MainRel}, []byte{0x81, 0x06}},
		{"output", Output{Flags: MainData | MainVar | MainAbs}, []byte{0x91, 0x02}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Report{Items: []Item{tc.item}}
			assert.Equal(t, tc.want, r.Bytes())
		})
	}
}

func TestCollectionNesting(t *testing.T) {
	r := Report{Items: []Item{
		Collection{Kind: CollectionApplication, Items: []Item{
			Collection{Kind: CollectionPhysical, Items: []Item{
				Usage{Usage: UsageX},
			}},
		}},
	}}
	assert.Equal(t, []byte{
		0xa1, 0x01,
		0xa1, 0x00,
		0x09, 0x30,
		0xc0,
		0xc0,
	}, r.Bytes())
}

// A boot keyboard report descriptor transcribed from a real device listing;
// the builder must reproduce it byte for byte.
func TestKeyboardDescriptor(t *testing.T) {
	r := Report{Items: []Item{
		UsagePage{Page: UsagePageGenericDesktop},
		Usage{Usage: UsageKeyboard},
		Collection{Kind: CollectionApplication, Items: []Item{
			UsagePage{Page: UsagePageKeyboard},
			UsageMinimum{Min: 0xe0},
			UsageMaximum{Max: 0xe7},
			LogicalMinimum{Min: 0},
			LogicalMaximum{Max: 1},
			ReportSize{Bits: 1},
			ReportCount{Count: 8},
			Input{Flags: MainData | MainVar | MainAbs},
			ReportCount{Count: 1},
			ReportSize{Bits: 8},
			Input{Flags: MainConst},
			ReportCount{Count: 6},
			ReportSize{Bits: 8},
			LogicalMinimum{Min: 0},
			LogicalMaximum{Max: 255},
			UsagePage{Page: UsagePageKeyboard},
			UsageMinimum{Min: 0},
			UsageMaximum{Max: 255},
			Input{Flags: MainData | MainArray | MainAbs},
		}},
	}}

	want := []byte{
		0x05, 0x01,
		0x09, 0x06,
		0xa1, 0x01,
		0x05, 0x07,
		0x19, 0xe0,
		0x29, 0xe7,
		0x15, 0x00,
		0x25, 0x01,
		0x75, 0x01,
		0x95, 0x08,
		0x81, 0x02,
		0x95, 0x01,
		0x75, 0x08,
		0x81, 0x01,
		0x95, 0x06,
		0x75, 0x08,
		0x15, 0x00,
		0x26, 0xff, 0x00,
		0x05, 0x07,
		0x19, 0x00,
		0x29, 0xff,
		0x81, 0x00,
		0xc0,
	}
	require.Equal(t, want, r.Bytes())
	assert.Equal(t, len(want), r.Length())
}
