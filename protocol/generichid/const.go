package generichid

// Button bitmasks, byte 0 low nibble.
const (
	Button1 = 0x01
	Button2 = 0x02
	Button3 = 0x04
	Button4 = 0x08
)

// D-pad fields, byte 0: bits 4-5 horizontal, bits 6-7 vertical.
//
// The field values follow the source hardware this layout was captured from:
// 1 means right (horizontal) or up (vertical), 2 means down, 3 means left.
// This conflicts with common hat encodings; devices with a proper report
// descriptor go through the descriptor-driven parser instead.
const (
	dpadHShift = 4
	dpadVShift = 6
	dpadMask   = 0x03
)

// Report byte offsets: bytes 1..4 are signed axes.
const (
	offButtons   = 0
	offAxisFirst = 1
	axisCount    = 4
)

// MinReportLen is the shortest accepted fixed-layout report.
const MinReportLen = 8
