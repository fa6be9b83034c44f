package switchhid

// InputReportID is the full-state report produced after the controller has
// been switched into report mode 0x30.
const InputReportID = 0x30

// Button bitmasks, byte 0 after the report ID is stripped (right-hand side).
const (
	ButtonB      = 0x01
	ButtonA      = 0x02
	ButtonY      = 0x04
	ButtonX      = 0x08
	ButtonR      = 0x10
	ButtonZR     = 0x20
	ButtonPlus   = 0x40
	ButtonRStick = 0x80
)

// Button bitmasks, byte 1 (left-hand side and d-pad).
const (
	ButtonDPadDown  = 0x01
	ButtonDPadRight = 0x02
	ButtonDPadLeft  = 0x04
	ButtonDPadUp    = 0x08
	ButtonL         = 0x10
	ButtonZL        = 0x20
	ButtonMinus     = 0x40
	ButtonLStick    = 0x80
)

// Button bitmasks, byte 2.
const (
	ButtonHome    = 0x01
	ButtonCapture = 0x02
)

// Stripped-report byte offsets. The button block starts after a two-byte
// timer/battery prefix; each stick is a 12-bit pair packed into three bytes.
const (
	offButtonsRight = 2
	offButtonsLeft  = 3
	offButtonsMisc  = 4
	offLStick       = 5
	offRStick       = 8
)

// Stick geometry: 12-bit values centered at 2048.
const (
	stickCenter = 2048
	stickRange  = 2048
)

// MinReportLen is the shortest accepted report including the report ID byte.
const MinReportLen = 12
