package gip

// Button bitmasks, byte 0.
const (
	ButtonA         = 0x01
	ButtonB         = 0x02
	ButtonX         = 0x04
	ButtonY         = 0x08
	ButtonDPadUp    = 0x10
	ButtonDPadDown  = 0x20
	ButtonDPadLeft  = 0x40
	ButtonDPadRight = 0x80
)

// Button bitmasks, byte 1.
const (
	ButtonLShoulder = 0x01
	ButtonRShoulder = 0x02
	ButtonBack      = 0x04
	ButtonStart     = 0x08
)

// Report byte offsets.
const (
	offButtons0 = 0
	offButtons1 = 1
	offLStickX  = 4
	offLStickY  = 6
	offRStickX  = 8
	offRStickY  = 10
	offLTrigger = 12
	offRTrigger = 13
	offDPadH    = 14
	offDPadV    = 15
)

// MinReportLen is the shortest accepted GIP input report. Reports of exactly
// this length carry the d-pad in the byte 0 nibble; longer reports append the
// signed horizontal/vertical pair.
const MinReportLen = 15
