package xinput

// Button bitmasks, byte 0.
const (
	ButtonA         = 0x01
	ButtonB         = 0x02
	ButtonX         = 0x04
	ButtonY         = 0x08
	ButtonLShoulder = 0x10
	ButtonRShoulder = 0x20
	ButtonBack      = 0x40
	ButtonStart     = 0x80
)

// Report byte offsets. Axes are unsigned bytes centered at 128 with a +-127
// range; the d-pad pair is signed.
const (
	offButtons  = 0
	offLStickX  = 1
	offLStickY  = 2
	offRStickX  = 3
	offRStickY  = 4
	offLTrigger = 5
	offRTrigger = 6
	offDPadH    = 7
	offDPadV    = 8
)

// MinReportLen is the shortest accepted XInput report. The vertical d-pad
// byte is only present on longer reports.
const MinReportLen = 8
