package dualshock

// Face button bitmasks, byte 0.
const (
	ButtonCross    = 0x01
	ButtonCircle   = 0x02
	ButtonSquare   = 0x04
	ButtonTriangle = 0x08
)

// Trigger bitmasks, byte 1 (L2/R2 as digital buttons).
const (
	ButtonL2 = 0x01
	ButtonR2 = 0x02
)

// Shoulder bitmasks, byte 7.
const (
	ButtonL1 = 0x01
	ButtonR1 = 0x02
)

// 8-way hat values carried in byte 6. 0 is up, values advance clockwise in
// 45 degree steps; 8 is neutral.
const (
	HatUp        = 0
	HatUpRight   = 1
	HatRight     = 2
	HatDownRight = 3
	HatDown      = 4
	HatDownLeft  = 5
	HatLeft      = 6
	HatUpLeft    = 7
	HatNeutral   = 8
)

// Report byte offsets. Stick axes are unsigned bytes centered at 128.
const (
	offButtons   = 0
	offTriggers  = 1
	offLStickX   = 2
	offLStickY   = 3
	offRStickX   = 4
	offRStickY   = 5
	offHat       = 6
	offShoulders = 7
)

// MinReportLen is the shortest accepted DualShock/DualSense report.
const MinReportLen = 8
