// Package input defines the normalized controller event model shared by all
// report parsers and the mapping engine.
package input

import "fmt"

// ButtonID identifies a controller button independent of protocol.
type ButtonID uint8

const (
	ButtonA ButtonID = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLShoulder
	ButtonRShoulder
	ButtonLTrigger
	ButtonRTrigger
	ButtonBack
	ButtonStart
	ButtonLStick
	ButtonRStick
	ButtonGuide
	ButtonShare
	ButtonView
	ButtonMute
)

// buttonCustomBase marks the start of the vendor/custom button range.
const buttonCustomBase ButtonID = 0x80

// CustomButton returns the ButtonID for a protocol-specific button index.
func CustomButton(n uint8) ButtonID {
	return buttonCustomBase | ButtonID(n&0x7f)
}

// IsCustom reports whether b is in the custom button range.
func (b ButtonID) IsCustom() bool { return b >= buttonCustomBase }

var buttonNames = map[ButtonID]string{
	ButtonA:         "A",
	ButtonB:         "B",
	ButtonX:         "X",
	ButtonY:         "Y",
	ButtonLShoulder: "LShoulder",
	ButtonRShoulder: "RShoulder",
	ButtonLTrigger:  "LTrigger",
	ButtonRTrigger:  "RTrigger",
	ButtonBack:      "Back",
	ButtonStart:     "Start",
	ButtonLStick:    "LStick",
	ButtonRStick:    "RStick",
	ButtonGuide:     "Guide",
	ButtonShare:     "Share",
	ButtonView:      "View",
	ButtonMute:      "Mute",
}

// String returns the stable identifier used in profiles ("A", "LShoulder",
// "Custom(3)", ...).
func (b ButtonID) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	if b.IsCustom() {
		return fmt.Sprintf("Custom(%d)", uint8(b&^buttonCustomBase))
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// AxisID identifies an analog channel independent of protocol.
type AxisID uint8

const (
	AxisLStickX AxisID = iota
	AxisLStickY
	AxisRStickX
	AxisRStickY
	AxisLTrigger
	AxisRTrigger
)

const axisCustomBase AxisID = 0x80

// CustomAxis returns the AxisID for a protocol-specific axis index.
func CustomAxis(n uint8) AxisID {
	return axisCustomBase | AxisID(n&0x7f)
}

// IsCustom reports whether a is in the custom axis range.
func (a AxisID) IsCustom() bool { return a >= axisCustomBase }

var axisNames = map[AxisID]string{
	AxisLStickX:  "LSX",
	AxisLStickY:  "LSY",
	AxisRStickX:  "RSX",
	AxisRStickY:  "RSY",
	AxisLTrigger: "LT",
	AxisRTrigger: "RT",
}

func (a AxisID) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	if a.IsCustom() {
		return fmt.Sprintf("Custom(%d)", uint8(a&^axisCustomBase))
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// Pair returns the other axis of a stick pair and true, or 0 and false for
// channels that are not part of a stick (triggers, custom axes).
func (a AxisID) Pair() (AxisID, bool) {
	switch a {
	case AxisLStickX:
		return AxisLStickY, true
	case AxisLStickY:
		return AxisLStickX, true
	case AxisRStickX:
		return AxisRStickY, true
	case AxisRStickY:
		return AxisRStickX, true
	}
	return 0, false
}
