// Package output injects synthetic keyboard and mouse events into the host.
package output

import "fmt"

// Modifier is a modifier key held together with an emitted key code.
type Modifier uint8

const (
	ModNone Modifier = iota
	ModCommand
	ModControl
	ModOption
	ModShift
)

func (m Modifier) String() string {
	switch m {
	case ModNone:
		return "none"
	case ModCommand:
		return "command"
	case ModControl:
		return "control"
	case ModOption:
		return "option"
	case ModShift:
		return "shift"
	default:
		return fmt.Sprintf("modifier(%d)", uint8(m))
	}
}

// ParseModifier maps a profile modifier name onto a Modifier.
func ParseModifier(s string) (Modifier, error) {
	switch s {
	case "", "none":
		return ModNone, nil
	case "command", "cmd", "meta", "super":
		return ModCommand, nil
	case "control", "ctrl":
		return ModControl, nil
	case "option", "alt":
		return ModOption, nil
	case "shift":
		return ModShift, nil
	default:
		return ModNone, fmt.Errorf("unknown modifier %q", s)
	}
}

// MouseButton selects a mouse button for button and click operations.
type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

func (b MouseButton) String() string {
	switch b {
	case MouseLeft:
		return "left"
	case MouseRight:
		return "right"
	case MouseMiddle:
		return "middle"
	default:
		return fmt.Sprintf("button(%d)", uint8(b))
	}
}

// Chord is a key code plus modifier, the unit tracked by a HeldKeySet.
type Chord struct {
	Code     uint16
	Modifier Modifier
}

// Synthesizer posts synthetic input events to the host. Implementations must
// guarantee that every KeyDown is matched by exactly one KeyUp, including on
// teardown: ReleaseAll emits a KeyUp for every currently held chord.
type Synthesizer interface {
	KeyDown(code uint16, mod Modifier) error
	KeyUp(code uint16, mod Modifier) error
	// Tap presses and releases a key with a short hold (about 16 ms).
	Tap(code uint16, mod Modifier) error

	MouseMoveTo(x, y int) error
	MouseMoveBy(dx, dy int) error
	MouseDown(btn MouseButton) error
	MouseUp(btn MouseButton) error
	// Click performs count click(s); implementations fold clicks within
	// 500 ms and 5 px of the previous one into a multi-click.
	Click(btn MouseButton, count int) error

	Scroll(dx, dy float64) error

	// ReleaseAll emits KeyUp for every held chord and clears the set.
	ReleaseAll() error

	Close() error
}
