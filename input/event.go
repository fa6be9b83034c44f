package input

import "time"

// EventType tags the variant carried by an Event.
type EventType uint8

const (
	EventButtonPress EventType = iota + 1
	EventButtonRelease
	EventAxisMove
	EventTriggerMove
	EventDPadMove
	EventHatSwitch
)

func (t EventType) String() string {
	switch t {
	case EventButtonPress:
		return "press"
	case EventButtonRelease:
		return "release"
	case EventAxisMove:
		return "axis"
	case EventTriggerMove:
		return "trigger"
	case EventDPadMove:
		return "dpad"
	case EventHatSwitch:
		return "hat"
	default:
		return "unknown"
	}
}

// HatNeutral is the hat angle reported when the hat switch is released.
const HatNeutral uint16 = 0xffff

// Event is a single normalized controller input change. Only the fields of
// the variant selected by Type are meaningful; the flat layout keeps the hot
// path allocation free.
type Event struct {
	Type   EventType
	Button ButtonID
	Axis   AxisID

	// Value is normalized: [-1,1] for axes, [0,1] for triggers.
	Value float32
	// Raw carries the pre-normalization value (signed sources sign-extended,
	// centered u8 sticks with the center subtracted, u8 triggers zero-extended).
	Raw int16
	// Pressed is the trigger digital state (normalized >= 0.1).
	Pressed bool

	// DPadX is -1 (left), 0 (neutral) or +1 (right); DPadY is -1 (up),
	// 0 (neutral) or +1 (down).
	DPadX, DPadY int8

	// Hat is the hat switch angle in degrees, or HatNeutral.
	Hat uint16

	Time time.Time
}

// ButtonPress builds a button press event.
func ButtonPress(b ButtonID, at time.Time) Event {
	return Event{Type: EventButtonPress, Button: b, Time: at}
}

// ButtonRelease builds a button release event.
func ButtonRelease(b ButtonID, at time.Time) Event {
	return Event{Type: EventButtonRelease, Button: b, Time: at}
}

// AxisMove builds an axis event from a normalized value and its raw source.
func AxisMove(a AxisID, normalized float32, raw int16, at time.Time) Event {
	return Event{Type: EventAxisMove, Axis: a, Value: normalized, Raw: raw, Time: at}
}

// TriggerMove builds a trigger event; Pressed is derived from the 0.1 threshold.
func TriggerMove(a AxisID, normalized float32, raw uint8, at time.Time) Event {
	return Event{
		Type:    EventTriggerMove,
		Axis:    a,
		Value:   normalized,
		Raw:     int16(raw),
		Pressed: normalized >= TriggerPressThreshold,
		Time:    at,
	}
}

// DPadMove builds a d-pad event from the horizontal and vertical components.
func DPadMove(h, v int8, at time.Time) Event {
	return Event{Type: EventDPadMove, DPadX: h, DPadY: v, Time: at}
}

// HatSwitch builds a hat switch event from an angle in degrees (or HatNeutral).
func HatSwitch(angle uint16, at time.Time) Event {
	return Event{Type: EventHatSwitch, Hat: angle, Time: at}
}

// TriggerPressThreshold is the normalized value at which a trigger counts as
// digitally pressed.
const TriggerPressThreshold = 0.1
