package coordinator

import (
	"log/slog"
	"sync"

	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/transport"
	"github.com/Alia5/HIDRA/virtualpad"
)

// padMirror maintains one virtual gamepad per physical session and keeps its
// report state in sync with the session's processed events.
type padMirror struct {
	pad    *virtualpad.Service
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]*mirrorState
}

type mirrorState struct {
	id    virtualpad.DeviceID
	state virtualpad.InputState
}

func newPadMirror(pad *virtualpad.Service, logger *slog.Logger) *padMirror {
	return &padMirror{
		pad:    pad,
		logger: logger,
		states: make(map[string]*mirrorState),
	}
}

func (m *padMirror) addDevice(id transport.DeviceIdentity, vendor, product uint16, onRumble func(virtualpad.RumbleState)) {
	padID, err := m.pad.Create(vendor, product, "HIDRA Virtual Gamepad")
	if err != nil {
		m.logger.Error("virtual pad create failed", "id", id, "error", err)
		return
	}
	if onRumble != nil {
		_ = m.pad.OnRumble(padID, onRumble)
	}
	m.mu.Lock()
	m.states[id.Key()] = &mirrorState{
		id:    padID,
		state: virtualpad.InputState{Hat: virtualpad.HatNeutral, Axes: [4]uint8{128, 128, 128, 128}},
	}
	m.mu.Unlock()
}

func (m *padMirror) removeDevice(id transport.DeviceIdentity) {
	m.mu.Lock()
	st, ok := m.states[id.Key()]
	delete(m.states, id.Key())
	m.mu.Unlock()
	if ok {
		_ = m.pad.Destroy(st.id)
	}
}

// HandleEvents implements manager.Mirror. It folds processed events into the
// pad's report state and pushes the update.
func (m *padMirror) HandleEvents(id transport.DeviceIdentity, events []input.Event) {
	m.mu.Lock()
	st, ok := m.states[id.Key()]
	if !ok {
		m.mu.Unlock()
		return
	}
	for _, ev := range events {
		applyEvent(&st.state, ev)
	}
	state := st.state
	padID := st.id
	m.mu.Unlock()

	if err := m.pad.SendInputReport(padID, state.Buttons, state.Axes, state.Triggers); err != nil {
		m.logger.Debug("virtual pad report failed", "id", id, "error", err)
		return
	}
	_ = m.pad.SendHat(padID, state.Hat)
}

// applyEvent folds one event into the report state.
func applyEvent(st *virtualpad.InputState, ev input.Event) {
	switch ev.Type {
	case input.EventButtonPress, input.EventButtonRelease:
		bit := buttonBit(ev.Button)
		if bit == 0 {
			return
		}
		if ev.Type == input.EventButtonPress {
			st.Buttons |= bit
		} else {
			st.Buttons &^= bit
		}
	case input.EventAxisMove:
		if idx, ok := axisIndex(ev.Axis); ok {
			st.Axes[idx] = toCentered8(ev.Value)
		}
	case input.EventTriggerMove:
		switch ev.Axis {
		case input.AxisLTrigger:
			st.Triggers[0] = uint8(clamp01f(ev.Value) * 255)
		case input.AxisRTrigger:
			st.Triggers[1] = uint8(clamp01f(ev.Value) * 255)
		}
	case input.EventDPadMove:
		st.Hat = hatFromDirections(ev.DPadX, ev.DPadY)
	case input.EventHatSwitch:
		if ev.Hat == input.HatNeutral {
			st.Hat = virtualpad.HatNeutral
		} else {
			st.Hat = uint8((uint32(ev.Hat%360) + 22) / 45 % 8)
		}
	}
}

// buttonBit maps the first fourteen symbolic buttons onto the pad's button
// field.
func buttonBit(b input.ButtonID) uint16 {
	if b <= input.ButtonShare {
		return 1 << uint16(b)
	}
	return 0
}

func axisIndex(a input.AxisID) (int, bool) {
	switch a {
	case input.AxisLStickX:
		return 0, true
	case input.AxisLStickY:
		return 1, true
	case input.AxisRStickX:
		return 2, true
	case input.AxisRStickY:
		return 3, true
	default:
		return 0, false
	}
}

func toCentered8(v float32) uint8 {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return uint8(int32(v*127) + 128)
}

func clamp01f(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func hatFromDirections(h, v int8) uint8 {
	switch {
	case v < 0 && h == 0:
		return 0
	case v < 0 && h > 0:
		return 1
	case v == 0 && h > 0:
		return 2
	case v > 0 && h > 0:
		return 3
	case v > 0 && h == 0:
		return 4
	case v > 0 && h < 0:
		return 5
	case v == 0 && h < 0:
		return 6
	case v < 0 && h < 0:
		return 7
	default:
		return virtualpad.HatNeutral
	}
}
