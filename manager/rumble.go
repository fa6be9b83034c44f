package manager

import (
	"fmt"
	"time"

	"github.com/Alia5/HIDRA/protocol"
	"github.com/Alia5/HIDRA/protocol/dualshock"
	"github.com/Alia5/HIDRA/protocol/gip"
	"github.com/Alia5/HIDRA/protocol/xinput"
	"github.com/Alia5/HIDRA/transport"
)

// SendRumble forwards motor strengths in [0,1] to a physical controller.
// Protocols without a known rumble format ignore the call.
func (m *Manager) SendRumble(id transport.DeviceIdentity, left, right float32) error {
	m.mu.Lock()
	dev, ok := m.devices[id.Key()]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no session for %s", id)
	}
	if !dev.eps.HasOut {
		return nil
	}

	l := uint8(clamp01(left) * 255)
	r := uint8(clamp01(right) * 255)

	var packet []byte
	switch dev.kind {
	case protocol.Gip:
		packet = gip.RumblePacket(l, r)
	case protocol.XInput:
		packet = xinput.RumblePacket(l, r)
	case protocol.Ds4, protocol.Ds5:
		packet = dualshock.RumblePacket(l, r)
	default:
		return nil
	}

	_, err := dev.session.InterruptOut(dev.eps.Out.Address, packet, time.Second)
	return err
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
