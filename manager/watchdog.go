package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/Alia5/HIDRA/transport"
)

// checkStalls inspects every session; silent sessions accumulate stalls and
// three consecutive stalls trigger a reconnect cycle.
func (m *Manager) checkStalls(ctx context.Context) {
	now := time.Now()
	m.mu.Lock()
	var stalled []*device
	for _, dev := range m.devices {
		last := time.Unix(0, dev.lastActivity.Load())
		if now.Sub(last) <= m.cfg.StallTimeout {
			continue
		}
		stalls := dev.stalls.Add(1)
		// Restart the silence window so each stall represents a full
		// stall-timeout of silence.
		dev.lastActivity.Store(now.UnixNano())
		m.logger.Warn("session stalled", "id", dev.identity, "stalls", stalls)
		if int(stalls) >= m.cfg.MaxStalls {
			stalled = append(stalled, dev)
		}
	}
	m.mu.Unlock()

	for _, dev := range stalled {
		m.reconnect(ctx, dev)
	}
}

// reconnect closes the stalled session, re-enumerates the identity and runs
// the full attach flow again. Held keys are released with the old session,
// so post-reconnect state starts empty; success resets the stall counter and
// failure abandons the device.
func (m *Manager) reconnect(ctx context.Context, dev *device) {
	m.logger.Warn("reconnecting stalled device", "id", dev.identity)

	prof := dev.activeProfile
	m.Detach(dev.identity)
	select {
	case <-dev.done:
	case <-time.After(m.cfg.ReadTimeout + time.Second):
		m.logger.Warn("read loop slow to stop", "id", dev.identity)
	}

	desc, err := m.findDevice(dev.identity)
	if err != nil {
		m.logger.Error("reconnect failed: device not found", "id", dev.identity, "error", err)
		m.notify(Notification{Kind: DeviceError, Identity: dev.identity, Err: err})
		return
	}
	if err := m.Attach(ctx, desc, prof); err != nil {
		m.logger.Error("reconnect failed", "id", dev.identity, "error", err)
		m.notify(Notification{Kind: DeviceError, Identity: dev.identity, Err: err})
		return
	}
	m.logger.Info("reconnect succeeded", "id", dev.identity)
}

// findDevice re-enumerates the bus looking for the identity, preferring the
// same physical port but accepting the model anywhere (a re-plugged device
// usually changes its address).
func (m *Manager) findDevice(id transport.DeviceIdentity) (transport.DeviceDescriptor, error) {
	descs, err := m.bus.Enumerate()
	if err != nil {
		return transport.DeviceDescriptor{}, err
	}
	var candidate *transport.DeviceDescriptor
	for i := range descs {
		d := descs[i]
		if !d.Identity.SameModel(id) {
			continue
		}
		if d.Identity.Bus == id.Bus && d.Identity.Address == id.Address {
			return d, nil
		}
		if candidate == nil {
			candidate = &descs[i]
		}
	}
	if candidate != nil {
		return *candidate, nil
	}
	return transport.DeviceDescriptor{}, fmt.Errorf("device %s no longer present", id)
}
