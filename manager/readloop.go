package manager

import (
	"context"
	"time"

	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/protocol"
	"github.com/Alia5/HIDRA/transport"
)

// readLoop pumps interrupt-in transfers, feeds the parser, the input
// processor and the mapping engine, and applies pending profile swaps
// between reports. It owns the session's parser, processor, engine and held
// keys; nothing else touches them.
func (m *Manager) readLoop(ctx context.Context, dev *device) {
	defer m.wg.Done()
	defer close(dev.done)
	defer m.teardown(dev)

	size := dev.kind.MaxReportLen()
	if dev.eps.In.MaxPacketSize > size {
		size = dev.eps.In.MaxPacketSize
	}

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-dev.profileCh:
			dev.engine.SetProfile(p)
			continue
		default:
		}

		data, err := dev.session.InterruptIn(dev.eps.In.Address, size, m.cfg.ReadTimeout)
		if err != nil {
			if !m.handleReadError(dev, err) {
				return
			}
			continue
		}
		dev.lastActivity.Store(time.Now().UnixNano())
		dev.stalls.Store(0)

		if len(data) == 0 || !dev.parser.CanParse(data) {
			continue
		}
		now := time.Now()
		events := dev.parser.Parse(data, now)

		processed := make([]input.Event, 0, len(events))
		for _, ev := range events {
			processed = append(processed, dev.proc.Process(ev)...)
		}

		// The engine runs on every report, even an eventless one: a pending
		// profile swap re-presses held identifiers on the next report.
		dev.engine.Handle(processed)

		if m.mirror != nil && len(processed) > 0 {
			m.mirror.HandleEvents(dev.identity, processed)
		}
	}
}

// handleReadError applies the read-loop failure policy. It returns false
// when the loop must terminate.
func (m *Manager) handleReadError(dev *device, err error) bool {
	switch transport.KindOf(err) {
	case transport.KindTimeout:
		// Benign: controllers idle between state changes.
		dev.lastTimeout.Store(time.Now().UnixNano())
		return true
	case transport.KindPipe, transport.KindOverflow, transport.KindIO:
		dev.stalls.Add(1)
		if err := dev.session.ClearHalt(dev.eps.In.Address); err != nil {
			m.logger.Debug("clear halt failed", "id", dev.identity, "error", err)
		}
		return true
	case transport.KindNoDevice, transport.KindNotFound:
		m.logger.Info("device gone", "id", dev.identity)
		m.forget(dev)
		m.notify(Notification{Kind: DeviceGone, Identity: dev.identity, Err: err})
		return false
	default:
		dev.stalls.Add(1)
		m.logger.Debug("read failed", "id", dev.identity, "error", err)
		return true
	}
}

// forget removes the device from the registry without cancelling its
// context; used when the loop itself is about to return.
func (m *Manager) forget(dev *device) {
	m.mu.Lock()
	delete(m.devices, dev.identity.Key())
	m.mu.Unlock()
}

// teardown releases held keys, releases interfaces and closes the session.
func (m *Manager) teardown(dev *device) {
	if dev.lifecycle.State() == protocol.StateClosed {
		return
	}
	dev.engine.ReleaseAll()
	for _, n := range dev.session.ClaimedInterfaces() {
		if err := dev.session.ReleaseInterface(n); err != nil {
			m.logger.Debug("release interface failed", "id", dev.identity, "iface", n, "error", err)
		}
	}
	if err := dev.session.Close(); err != nil {
		m.logger.Debug("session close failed", "id", dev.identity, "error", err)
	}
	_ = dev.lifecycle.To(protocol.StateClosed)
	m.logger.Info("session closed", "id", dev.identity)
}
