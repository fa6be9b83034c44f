// Package manager owns per-device lifecycle: the attach flow, one read loop
// per session, and the stall watchdog.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/mapping"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/processor"
	"github.com/Alia5/HIDRA/profile"
	"github.com/Alia5/HIDRA/protocol"
	"github.com/Alia5/HIDRA/transport"
)

// Config tunes the read loops and the watchdog.
type Config struct {
	// ReadTimeout bounds one interrupt-in; timeouts are benign.
	ReadTimeout time.Duration
	// StallTimeout is how long a session may stay silent before a stall is
	// recorded.
	StallTimeout time.Duration
	// WatchdogInterval is the period of the stall check.
	WatchdogInterval time.Duration
	// MaxStalls is the number of consecutive stalls that trigger reconnect.
	MaxStalls int
	// Processor configures calibration and deadzones for new sessions.
	Processor processor.Config
}

// DefaultConfig returns the stock timing parameters.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:      500 * time.Millisecond,
		StallTimeout:     5 * time.Second,
		WatchdogInterval: time.Second,
		MaxStalls:        3,
		Processor:        processor.DefaultConfig(),
	}
}

// NotificationKind discriminates manager notifications.
type NotificationKind uint8

const (
	// DeviceGone means the session ended because the device left the bus.
	DeviceGone NotificationKind = iota + 1
	// DeviceError means the session was dropped after an unrecoverable
	// failure (init script exhaustion, failed reconnect).
	DeviceError
)

// Notification is a message from a session's read loop or the watchdog to
// the coordinator.
type Notification struct {
	Kind     NotificationKind
	Identity transport.DeviceIdentity
	Err      error
}

// Mirror receives every session's processed events; the coordinator uses it
// to drive the virtual gamepad path.
type Mirror interface {
	HandleEvents(id transport.DeviceIdentity, events []input.Event)
}

// Manager runs one read loop per attached device.
type Manager struct {
	bus    transport.Bus
	synth  output.Synthesizer
	init   *protocol.Engine
	cfg    Config
	logger *slog.Logger
	mirror Mirror

	mu      sync.Mutex
	devices map[string]*device

	notifications chan Notification
	wg            sync.WaitGroup
}

type device struct {
	identity  transport.DeviceIdentity
	kind      protocol.Kind
	session   transport.Session
	parser    *protocol.Parser
	proc      *processor.Processor
	engine    *mapping.Engine
	lifecycle *protocol.Lifecycle
	eps       protocol.Endpoints

	// profileCh delivers profile swaps; the read loop drains it between
	// reports so profile application is serialized with event handling.
	profileCh chan profile.Profile
	// activeProfile is what the watchdog re-applies after reconnect.
	activeProfile profile.Profile

	cancel context.CancelFunc
	// done is closed when the read loop has fully torn the session down.
	done chan struct{}

	lastActivity atomic.Int64 // unix nanos of the last successful read
	lastTimeout  atomic.Int64 // unix nanos of the last benign timeout
	stalls       atomic.Int32
}

// New builds a manager. mirror may be nil.
func New(bus transport.Bus, synth output.Synthesizer, cfg Config, logger *slog.Logger, mirror Mirror) *Manager {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 5 * time.Second
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = time.Second
	}
	if cfg.MaxStalls <= 0 {
		cfg.MaxStalls = 3
	}
	return &Manager{
		bus:           bus,
		synth:         synth,
		init:          protocol.NewEngine(logger),
		cfg:           cfg,
		logger:        logger,
		mirror:        mirror,
		devices:       make(map[string]*device),
		notifications: make(chan Notification, 16),
	}
}

// Notifications delivers session-ended messages to the coordinator.
func (m *Manager) Notifications() <-chan Notification { return m.notifications }

// Attach opens, initializes and starts a read loop for a newly attached
// device, mapped through the given profile.
func (m *Manager) Attach(ctx context.Context, desc transport.DeviceDescriptor, prof profile.Profile) error {
	id := desc.Identity
	m.mu.Lock()
	if _, exists := m.devices[id.Key()]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	kind := protocol.Detect(id, desc)
	m.logger.Info("attaching device",
		"id", id, "product", desc.Product, "protocol", kind)

	dev, err := m.openDevice(id, kind)
	if err != nil {
		return err
	}

	dev.engine = mapping.NewEngine(m.synth, m.logger)
	dev.engine.SetProfile(prof)
	dev.activeProfile = prof

	loopCtx, cancel := context.WithCancel(ctx)
	dev.cancel = cancel

	m.mu.Lock()
	m.devices[id.Key()] = dev
	m.mu.Unlock()

	m.wg.Add(1)
	go m.readLoop(loopCtx, dev)
	return nil
}

// openDevice performs the session half of the attach flow: open, configure,
// detach kernel driver (best effort), claim interface 0, run the init
// script. The session is Ready when it returns.
func (m *Manager) openDevice(id transport.DeviceIdentity, kind protocol.Kind) (*device, error) {
	sess, err := m.bus.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	lc := protocol.NewLifecycle()

	fail := func(err error) (*device, error) {
		_ = sess.Close()
		_ = lc.To(protocol.StateClosed)
		return nil, err
	}

	if err := sess.Configure(); err != nil {
		return fail(fmt.Errorf("configure %s: %w", id, err))
	}
	_ = lc.To(protocol.StateConfigured)

	if err := sess.DetachKernelDriver(0); err != nil {
		// Best effort; the claim below surfaces a real conflict.
		m.logger.Debug("kernel driver detach failed", "id", id, "error", err)
	}

	if err := sess.ClaimInterface(0); err != nil {
		return fail(fmt.Errorf("claim %s: %w", id, err))
	}
	_ = lc.To(protocol.StateClaimed)

	eps, err := protocol.SelectEndpoints(sess.Descriptor())
	if err != nil {
		return fail(fmt.Errorf("endpoints %s: %w", id, err))
	}
	_ = lc.To(protocol.StateIdentified)

	script := protocol.ScriptFor(kind, id.VendorID, id.ProductID)
	if err := m.init.Run(sess, script, eps); err != nil {
		return fail(fmt.Errorf("init %s: %w", id, err))
	}
	_ = lc.To(protocol.StateReady)

	dev := &device{
		identity:  id,
		kind:      kind,
		session:   sess,
		parser:    protocol.NewParser(kind),
		proc:      processor.New(m.cfg.Processor),
		lifecycle: lc,
		eps:       eps,
		profileCh: make(chan profile.Profile, 1),
		done:      make(chan struct{}),
	}
	dev.lastActivity.Store(time.Now().UnixNano())
	return dev, nil
}

// Detach tears down the session for an unplugged device. Held keys are
// released before interfaces.
func (m *Manager) Detach(id transport.DeviceIdentity) {
	m.mu.Lock()
	dev, ok := m.devices[id.Key()]
	if ok {
		delete(m.devices, id.Key())
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	dev.cancel()
}

// PushProfile delivers a profile to every session it matches. Application
// happens on the session's read loop between reports.
func (m *Manager) PushProfile(p profile.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dev := range m.devices {
		if !p.Matches(dev.identity) {
			continue
		}
		dev.activeProfile = p
		// Keep only the latest pending profile.
		select {
		case <-dev.profileCh:
		default:
		}
		dev.profileCh <- p
	}
}

// SessionInfo is a status snapshot of one active session.
type SessionInfo struct {
	Identity     transport.DeviceIdentity
	Protocol     protocol.Kind
	State        protocol.State
	Profile      string
	HeldKeys     int
	Stalls       int
	LastActivity time.Time
}

// Sessions returns a snapshot of all active sessions.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, SessionInfo{
			Identity:     dev.identity,
			Protocol:     dev.kind,
			State:        dev.lifecycle.State(),
			Profile:      dev.activeProfile.Name,
			HeldKeys:     dev.engine.HeldCount(),
			Stalls:       int(dev.stalls.Load()),
			LastActivity: time.Unix(0, dev.lastActivity.Load()),
		})
	}
	return out
}

// Run drives the watchdog until ctx is cancelled, then tears down every
// session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-ticker.C:
			m.checkStalls(ctx)
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	devs := make([]*device, 0, len(m.devices))
	for k, dev := range m.devices {
		devs = append(devs, dev)
		delete(m.devices, k)
	}
	m.mu.Unlock()
	for _, dev := range devs {
		dev.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) notify(n Notification) {
	select {
	case m.notifications <- n:
	default:
		m.logger.Warn("notification dropped", "kind", n.Kind, "id", n.Identity)
	}
}
