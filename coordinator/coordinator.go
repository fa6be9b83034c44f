// Package coordinator orchestrates transport, sessions, profiles and the
// output paths. It owns the hot-plug channel and the lifetime of the USB
// context.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Alia5/HIDRA/manager"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/profile"
	"github.com/Alia5/HIDRA/transport"
	"github.com/Alia5/HIDRA/virtualpad"
)

// shutdownGrace is how long teardown may take before Run returns anyway.
const shutdownGrace = 100 * time.Millisecond

// Config wires the coordinator.
type Config struct {
	Manager manager.Config
	// VirtualPadAddr is the listen address of the virtual gamepad server.
	// It is informational here: the path is enabled by passing a non-nil
	// pad to New.
	VirtualPadAddr string
	// VirtualPadVendor/Product are the USB identity of mirrored pads.
	VirtualPadVendor  uint16
	VirtualPadProduct uint16
}

// Coordinator wires C1 through C9 together.
type Coordinator struct {
	bus    transport.Bus
	store  profile.Store
	synth  output.Synthesizer
	cfg    Config
	logger *slog.Logger

	manager *manager.Manager
	pad     *virtualpad.Service
	mirror  *padMirror

	profiles []profile.Profile
}

// New builds a coordinator. pad may be nil to disable the virtual gamepad
// path.
func New(bus transport.Bus, store profile.Store, synth output.Synthesizer, pad *virtualpad.Service, cfg Config, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		bus:    bus,
		store:  store,
		synth:  synth,
		pad:    pad,
		cfg:    cfg,
		logger: logger,
	}
	if pad != nil {
		c.mirror = newPadMirror(pad, logger)
	}
	// The mirror is an untyped nil-safe manager.Mirror.
	var mirror manager.Mirror
	if c.mirror != nil {
		mirror = c.mirror
	}
	c.manager = manager.New(bus, synth, cfg.Manager, logger, mirror)
	return c
}

// Manager exposes the device manager, e.g. for status queries.
func (c *Coordinator) Manager() *manager.Manager { return c.manager }

// Run blocks until ctx is cancelled. It loads profiles, starts the virtual
// pad service when configured, subscribes to hot-plug and routes every
// event.
func (c *Coordinator) Run(ctx context.Context) error {
	c.loadProfiles()

	if c.pad != nil {
		if err := c.pad.Start(); err != nil {
			return err
		}
		defer c.pad.Close()
	}

	hotplug, err := c.bus.Hotplug(ctx)
	if err != nil {
		return err
	}

	mgrCtx, cancelMgr := context.WithCancel(context.Background())
	mgrDone := make(chan struct{})
	go func() {
		defer close(mgrDone)
		c.manager.Run(mgrCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			cancelMgr()
			select {
			case <-mgrDone:
			case <-time.After(shutdownGrace):
				c.logger.Warn("shutdown grace elapsed before sessions finished")
			}
			_ = c.synth.ReleaseAll()
			return nil

		case ev, ok := <-hotplug:
			if !ok {
				cancelMgr()
				<-mgrDone
				return nil
			}
			c.handleHotplug(ctx, ev)

		case n := <-c.manager.Notifications():
			c.handleNotification(n)
		}
	}
}

func (c *Coordinator) handleHotplug(ctx context.Context, ev transport.HotplugEvent) {
	switch ev.Kind {
	case transport.Attached:
		prof := c.profileFor(ev.Identity)
		if err := c.manager.Attach(ctx, ev.Descriptor, prof); err != nil {
			c.logger.Error("attach failed", "id", ev.Identity, "error", err)
			return
		}
		if c.mirror != nil {
			c.mirror.addDevice(ev.Identity, c.cfg.VirtualPadVendor, c.cfg.VirtualPadProduct, c.rumbleSink(ev.Identity))
		}
	case transport.Detached:
		c.logger.Info("device detached", "id", ev.Identity)
		c.manager.Detach(ev.Identity)
		if c.mirror != nil {
			c.mirror.removeDevice(ev.Identity)
		}
	}
}

func (c *Coordinator) handleNotification(n manager.Notification) {
	switch n.Kind {
	case manager.DeviceGone:
		c.logger.Info("session ended: device gone", "id", n.Identity)
		if c.mirror != nil {
			c.mirror.removeDevice(n.Identity)
		}
	case manager.DeviceError:
		c.logger.Error("device abandoned", "id", n.Identity, "error", n.Err)
		if c.mirror != nil {
			c.mirror.removeDevice(n.Identity)
		}
	}
}

// rumbleSink forwards host rumble for a mirrored pad back to the physical
// controller.
func (c *Coordinator) rumbleSink(id transport.DeviceIdentity) func(virtualpad.RumbleState) {
	return func(r virtualpad.RumbleState) {
		if err := c.manager.SendRumble(id, r.Left, r.Right); err != nil {
			c.logger.Debug("rumble passthrough failed", "id", id, "error", err)
		}
	}
}

// loadProfiles fills the profile cache. A corrupted store falls back to the
// built-in default so the driver keeps working.
func (c *Coordinator) loadProfiles() {
	profiles, err := c.store.LoadAll()
	if err != nil {
		if errors.Is(err, profile.ErrCorrupted) || errors.Is(err, profile.ErrUnsupportedVersion) {
			c.logger.Error("profile store unusable, falling back to default", "error", err)
		} else {
			c.logger.Warn("loading profiles failed, falling back to default", "error", err)
		}
		c.profiles = []profile.Profile{profile.Default()}
		return
	}
	if len(profiles) == 0 {
		if p, err := c.store.CreateDefault(); err == nil {
			profiles = []profile.Profile{p}
		} else {
			profiles = []profile.Profile{profile.Default()}
		}
	}
	c.profiles = profiles
	c.logger.Info("profiles loaded", "count", len(c.profiles))
}

// profileFor picks the profile for a device: device-specific first, then
// wildcard, then the built-in default.
func (c *Coordinator) profileFor(id transport.DeviceIdentity) profile.Profile {
	for _, p := range c.profiles {
		if p.DeviceID != nil && p.Matches(id) {
			return p
		}
	}
	for _, p := range c.profiles {
		if p.DeviceID == nil {
			return p
		}
	}
	return profile.Default()
}

// OnProfileSaved refreshes the cache and pushes the profile to every session
// it matches. The profile store implementation calls this after a save.
func (c *Coordinator) OnProfileSaved(p profile.Profile) {
	replaced := false
	for i := range c.profiles {
		if c.profiles[i].Name == p.Name {
			c.profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		c.profiles = append(c.profiles, p)
	}
	c.manager.PushProfile(p)
}
