package virtualpad

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Alia5/HIDRA/internal/log"
	"github.com/Alia5/HIDRA/virtualbus"
)

// DeviceID identifies a created virtual gamepad; it is the USB/IP bus id the
// host imports ("1-1").
type DeviceID string

// Service manages virtual gamepads on one exported bus.
type Service struct {
	logger *slog.Logger
	bus    *virtualbus.VirtualBus
	server *Server

	mu   sync.Mutex
	pads map[DeviceID]*Gamepad
	errC chan error
}

// NewService builds the service and its USB/IP server.
func NewService(cfg ServerConfig, logger *slog.Logger, raw log.RawLogger) *Service {
	bus := virtualbus.New()
	return &Service{
		logger: logger,
		bus:    bus,
		server: NewServer(cfg, bus, logger, raw),
		pads:   make(map[DeviceID]*Gamepad),
		errC:   make(chan error, 1),
	}
}

// Start brings up the export server and returns once it accepts connections.
func (s *Service) Start() error {
	go func() {
		s.errC <- s.server.ListenAndServe()
	}()
	select {
	case err := <-s.errC:
		return err
	case <-s.server.Ready():
		return nil
	}
}

// Addr returns the server's listen address.
func (s *Service) Addr() string { return s.server.Addr() }

// Create registers a new virtual gamepad and returns its device id.
func (s *Service) Create(vendorID, productID uint16, productName string) (DeviceID, error) {
	pad := NewGamepad(vendorID, productID, productName)
	if _, err := s.bus.Add(pad); err != nil {
		return "", err
	}
	var id DeviceID
	for _, m := range s.bus.DeviceMetas() {
		if m.Dev == pad {
			id = DeviceID(m.Meta.BusIDString())
			break
		}
	}
	s.mu.Lock()
	s.pads[id] = pad
	s.mu.Unlock()
	s.logger.Info("virtual gamepad created", "id", id, "name", productName)
	return id, nil
}

// Destroy removes a virtual gamepad.
func (s *Service) Destroy(id DeviceID) error {
	s.mu.Lock()
	pad, ok := s.pads[id]
	delete(s.pads, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no virtual gamepad %s", id)
	}
	return s.bus.Remove(pad)
}

func (s *Service) pad(id DeviceID) (*Gamepad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad, ok := s.pads[id]
	if !ok {
		return nil, fmt.Errorf("no virtual gamepad %s", id)
	}
	return pad, nil
}

// SendInputReport updates the pad's button, axis and trigger state. The hat
// keeps its last value; use SendHat for direction changes.
func (s *Service) SendInputReport(id DeviceID, buttons uint16, axes [4]uint8, triggers [2]uint8) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	st := pad.State()
	st.Buttons = buttons & 0x3fff
	st.Axes = axes
	st.Triggers = triggers
	pad.SetState(st)
	return nil
}

// SendHat updates the pad's hat nibble (0-7 clockwise from up, HatNeutral
// when released).
func (s *Service) SendHat(id DeviceID, hat uint8) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	st := pad.State()
	st.Hat = hat
	pad.SetState(st)
	return nil
}

// OnRumble registers the sink invoked when the host sets a rumble output
// report for this pad. Motor strengths arrive in [0,1].
func (s *Service) OnRumble(id DeviceID, f func(RumbleState)) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	pad.SetRumbleCallback(f)
	return nil
}

// OnLED registers the sink for host LED pattern writes.
func (s *Service) OnLED(id DeviceID, f func(uint8)) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	pad.SetLEDCallback(f)
	return nil
}

// SendRumble pushes a rumble state into the pad's registered sink, as if the
// host had requested it. Used by the rumble passthrough path.
func (s *Service) SendRumble(id DeviceID, left, right float32) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	pad.cbMu.Lock()
	cb := pad.onRumble
	pad.cbMu.Unlock()
	if cb != nil {
		cb(RumbleState{Left: left, Right: right})
	}
	return nil
}

// SendLED pushes an LED pattern into the pad's registered sink, as if the
// host had written it.
func (s *Service) SendLED(id DeviceID, pattern uint8) error {
	pad, err := s.pad(id)
	if err != nil {
		return err
	}
	pad.cbMu.Lock()
	cb := pad.onLED
	pad.cbMu.Unlock()
	if cb != nil {
		cb(pattern)
	}
	return nil
}

// Close destroys every pad and stops the server.
func (s *Service) Close() error {
	s.mu.Lock()
	for id, pad := range s.pads {
		_ = s.bus.Remove(pad)
		delete(s.pads, id)
	}
	s.mu.Unlock()
	_ = s.bus.Close()
	return s.server.Close()
}
