package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/Alia5/HIDRA/internal/log"
)

// DefaultHotplugPeriod is the poll period of the hot-plug scanner. libusb's
// own pending-event queue is pumped by gousb's internal worker.
const DefaultHotplugPeriod = 2 * time.Second

// Config tunes the gousb-backed transport.
type Config struct {
	// HotplugPeriod is the bus re-scan period; 0 means DefaultHotplugPeriod.
	HotplugPeriod time.Duration
	// DebugLevel sets the libusb debug level (0-4).
	DebugLevel int
}

// USB is the gousb/libusb implementation of Bus. One USB value owns the
// process-wide libusb context; it is created by the coordinator and closed on
// coordinator shutdown.
type USB struct {
	ctx    *gousb.Context
	cfg    Config
	logger *slog.Logger
	raw    log.RawLogger

	mu     sync.Mutex
	closed bool
}

// NewUSB initializes the process-wide USB context.
func NewUSB(cfg Config, logger *slog.Logger, raw log.RawLogger) *USB {
	ctx := gousb.NewContext()
	if cfg.DebugLevel > 0 {
		ctx.Debug(cfg.DebugLevel)
	}
	if cfg.HotplugPeriod <= 0 {
		cfg.HotplugPeriod = DefaultHotplugPeriod
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &USB{ctx: ctx, cfg: cfg, logger: logger, raw: raw}
}

func describe(desc *gousb.DeviceDesc) DeviceDescriptor {
	d := DeviceDescriptor{
		Identity: DeviceIdentity{
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
			Bus:       desc.Bus,
			Address:   desc.Address,
		},
		Speed: fmt.Sprint(desc.Speed),
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			if len(intf.AltSettings) == 0 {
				continue
			}
			alt := intf.AltSettings[0]
			info := InterfaceInfo{
				Number:   intf.Number,
				Class:    uint8(alt.Class),
				SubClass: uint8(alt.SubClass),
				Protocol: uint8(alt.Protocol),
			}
			for _, ep := range alt.Endpoints {
				info.Endpoints = append(info.Endpoints, EndpointInfo{
					Address:       uint8(ep.Address),
					Direction:     direction(ep.Direction),
					Type:          transferType(ep.TransferType),
					MaxPacketSize: ep.MaxPacketSize,
				})
			}
			d.Interfaces = append(d.Interfaces, info)
		}
		// Only the first (active) configuration is interesting.
		break
	}
	return d
}

func direction(d gousb.EndpointDirection) Direction {
	if d == gousb.EndpointDirectionIn {
		return DirIn
	}
	return DirOut
}

func transferType(t gousb.TransferType) TransferType {
	switch t {
	case gousb.TransferTypeControl:
		return TransferControl
	case gousb.TransferTypeIsochronous:
		return TransferIsochronous
	case gousb.TransferTypeBulk:
		return TransferBulk
	default:
		return TransferInterrupt
	}
}

// Enumerate lists attached devices without opening any of them.
func (u *USB) Enumerate() ([]DeviceDescriptor, error) {
	var out []DeviceDescriptor
	_, err := u.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		out = append(out, describe(desc))
		return false
	})
	if err != nil {
		return out, wrap("enumerate", err)
	}
	return out, nil
}

// Open opens the device with the given identity.
func (u *USB) Open(id DeviceIdentity) (Session, error) {
	devs, err := u.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == id.VendorID &&
			uint16(desc.Product) == id.ProductID &&
			desc.Bus == id.Bus && desc.Address == id.Address
	})
	if err != nil {
		for _, d := range devs {
			_ = d.Close()
		}
		return nil, wrap("open", err)
	}
	if len(devs) == 0 {
		return nil, newError(KindNotFound, "open")
	}
	dev := devs[0]
	for _, d := range devs[1:] {
		_ = d.Close()
	}

	desc := describe(dev.Desc)
	if s, err := dev.Product(); err == nil {
		desc.Product = s
	}
	if s, err := dev.Manufacturer(); err == nil {
		desc.Manufacturer = s
	}
	if s, err := dev.SerialNumber(); err == nil {
		desc.Identity.Serial = s
	}

	u.logger.Debug("opened device", "id", desc.Identity, "product", desc.Product)
	return &usbSession{
		usb:     u,
		dev:     dev,
		desc:    desc,
		claimed: make(map[int]*gousb.Interface),
		epIn:    make(map[uint8]*gousb.InEndpoint),
		epOut:   make(map[uint8]*gousb.OutEndpoint),
	}, nil
}

// Hotplug scans the bus periodically and diffs against the known set.
// The first scan reports every attached device.
func (u *USB) Hotplug(ctx context.Context) (<-chan HotplugEvent, error) {
	ch := make(chan HotplugEvent, 16)
	go func() {
		defer close(ch)
		known := make(map[string]DeviceDescriptor)
		ticker := time.NewTicker(u.cfg.HotplugPeriod)
		defer ticker.Stop()
		for {
			descs, err := u.Enumerate()
			if err != nil {
				u.logger.Warn("hotplug scan failed", "error", err)
			} else {
				seen := make(map[string]struct{}, len(descs))
				for _, d := range descs {
					key := d.Identity.Key()
					seen[key] = struct{}{}
					if _, ok := known[key]; !ok {
						known[key] = d
						select {
						case ch <- HotplugEvent{Kind: Attached, Descriptor: d, Identity: d.Identity}:
						case <-ctx.Done():
							return
						}
					}
				}
				for key, d := range known {
					if _, ok := seen[key]; !ok {
						delete(known, key)
						select {
						case ch <- HotplugEvent{Kind: Detached, Identity: d.Identity}:
						case <-ctx.Done():
							return
						}
					}
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close tears down the libusb context. All sessions must be closed first.
func (u *USB) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	return wrap("close", u.ctx.Close())
}

type usbSession struct {
	usb  *USB
	dev  *gousb.Device
	desc DeviceDescriptor

	mu         sync.Mutex
	cfg        *gousb.Config
	claimed    map[int]*gousb.Interface
	epIn       map[uint8]*gousb.InEndpoint
	epOut      map[uint8]*gousb.OutEndpoint
	autoDetach bool
	closed     bool
}

func (s *usbSession) Descriptor() DeviceDescriptor { return s.desc }
func (s *usbSession) Identity() DeviceIdentity     { return s.desc.Identity }

func (s *usbSession) Configure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(KindNoDevice, "configure")
	}
	if s.cfg != nil {
		return nil
	}
	cfg, err := s.dev.Config(1)
	if err != nil {
		return wrap("configure", err)
	}
	s.cfg = cfg
	return nil
}

// DetachKernelDriver enables libusb auto-detach for subsequent claims.
// gousb exposes detaching through the auto-detach flag; an absent driver is
// not an error.
func (s *usbSession) DetachKernelDriver(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(KindNoDevice, "detach_kernel_driver")
	}
	if s.autoDetach {
		return nil
	}
	if err := s.dev.SetAutoDetach(true); err != nil {
		k := classify(err)
		if k == KindNotFound || k == KindNotSupported {
			// No driver bound, or the platform has no concept of one.
			return nil
		}
		return wrap("detach_kernel_driver", err)
	}
	s.autoDetach = true
	return nil
}

func (s *usbSession) ClaimInterface(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newError(KindNoDevice, "claim_interface")
	}
	if s.cfg == nil {
		return newError(KindInvalidParam, "claim_interface: not configured")
	}
	if _, ok := s.claimed[number]; ok {
		return nil
	}
	intf, err := s.cfg.Interface(number, 0)
	if err != nil {
		return wrap("claim_interface", err)
	}
	s.claimed[number] = intf
	return nil
}

func (s *usbSession) ReleaseInterface(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(number)
}

func (s *usbSession) releaseLocked(number int) error {
	intf, ok := s.claimed[number]
	if !ok {
		return nil
	}
	for addr := range s.epIn {
		if owns(intf, addr) {
			delete(s.epIn, addr)
		}
	}
	for addr := range s.epOut {
		if owns(intf, addr) {
			delete(s.epOut, addr)
		}
	}
	intf.Close()
	delete(s.claimed, number)
	return nil
}

func owns(intf *gousb.Interface, addr uint8) bool {
	for _, ep := range intf.Setting.Endpoints {
		if uint8(ep.Address) == addr {
			return true
		}
	}
	return false
}

func (s *usbSession) ClaimedInterfaces() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.claimed))
	for n := range s.claimed {
		out = append(out, n)
	}
	return out
}

func (s *usbSession) inEndpoint(addr uint8) (*gousb.InEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, newError(KindNoDevice, "interrupt_in")
	}
	if ep, ok := s.epIn[addr]; ok {
		return ep, nil
	}
	for _, intf := range s.claimed {
		if !owns(intf, addr) {
			continue
		}
		ep, err := intf.InEndpoint(int(addr & 0x0f))
		if err != nil {
			return nil, wrap("interrupt_in", err)
		}
		s.epIn[addr] = ep
		return ep, nil
	}
	return nil, newError(KindNotFound, "interrupt_in: endpoint not claimed")
}

func (s *usbSession) outEndpoint(addr uint8) (*gousb.OutEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, newError(KindNoDevice, "interrupt_out")
	}
	if ep, ok := s.epOut[addr]; ok {
		return ep, nil
	}
	for _, intf := range s.claimed {
		if !owns(intf, addr) {
			continue
		}
		ep, err := intf.OutEndpoint(int(addr & 0x0f))
		if err != nil {
			return nil, wrap("interrupt_out", err)
		}
		s.epOut[addr] = ep
		return ep, nil
	}
	return nil, newError(KindNotFound, "interrupt_out: endpoint not claimed")
}

func (s *usbSession) InterruptIn(ep uint8, size int, timeout time.Duration) ([]byte, error) {
	in, err := s.inEndpoint(ep)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	buf := make([]byte, size)
	n, err := in.ReadContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindTimeout, "interrupt_in")
		}
		return nil, wrap("interrupt_in", err)
	}
	s.usb.raw.Log(true, buf[:n])
	return buf[:n], nil
}

func (s *usbSession) InterruptOut(ep uint8, data []byte, timeout time.Duration) (int, error) {
	out, err := s.outEndpoint(ep)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := out.WriteContext(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return n, newError(KindTimeout, "interrupt_out")
		}
		return n, wrap("interrupt_out", err)
	}
	s.usb.raw.Log(false, data[:n])
	return n, nil
}

func (s *usbSession) ControlTransfer(reqType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, newError(KindNoDevice, "control")
	}
	dev := s.dev
	s.mu.Unlock()
	dev.ControlTimeout = timeout
	n, err := dev.Control(reqType, request, value, index, data)
	if err != nil {
		return n, wrap("control", err)
	}
	return n, nil
}

// ClearHalt issues a standard CLEAR_FEATURE(ENDPOINT_HALT) for the endpoint.
func (s *usbSession) ClearHalt(ep uint8) error {
	const (
		reqTypeEndpointOut = 0x02
		reqClearFeature    = 0x01
		featureHalt        = 0x00
	)
	_, err := s.ControlTransfer(reqTypeEndpointOut, reqClearFeature, featureHalt, uint16(ep), nil, time.Second)
	if err != nil {
		return wrap("clear_halt", err)
	}
	return nil
}

func (s *usbSession) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return newError(KindNoDevice, "reset")
	}
	dev := s.dev
	s.mu.Unlock()
	return wrap("reset", dev.Reset())
}

// Close releases all claimed interfaces before the handle goes away.
func (s *usbSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for n := range s.claimed {
		_ = s.releaseLocked(n)
	}
	if s.cfg != nil {
		_ = s.cfg.Close()
		s.cfg = nil
	}
	return wrap("close", s.dev.Close())
}
