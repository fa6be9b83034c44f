// Package virtualbus manages the exported USB bus topology and auto-assigns
// device addresses for the virtual gamepad path.
package virtualbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alia5/HIDRA/usb"
	"github.com/Alia5/HIDRA/usbip"
)

// basepath anchors the sysfs-style path reported to the USB/IP client.
const basepath = "/sys/devices/platform/hidra/usb"

// VirtualBus holds the exported devices of one bus and hands out device
// addresses. The driver uses a single bus; the type still allocates per-bus
// ids so several coordinators in one process stay distinct.
type VirtualBus struct {
	mu              sync.Mutex
	busID           uint32
	allocatedDevIDs map[uint32]bool
	devices         []busDevice
}

type busDevice struct {
	dev    usb.Device
	meta   usbip.ExportMeta
	ctx    context.Context
	cancel context.CancelFunc
}

// DeviceMeta exposes a registered device and its export metadata.
type DeviceMeta struct {
	Dev  usb.Device
	Meta usbip.ExportMeta
}

var (
	globalMu      sync.Mutex
	nextGlobalBus uint32 = 1
)

// New creates a bus with a unique auto-assigned bus number.
func New() *VirtualBus {
	globalMu.Lock()
	busID := nextGlobalBus
	nextGlobalBus++
	globalMu.Unlock()

	return &VirtualBus{
		busID:           busID,
		allocatedDevIDs: make(map[uint32]bool),
	}
}

// BusID returns the bus number.
func (vb *VirtualBus) BusID() uint32 {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	return vb.busID
}

// Add registers a device and assigns it the lowest free device address.
// The returned context is cancelled when the device is removed; the USB/IP
// connection serving the device watches it.
func (vb *VirtualBus) Add(dev usb.Device) (context.Context, error) {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	for _, d := range vb.devices {
		if d.dev == dev {
			return nil, fmt.Errorf("device already registered on this bus")
		}
	}

	var devID uint32
	for i := uint32(1); ; i++ {
		if !vb.allocatedDevIDs[i] {
			devID = i
			vb.allocatedDevIDs[i] = true
			break
		}
	}

	busDevID := fmt.Sprintf("%d-%d", vb.busID, devID)
	path := fmt.Sprintf("%s%d/%s", basepath, vb.busID, busDevID)

	var meta usbip.ExportMeta
	copy(meta.Path[:], path)
	copy(meta.USBBusId[:], busDevID)
	meta.BusId = vb.busID
	meta.DevId = devID

	ctx, cancel := context.WithCancel(context.Background())
	vb.devices = append(vb.devices, busDevice{dev: dev, meta: meta, ctx: ctx, cancel: cancel})
	return ctx, nil
}

// Remove unregisters a device and cancels its context.
func (vb *VirtualBus) Remove(dev usb.Device) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	for i, d := range vb.devices {
		if d.dev == dev {
			d.cancel()
			delete(vb.allocatedDevIDs, d.meta.DevId)
			vb.devices = append(vb.devices[:i], vb.devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("device not registered on this bus")
}

// RemoveByBusID unregisters the device with the given "bus-dev" id.
func (vb *VirtualBus) RemoveByBusID(busDevID string) error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	for i, d := range vb.devices {
		if d.meta.BusIDString() == busDevID {
			d.cancel()
			delete(vb.allocatedDevIDs, d.meta.DevId)
			vb.devices = append(vb.devices[:i], vb.devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no device with id %s", busDevID)
}

// Devices returns a snapshot of all registered devices.
func (vb *VirtualBus) Devices() []usb.Device {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	out := make([]usb.Device, 0, len(vb.devices))
	for _, d := range vb.devices {
		out = append(out, d.dev)
	}
	return out
}

// DeviceMetas returns all registered devices with their export metadata.
func (vb *VirtualBus) DeviceMetas() []DeviceMeta {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	out := make([]DeviceMeta, 0, len(vb.devices))
	for _, d := range vb.devices {
		out = append(out, DeviceMeta{Dev: d.dev, Meta: d.meta})
	}
	return out
}

// DeviceContext returns the lifecycle context of a registered device, or nil.
func (vb *VirtualBus) DeviceContext(dev usb.Device) context.Context {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	for _, d := range vb.devices {
		if d.dev == dev {
			return d.ctx
		}
	}
	return nil
}

// Close removes every device.
func (vb *VirtualBus) Close() error {
	vb.mu.Lock()
	defer vb.mu.Unlock()
	for _, d := range vb.devices {
		d.cancel()
	}
	vb.devices = nil
	vb.allocatedDevIDs = make(map[uint32]bool)
	return nil
}
