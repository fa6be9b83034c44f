package transport

import (
	"context"
	"time"
)

// Bus abstracts the USB subsystem: enumeration, opening and hot-plug.
// The gousb-backed implementation is USB; tests substitute fakes.
type Bus interface {
	// Enumerate lists all currently attached devices. Safe to call at any
	// time, including while sessions are open.
	Enumerate() ([]DeviceDescriptor, error)
	// Open opens the device with the given identity and returns a session in
	// the Opened state.
	Open(id DeviceIdentity) (Session, error)
	// Hotplug starts delivering attach/detach events. The stream first
	// reports every currently attached device as Attached, then changes
	// without gaps until ctx is cancelled.
	Hotplug(ctx context.Context) (<-chan HotplugEvent, error)
	Close() error
}

// Session is an opened device. All methods are safe to call from the owning
// goroutine only; Close may be called once from any goroutine.
type Session interface {
	Descriptor() DeviceDescriptor
	Identity() DeviceIdentity

	// Configure selects configuration 1. Idempotent.
	Configure() error
	// DetachKernelDriver detaches a bound kernel driver from the interface.
	// "No driver bound" counts as success.
	DetachKernelDriver(number int) error
	// ClaimInterface claims an interface of the active configuration.
	ClaimInterface(number int) error
	// ReleaseInterface releases a previously claimed interface.
	ReleaseInterface(number int) error
	// ClaimedInterfaces returns the numbers of all currently claimed
	// interfaces.
	ClaimedInterfaces() []int

	// InterruptIn reads at most size bytes from the IN endpoint. The
	// returned slice holds the actual payload, which may be shorter.
	InterruptIn(ep uint8, size int, timeout time.Duration) ([]byte, error)
	// InterruptOut writes data to the OUT endpoint and returns the number of
	// bytes transferred.
	InterruptOut(ep uint8, data []byte, timeout time.Duration) (int, error)
	// ControlTransfer performs an EP0 control transfer.
	ControlTransfer(reqType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	// ClearHalt clears a halt/stall condition on the endpoint.
	ClearHalt(ep uint8) error
	// Reset performs a USB port reset.
	Reset() error

	// Close releases every claimed interface and closes the handle.
	// Idempotent.
	Close() error
}
