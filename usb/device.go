package usb

// Device is the minimal interface an exported device must implement.
// It only handles non-EP0 (interrupt/bulk) transfers.
type Device interface {
	// HandleTransfer processes a non-EP0 transfer. ep is the endpoint number
	// without direction; dir is usbip.DirIn or usbip.DirOut. For IN
	// transfers, return the payload to send; for OUT, consume out and return
	// nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}

// ControlDevice is implemented by devices that handle class-specific EP0
// requests (HID get/set report and friends) beyond the standard chapter 9
// requests the server answers itself.
type ControlDevice interface {
	Device
	// HandleControl returns the response payload and whether the request was
	// handled.
	HandleControl(bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16, data []byte) ([]byte, bool)
}
