package protocol

import "github.com/Alia5/HIDRA/transport"

// Well-known vendor IDs.
const (
	VendorMicrosoft = 0x045e
	VendorSony      = 0x054c
	VendorNintendo  = 0x057e
	VendorRazer     = 0x1689
	VendorPowerA    = 0x20d6
	VendorPDP       = 0x0e6f
	Vendor8BitDo    = 0x2dc8
)

// GIP vendor-specific interface triplet (class/subclass/protocol).
const (
	gipInterfaceClass    = 0xff
	gipInterfaceSubClass = 0x47
	gipInterfaceProtocol = 0xd0
)

type vidPid struct {
	vid uint16
	pid uint16
}

// exactKinds is the hard-coded VID/PID table. It wins over every rule.
var exactKinds = map[vidPid]Kind{
	// Xbox 360 family (XInput)
	{VendorMicrosoft, 0x028e}: XInput, // Xbox 360 wired
	{VendorMicrosoft, 0x028f}: XInput, // Xbox 360 wireless
	{VendorMicrosoft, 0x02a1}: XInput, // Xbox 360 wireless receiver
	{VendorRazer, 0xfd00}:     XInput, // Razer Onza TE
	{VendorRazer, 0xfd01}:     XInput, // Razer Onza

	// Xbox One / Series family (GIP)
	{VendorMicrosoft, 0x02d1}: Gip, // Xbox One (2013)
	{VendorMicrosoft, 0x02dd}: Gip, // Xbox One (2015 firmware)
	{VendorMicrosoft, 0x02e3}: Gip, // Xbox One Elite
	{VendorMicrosoft, 0x02ea}: Gip, // Xbox One S
	{VendorMicrosoft, 0x0b00}: Gip, // Xbox One Elite Series 2
	{VendorMicrosoft, 0x0b12}: Gip, // Xbox Series X|S
	{VendorPowerA, 0x2001}:    Gip, // PowerA Xbox One
	{VendorPDP, 0x02a4}:       Gip, // PDP Xbox One

	// PlayStation
	{VendorSony, 0x05c4}: Ds4, // DualShock 4 gen 1
	{VendorSony, 0x09cc}: Ds4, // DualShock 4 gen 2
	{VendorSony, 0x0ba0}: Ds4, // DualShock 4 USB adapter
	{VendorSony, 0x0ce6}: Ds5, // DualSense

	// Nintendo
	{VendorNintendo, 0x2009}: SwitchHid, // Switch Pro Controller
	{VendorNintendo, 0x2017}: SwitchHid, // SNES controller
	{VendorNintendo, 0x2019}: SwitchHid, // Pro Controller clones
	{VendorNintendo, 0x2069}: SwitchHid, // Switch Pro Controller 2
	{Vendor8BitDo, 0x6001}:   SwitchHid, // 8BitDo SN30 Pro
}

// gipGenerations holds Microsoft PIDs of the Xbox One/Series family; any
// other Microsoft PID falls back to XInput.
var gipGenerations = map[uint16]struct{}{
	0x02d1: {}, 0x02dd: {}, 0x02e3: {}, 0x02ea: {}, 0x0b00: {}, 0x0b12: {},
}

// Detect decides the protocol for a device. It is pure: no I/O, no state.
//
// Order: exact VID/PID table, vendor-class rules, the GIP vendor-specific
// interface triplet, then the generic HID fallback.
func Detect(id transport.DeviceIdentity, desc transport.DeviceDescriptor) Kind {
	if kind, ok := exactKinds[vidPid{id.VendorID, id.ProductID}]; ok {
		return kind
	}

	switch id.VendorID {
	case VendorMicrosoft:
		if _, gip := gipGenerations[id.ProductID]; gip {
			return Gip
		}
		return XInput
	case VendorSony:
		if id.ProductID == 0x0ce6 {
			return Ds5
		}
		return GenericHid
	case VendorNintendo:
		return SwitchHid
	}

	for _, intf := range desc.Interfaces {
		if intf.Class == gipInterfaceClass &&
			intf.SubClass == gipInterfaceSubClass &&
			intf.Protocol == gipInterfaceProtocol {
			return Gip
		}
	}

	return GenericHid
}
