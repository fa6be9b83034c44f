// Package virtualpad exposes a synthesized HID gamepad to the host over
// USB/IP. It is the optional second output path next to keyboard/mouse
// injection.
package virtualpad

import (
	"sync"

	"github.com/Alia5/HIDRA/usb"
	"github.com/Alia5/HIDRA/usb/hid"
	"github.com/Alia5/HIDRA/usbip"
)

// InputReportSize is the size of the gamepad input report:
//
//	0-1: 14 button bits, 2 padding bits (little-endian)
//	2:   hat nibble (0-7, 8 = neutral) + 4 padding bits
//	3-6: X, Y, Z, Rz axes (unsigned bytes centered at 128)
//	7-8: Rx, Ry triggers (0-255)
const InputReportSize = 9

// OutputReportSize is the host-to-device report: left motor, right motor,
// LED pattern.
const OutputReportSize = 3

// HatNeutral is the idle hat nibble.
const HatNeutral = 0x08

// InputState is the current gamepad state used to build input reports.
type InputState struct {
	Buttons  uint16 // lower 14 bits used
	Hat      uint8  // 0-7 clockwise from up, HatNeutral when released
	Axes     [4]uint8
	Triggers [2]uint8
}

// BuildReport encodes the state into the 9-byte input report.
func (s *InputState) BuildReport() []byte {
	b := make([]byte, InputReportSize)
	b[0] = uint8(s.Buttons)
	b[1] = uint8(s.Buttons>>8) & 0x3f
	b[2] = s.Hat & 0x0f
	b[3] = s.Axes[0]
	b[4] = s.Axes[1]
	b[5] = s.Axes[2]
	b[6] = s.Axes[3]
	b[7] = s.Triggers[0]
	b[8] = s.Triggers[1]
	return b
}

// RumbleState carries motor strengths in [0,1] as delivered to the rumble
// callback.
type RumbleState struct {
	Left  float32
	Right float32
}

// reportDescriptor describes the gamepad: a 14-bit button field, a 4-bit
// hat, four unsigned byte axes (X, Y, Z, Rz), two unsigned byte triggers
// (Rx, Ry), and a three-byte output report for rumble and LEDs.
var reportDescriptor = hid.Report{
	Items: []hid.Item{
		hid.UsagePage{Page: hid.UsagePageGenericDesktop},
		hid.Usage{Usage: hid.UsageGamePad},
		hid.Collection{Kind: hid.CollectionApplication, Items: []hid.Item{
			hid.UsagePage{Page: hid.UsagePageButton},
			hid.UsageMinimum{Min: 0x01},
			hid.UsageMaximum{Max: 0x0e},
			hid.LogicalMinimum{Min: 0},
			hid.LogicalMaximum{Max: 1},
			hid.ReportSize{Bits: 1},
			hid.ReportCount{Count: 14},
			hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

			hid.ReportSize{Bits: 1},
			hid.ReportCount{Count: 2},
			hid.Input{Flags: hid.MainConst},

			hid.UsagePage{Page: hid.UsagePageGenericDesktop},
			hid.Usage{Usage: hid.UsageHat},
			hid.LogicalMinimum{Min: 0},
			hid.LogicalMaximum{Max: 7},
			hid.PhysicalMinimum{Min: 0},
			hid.PhysicalMaximum{Max: 315},
			hid.ReportSize{Bits: 4},
			hid.ReportCount{Count: 1},
			hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

			hid.ReportSize{Bits: 4},
			hid.ReportCount{Count: 1},
			hid.Input{Flags: hid.MainConst},

			hid.Usage{Usage: hid.UsageX},
			hid.Usage{Usage: hid.UsageY},
			hid.Usage{Usage: hid.UsageZ},
			hid.Usage{Usage: hid.UsageRz},
			hid.LogicalMinimum{Min: 0},
			hid.LogicalMaximum{Max: 255},
			hid.ReportSize{Bits: 8},
			hid.ReportCount{Count: 4},
			hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

			hid.Usage{Usage: hid.UsageRx},
			hid.Usage{Usage: hid.UsageRy},
			hid.LogicalMinimum{Min: 0},
			hid.LogicalMaximum{Max: 255},
			hid.ReportSize{Bits: 8},
			hid.ReportCount{Count: 2},
			hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

			// Rumble motors and LED pattern from the host.
			hid.UsagePage{Page: hid.UsagePagePID},
			hid.LogicalMinimum{Min: 0},
			hid.LogicalMaximum{Max: 255},
			hid.ReportSize{Bits: 8},
			hid.ReportCount{Count: 3},
			hid.Output{Flags: hid.MainData | hid.MainVar | hid.MainAbs},
		}},
	},
}

// Gamepad is the exported usb.Device.
type Gamepad struct {
	descriptor usb.Descriptor

	stateMu sync.Mutex
	state   InputState

	cbMu     sync.Mutex
	onRumble func(RumbleState)
	onLED    func(uint8)
}

// NewGamepad builds a gamepad device with the given USB identity.
func NewGamepad(vendorID, productID uint16, productName string) *Gamepad {
	g := &Gamepad{descriptor: baseDescriptor}
	g.descriptor.Device.IDVendor = vendorID
	g.descriptor.Device.IDProduct = productID
	g.descriptor.Strings = map[uint8]string{
		0: "\x09\x04", // LangID: en-US (0x0409)
		1: "HIDRA",
		2: productName,
		3: "0001",
	}
	g.state.Hat = HatNeutral
	return g
}

var baseDescriptor = usb.Descriptor{
	Device: usb.DeviceDescriptor{
		BcdUSB:             0x0200,
		BDeviceClass:       0x00, // per-interface
		BMaxPacketSize0:    0x40,
		BcdDevice:          0x0100,
		IManufacturer:      0x01,
		IProduct:           0x02,
		ISerialNumber:      0x03,
		BNumConfigurations: 0x01,
		Speed:              2, // Full speed
	},
	Interfaces: []usb.InterfaceConfig{
		{
			Descriptor: usb.InterfaceDescriptor{
				BInterfaceNumber: 0x00,
				BNumEndpoints:    0x02,
				BInterfaceClass:  0x03, // HID
			},
			HID: &usb.HIDConfig{
				BcdHID: 0x0111,
				Report: reportDescriptor,
			},
			Endpoints: []usb.EndpointDescriptor{
				{BEndpointAddress: 0x81, BMAttributes: 0x03, WMaxPacketSize: 0x0040, BInterval: 0x04},
				{BEndpointAddress: 0x01, BMAttributes: 0x03, WMaxPacketSize: 0x0040, BInterval: 0x08},
			},
		},
	},
}

// SetState replaces the input state served to the host.
func (g *Gamepad) SetState(state InputState) {
	g.stateMu.Lock()
	g.state = state
	g.stateMu.Unlock()
}

// State returns the current input state.
func (g *Gamepad) State() InputState {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.state
}

// SetRumbleCallback registers the sink for host rumble output.
func (g *Gamepad) SetRumbleCallback(f func(RumbleState)) {
	g.cbMu.Lock()
	g.onRumble = f
	g.cbMu.Unlock()
}

// SetLEDCallback registers the sink for host LED output.
func (g *Gamepad) SetLEDCallback(f func(uint8)) {
	g.cbMu.Lock()
	g.onLED = f
	g.cbMu.Unlock()
}

// GetDescriptor implements usb.Device.
func (g *Gamepad) GetDescriptor() *usb.Descriptor {
	return &g.descriptor
}

// HandleTransfer implements interrupt IN (input reports) and interrupt OUT
// (rumble/LED output reports).
func (g *Gamepad) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir == usbip.DirIn && ep == 1 {
		g.stateMu.Lock()
		st := g.state
		g.stateMu.Unlock()
		return st.BuildReport()
	}
	if dir == usbip.DirOut && ep == 1 {
		g.handleOutput(out)
	}
	return nil
}

// HandleControl implements HID class EP0 requests: GET_REPORT returns the
// current input report, SET_REPORT(output) carries rumble and LEDs.
func (g *Gamepad) HandleControl(bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16, data []byte) ([]byte, bool) {
	const (
		hidReqGetReport = 0x01
		hidReqSetIdle   = 0x0a
		hidReqSetReport = 0x09

		hidReqTypeClassInToInterface  = 0xa1
		hidReqTypeClassOutToInterface = 0x21

		hidReportTypeInput  = 0x01
		hidReportTypeOutput = 0x02
	)

	reportType := uint8(wValue >> 8)

	switch {
	case bmRequestType == hidReqTypeClassInToInterface && bRequest == hidReqGetReport:
		if reportType != hidReportTypeInput {
			return make([]byte, wLength), true
		}
		g.stateMu.Lock()
		report := g.state.BuildReport()
		g.stateMu.Unlock()
		return report, true
	case bmRequestType == hidReqTypeClassOutToInterface && bRequest == hidReqSetReport:
		if reportType == hidReportTypeOutput {
			g.handleOutput(data)
		}
		return nil, true
	case bmRequestType == hidReqTypeClassOutToInterface && bRequest == hidReqSetIdle:
		return nil, true
	}
	return nil, false
}

// handleOutput decodes a host output report and dispatches the callbacks.
func (g *Gamepad) handleOutput(data []byte) {
	if len(data) < 2 {
		return
	}
	g.cbMu.Lock()
	onRumble := g.onRumble
	onLED := g.onLED
	g.cbMu.Unlock()

	if onRumble != nil {
		onRumble(RumbleState{
			Left:  float32(data[0]) / 255,
			Right: float32(data[1]) / 255,
		})
	}
	if onLED != nil && len(data) >= OutputReportSize {
		onLED(data[2])
	}
}
