package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/HIDRA/transport"
)

func ident(vid, pid uint16) transport.DeviceIdentity {
	return transport.DeviceIdentity{VendorID: vid, ProductID: pid}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		id   transport.DeviceIdentity
		desc transport.DeviceDescriptor
		want Kind
	}{
		{"xbox 360 wired", ident(0x045e, 0x028e), transport.DeviceDescriptor{}, XInput},
		{"xbox one s", ident(0x045e, 0x02ea), transport.DeviceDescriptor{}, Gip},
		{"xbox series", ident(0x045e, 0x0b12), transport.DeviceDescriptor{}, Gip},
		{"unknown microsoft pid", ident(0x045e, 0x1234), transport.DeviceDescriptor{}, XInput},
		{"dualshock 4 gen2", ident(0x054c, 0x09cc), transport.DeviceDescriptor{}, Ds4},
		{"dualsense", ident(0x054c, 0x0ce6), transport.DeviceDescriptor{}, Ds5},
		{"unknown sony pid", ident(0x054c, 0x9999), transport.DeviceDescriptor{}, GenericHid},
		{"switch pro", ident(0x057e, 0x2009), transport.DeviceDescriptor{}, SwitchHid},
		{"unknown nintendo pid", ident(0x057e, 0x4242), transport.DeviceDescriptor{}, SwitchHid},
		{"razer onza", ident(0x1689, 0xfd00), transport.DeviceDescriptor{}, XInput},
		{
			"gip interface triplet",
			ident(0x0f0d, 0x0067),
			transport.DeviceDescriptor{Interfaces: []transport.InterfaceInfo{
				{Number: 0, Class: 0xff, SubClass: 0x47, Protocol: 0xd0},
			}},
			Gip,
		},
		{"fallback", ident(0x1a2b, 0x3c4d), transport.DeviceDescriptor{}, GenericHid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Detect(tc.id, tc.desc))
		})
	}
}

func TestDetectIsPure(t *testing.T) {
	id := ident(0x045e, 0x02ea)
	desc := transport.DeviceDescriptor{}
	first := Detect(id, desc)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect(id, desc))
	}
}
