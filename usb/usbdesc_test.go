package usb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/HIDRA/usb/hid"
)

func TestDeviceDescriptorBytes(t *testing.T) {
	d := Descriptor{Device: DeviceDescriptor{
		BcdUSB:             0x0200,
		BMaxPacketSize0:    64,
		IDVendor:           0x1234,
		IDProduct:          0x5678,
		BcdDevice:          0x0100,
		IManufacturer:      1,
		IProduct:           2,
		ISerialNumber:      3,
		BNumConfigurations: 1,
	}}
	b := d.Bytes()
	require.Len(t, b, DeviceDescLen)
	assert.Equal(t, uint8(DeviceDescLen), b[0])
	assert.Equal(t, uint8(DeviceDescType), b[1])
	assert.Equal(t, uint16(0x1234), binary.LittleEndian.Uint16(b[8:10]))
	assert.Equal(t, uint16(0x5678), binary.LittleEndian.Uint16(b[10:12]))
}

func TestHIDConfigDescriptor(t *testing.T) {
	h := &HIDConfig{
		BcdHID: 0x0111,
		Report: hid.Report{Items: []hid.Item{
			hid.UsagePage{Page: hid.UsagePageGenericDesktop},
			hid.Usage{Usage: hid.UsageGamePad},
		}},
	}
	d, err := h.DescriptorBytes()
	require.NoError(t, err)
	require.Len(t, d, HIDDescLen)
	assert.Equal(t, uint8(HIDDescType), d[1])
	// wDescriptorLength covers the report descriptor.
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(d[7:9]))

	r, err := h.ReportBytes()
	require.NoError(t, err)
	assert.Len(t, r, 4)
}

func TestEncodeStringDescriptor(t *testing.T) {
	b := EncodeStringDescriptor("AB")
	assert.Equal(t, []byte{6, StringDescType, 'A', 0, 'B', 0}, b)
}

func TestEndpointDescriptorWrite(t *testing.T) {
	var b bytes.Buffer
	EndpointDescriptor{
		BEndpointAddress: 0x81,
		BMAttributes:     0x03,
		WMaxPacketSize:   64,
		BInterval:        4,
	}.Write(&b)
	assert.Equal(t, []byte{EndpointDescLen, EndpointDescType, 0x81, 0x03, 64, 0, 4}, b.Bytes())
}

func TestClassSpecificDescriptorBytes(t *testing.T) {
	cd := ClassSpecificDescriptor{DescriptorType: 0x41, Payload: []byte{0x00, 0x01}}
	assert.Equal(t, []byte{4, 0x41, 0x00, 0x01}, cd.Bytes())
}
