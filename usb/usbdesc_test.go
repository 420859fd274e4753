package usb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/usb"
)

func testDescriptor() *usb.Descriptor {
	return &usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    0x40,
			IDVendor:           0x1209,
			IDProduct:          0x0012,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			BNumConfigurations: 1,
			Speed:              2,
		},
		Interfaces: []usb.InterfaceConfig{{
			Descriptor: usb.InterfaceDescriptor{BNumEndpoints: 1, BInterfaceClass: 0x03},
			HID:        &usb.HIDDescriptor{BcdHID: 0x0111, WDescriptorLength: 40},
			Endpoints:  []usb.EndpointDescriptor{{BEndpointAddress: 0x81, BMAttributes: 0x03, WMaxPacketSize: 8, BInterval: 1}},
		}},
		Strings: map[uint8]string{1: "hshifter", 2: "Ab"},
	}
}

func TestDeviceDescriptorBytes(t *testing.T) {
	b := testDescriptor().Bytes()
	require.Len(t, b, usb.DeviceDescLen)
	assert.Equal(t, []byte{
		18, 0x01,
		0x00, 0x02,
		0, 0, 0, 0x40,
		0x09, 0x12,
		0x12, 0x00,
		0x00, 0x01,
		1, 2, 0, 1,
	}, b)
}

func TestConfigBytes(t *testing.T) {
	b := testDescriptor().ConfigBytes()
	want := []byte{
		9, 0x02, 34, 0, 1, 1, 0, 0x80, 50,
		9, 0x04, 0, 0, 1, 0x03, 0, 0, 0,
		9, 0x21, 0x11, 0x01, 0, 1, 0x22, 40, 0,
		7, 0x05, 0x81, 0x03, 8, 0, 1,
	}
	assert.Equal(t, want, b)
}

func TestStringBytes(t *testing.T) {
	d := testDescriptor()

	type testCase struct {
		name string
		idx  uint8
		want []byte
	}
	for _, tc := range []testCase{
		{name: "language table", idx: 0, want: []byte{4, 0x03, 0x09, 0x04}},
		{name: "product", idx: 2, want: []byte{6, 0x03, 'A', 0, 'b', 0}},
		{name: "missing", idx: 9, want: nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.StringBytes(tc.idx))
		})
	}
}

func TestHIDDescriptorBytes(t *testing.T) {
	h := usb.HIDDescriptor{BcdHID: 0x0111, WDescriptorLength: 0x0134}
	assert.Equal(t, []byte{9, 0x21, 0x11, 0x01, 0, 1, 0x22, 0x34, 0x01}, h.Bytes())
}
