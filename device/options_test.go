package device_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/device"
	"github.com/simrig/hshifter/usbip"
)

func TestParseUSBID(t *testing.T) {
	type testCase struct {
		name    string
		in      string
		want    device.USBID
		wantErr bool
	}

	testCases := []testCase{
		{name: "lsusb form", in: "1209:0012", want: device.USBID{Vendor: 0x1209, Product: 0x0012}},
		{name: "hex prefixes", in: "0x046d:0xc29b", want: device.USBID{Vendor: 0x046d, Product: 0xc29b}},
		{name: "missing colon", in: "12090012", wantErr: true},
		{name: "bad vendor", in: "zz:0012", wantErr: true},
		{name: "too wide", in: "12345:0012", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := device.ParseUSBID(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUSBIDOptions(t *testing.T) {
	o := device.USBID{}.Options("42")
	assert.Nil(t, o.IdVendor)
	assert.Nil(t, o.IdProduct)
	assert.Equal(t, "42", o.Serial)

	o = device.USBID{Vendor: 1, Product: 2}.Options("")
	require.NotNil(t, o.IdVendor)
	assert.Equal(t, uint16(1), *o.IdVendor)
	assert.Equal(t, uint16(2), *o.IdProduct)
	assert.Equal(t, "0001:0002", device.USBID{Vendor: 1, Product: 2}.String())
}

func TestExportMetaContext(t *testing.T) {
	assert.Nil(t, device.GetDeviceMeta(context.Background()))

	meta := &usbip.ExportMeta{BusId: 1, DevId: 3}
	ctx := device.WithExportMeta(context.Background(), meta)
	assert.Same(t, meta, device.GetDeviceMeta(ctx))
}
