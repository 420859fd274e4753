package usbip_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/usbip"
)

func TestMgmtHeader(t *testing.T) {
	var buf bytes.Buffer
	h := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}
	require.NoError(t, h.Write(&buf))
	assert.Equal(t, []byte{0x01, 0x11, 0x80, 0x03, 0, 0, 0, 0}, buf.Bytes())

	got, err := usbip.ParseMgmtHeader(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = usbip.ParseMgmtHeader([]byte{1, 2})
	assert.ErrorIs(t, err, usbip.ErrShortHeader)
}

func TestExportedDeviceRecords(t *testing.T) {
	d := usbip.ExportedDevice{
		Speed:               2,
		IDVendor:            0x1209,
		IDProduct:           0x0012,
		BcdDevice:           0x0100,
		BConfigurationValue: 1,
		BNumConfigurations:  1,
		BNumInterfaces:      1,
		Interfaces:          []usbip.InterfaceDesc{{Class: 0x03}},
	}
	copy(d.USBBusId[:], "1-1")
	d.BusId = 1
	d.DevId = 1

	var imp, list bytes.Buffer
	require.NoError(t, d.WriteImport(&imp))
	require.NoError(t, d.WriteDevlist(&list))

	const record = usbip.PathSize + usbip.BusIDSize + 12 + 6 + 6
	require.Equal(t, record, imp.Len())
	assert.Equal(t, record+4, list.Len())
	assert.Equal(t, imp.Bytes(), list.Bytes()[:record])
	assert.Equal(t, []byte{0x03, 0, 0, 0}, list.Bytes()[record:])
	assert.Equal(t, "1-1", usbip.CString(imp.Bytes()[usbip.PathSize:usbip.PathSize+usbip.BusIDSize]))
	assert.Equal(t, "1-1", d.BusIDString())
}

func TestURBRoundTrip(t *testing.T) {
	submit := &usbip.CmdSubmit{
		Basic:             usbip.HeaderBasic{Command: usbip.CmdSubmitCode, Seqnum: 7, Devid: 0x00010001, Dir: usbip.DirIn, Ep: 0},
		TransferBufferLen: 18,
		Setup:             [8]byte{0x80, 0x06, 0x00, 0x01, 0, 0, 18, 0},
	}
	var buf bytes.Buffer
	require.NoError(t, submit.Write(&buf))
	require.Equal(t, usbip.URBHeaderSize, buf.Len())

	got, err := usbip.ParseURB(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, submit, got)

	unlink := &usbip.CmdUnlink{Basic: usbip.HeaderBasic{Command: usbip.CmdUnlinkCode, Seqnum: 8}, UnlinkSeqnum: 7}
	buf.Reset()
	require.NoError(t, unlink.Write(&buf))
	got, err = usbip.ParseURB(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, unlink, got)

	bad := make([]byte, usbip.URBHeaderSize)
	bad[3] = 9
	_, err = usbip.ParseURB(bad)
	assert.ErrorContains(t, err, "unsupported command")
}

func TestRetRoundTrip(t *testing.T) {
	ret := &usbip.RetSubmit{
		Basic:        usbip.HeaderBasic{Command: usbip.RetSubmitCode, Seqnum: 3},
		Status:       usbip.StatusPipe,
		ActualLength: 5,
		Data:         []byte{1, 2, 3, 4, 5},
	}
	var buf bytes.Buffer
	require.NoError(t, ret.Write(&buf))
	require.Equal(t, usbip.URBHeaderSize+5, buf.Len())

	got, err := usbip.ParseRet(buf.Bytes())
	require.NoError(t, err)
	rs := got.(*usbip.RetSubmit)
	assert.Equal(t, int32(usbip.StatusPipe), rs.Status)
	assert.Equal(t, uint32(5), rs.ActualLength)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, buf.Bytes()[usbip.URBHeaderSize:])

	buf.Reset()
	ru := &usbip.RetUnlink{Basic: usbip.HeaderBasic{Command: usbip.RetUnlinkCode, Seqnum: 4}, Status: usbip.StatusConnReset}
	require.NoError(t, ru.Write(&buf))
	got, err = usbip.ParseRet(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ru, got)
}
