// Package testing provides an in-process USB-IP client for tests that need
// to enumerate and poll an exported device the way vhci would.
package testing

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/simrig/hshifter/usbip"
)

type UsbIpClient struct {
	t       *testing.T
	address string
	seq     atomic.Uint32
}

// Device is a parsed devlist / import record.
type Device struct {
	Path       string
	BusID      string
	BusNum     uint32
	DeviceNum  uint32
	Speed      uint32
	IDVendor   uint16
	IDProduct  uint16
	BcdDevice  uint16
	ConfigVal  uint8
	NumConfigs uint8
	NumIfaces  uint8
	Interfaces []usbip.InterfaceDesc
}

// Attached is an imported device with its URB connection.
type Attached struct {
	client *UsbIpClient
	Conn   net.Conn
	Device Device
}

func NewUsbIpClient(t *testing.T, addr string) *UsbIpClient {
	t.Helper()
	return &UsbIpClient{t: t, address: addr}
}

func (c *UsbIpClient) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", c.address, 2*time.Second)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	return conn, nil
}

func (c *UsbIpClient) ListDevices() ([]Device, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := (&usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqDevlist}).Write(conn); err != nil {
		return nil, err
	}
	if err := expectReply(conn, usbip.OpRepDevlist); err != nil {
		return nil, err
	}
	var nb [4]byte
	if err := usbip.ReadExactly(conn, nb[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(nb[:])
	devices := make([]Device, 0, n)
	for i := uint32(0); i < n; i++ {
		dev, err := readDevice(conn, true)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Attach imports busID and keeps the connection open for URBs. The
// connection is closed when the test ends.
func (c *UsbIpClient) Attach(busID string) (*Attached, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Attached, error) {
		_ = conn.Close()
		return nil, err
	}

	if err := (&usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}).Write(conn); err != nil {
		return fail(err)
	}
	var bus [usbip.BusIDSize]byte
	copy(bus[:], busID)
	if _, err := conn.Write(bus[:]); err != nil {
		return fail(err)
	}
	if err := expectReply(conn, usbip.OpRepImport); err != nil {
		return fail(err)
	}
	dev, err := readDevice(conn, false)
	if err != nil {
		return fail(err)
	}
	_ = conn.SetDeadline(time.Time{})
	c.t.Cleanup(func() { _ = conn.Close() })
	return &Attached{client: c, Conn: conn, Device: dev}, nil
}

func expectReply(conn net.Conn, want uint16) error {
	var hb [usbip.MgmtHeaderSize]byte
	if err := usbip.ReadExactly(conn, hb[:]); err != nil {
		return err
	}
	h, _ := usbip.ParseMgmtHeader(hb[:])
	if h.Version != usbip.Version {
		return fmt.Errorf("unexpected usbip version %x", h.Version)
	}
	if h.Command != want {
		return fmt.Errorf("unexpected reply command %x", h.Command)
	}
	if h.Status != 0 {
		return fmt.Errorf("reply status %d", h.Status)
	}
	return nil
}

func readDevice(conn net.Conn, withIfaces bool) (Device, error) {
	var base [usbip.PathSize + usbip.BusIDSize + 24]byte
	if err := usbip.ReadExactly(conn, base[:]); err != nil {
		return Device{}, err
	}
	o := usbip.PathSize + usbip.BusIDSize
	d := Device{
		Path:       usbip.CString(base[:usbip.PathSize]),
		BusID:      usbip.CString(base[usbip.PathSize:o]),
		BusNum:     binary.BigEndian.Uint32(base[o:]),
		DeviceNum:  binary.BigEndian.Uint32(base[o+4:]),
		Speed:      binary.BigEndian.Uint32(base[o+8:]),
		IDVendor:   binary.BigEndian.Uint16(base[o+12:]),
		IDProduct:  binary.BigEndian.Uint16(base[o+14:]),
		BcdDevice:  binary.BigEndian.Uint16(base[o+16:]),
		ConfigVal:  base[o+21],
		NumConfigs: base[o+22],
		NumIfaces:  base[o+23],
	}
	if withIfaces && d.NumIfaces > 0 {
		buf := make([]byte, int(d.NumIfaces)*4)
		if err := usbip.ReadExactly(conn, buf); err != nil {
			return Device{}, err
		}
		for i := 0; i < len(buf); i += 4 {
			d.Interfaces = append(d.Interfaces, usbip.InterfaceDesc{Class: buf[i], SubClass: buf[i+1], Protocol: buf[i+2]})
		}
	}
	return d, nil
}

// Submit sends one CMD_SUBMIT and waits for its RET_SUBMIT. For IN
// transfers length is the buffer size offered; for OUT transfers out is sent.
func (a *Attached) Submit(dir, ep uint32, setup [8]byte, length uint32, out []byte) (status int32, data []byte, err error) {
	seq := a.client.seq.Add(1)
	if dir == usbip.DirOut {
		length = uint32(len(out))
	}
	cmd := usbip.CmdSubmit{
		Basic:             usbip.HeaderBasic{Command: usbip.CmdSubmitCode, Seqnum: seq, Devid: 0x00010001, Dir: dir, Ep: ep},
		TransferBufferLen: length,
		Setup:             setup,
	}

	_ = a.Conn.SetDeadline(time.Now().Add(time.Second))
	defer func() { _ = a.Conn.SetDeadline(time.Time{}) }()

	if err := cmd.Write(a.Conn); err != nil {
		return 0, nil, err
	}
	if len(out) > 0 {
		if _, err := a.Conn.Write(out); err != nil {
			return 0, nil, err
		}
	}

	var hdr [usbip.URBHeaderSize]byte
	if err := usbip.ReadExactly(a.Conn, hdr[:]); err != nil {
		return 0, nil, err
	}
	r, err := usbip.ParseRet(hdr[:])
	if err != nil {
		return 0, nil, err
	}
	ret, ok := r.(*usbip.RetSubmit)
	if !ok {
		return 0, nil, fmt.Errorf("expected RET_SUBMIT, got %T", r)
	}
	if ret.Basic.Seqnum != seq {
		return 0, nil, fmt.Errorf("seqnum %d, want %d", ret.Basic.Seqnum, seq)
	}
	if dir == usbip.DirIn && ret.ActualLength > 0 {
		data = make([]byte, ret.ActualLength)
		if err := usbip.ReadExactly(a.Conn, data); err != nil {
			return 0, nil, err
		}
	}
	return ret.Status, data, nil
}

// Control performs a control IN transfer on EP0.
func (a *Attached) Control(bmRequestType, bRequest uint8, wValue, wIndex, wLength uint16) (int32, []byte, error) {
	var setup [8]byte
	setup[0] = bmRequestType
	setup[1] = bRequest
	binary.LittleEndian.PutUint16(setup[2:4], wValue)
	binary.LittleEndian.PutUint16(setup[4:6], wIndex)
	binary.LittleEndian.PutUint16(setup[6:8], wLength)
	dir := uint32(usbip.DirOut)
	if bmRequestType&0x80 != 0 {
		dir = usbip.DirIn
	}
	return a.Submit(dir, 0, setup, uint32(wLength), nil)
}

// ReadInputReport polls the interrupt IN endpoint once.
func (a *Attached) ReadInputReport() ([]byte, error) {
	status, data, err := a.Submit(usbip.DirIn, 1, [8]byte{}, 64, nil)
	if err != nil {
		return nil, err
	}
	if status != usbip.StatusOK {
		return nil, fmt.Errorf("ret status %d", status)
	}
	return data, nil
}

// Unlink sends CMD_UNLINK for seq and returns the reply status.
func (a *Attached) Unlink(seq uint32) (int32, error) {
	cmd := usbip.CmdUnlink{
		Basic:        usbip.HeaderBasic{Command: usbip.CmdUnlinkCode, Seqnum: a.client.seq.Add(1)},
		UnlinkSeqnum: seq,
	}
	_ = a.Conn.SetDeadline(time.Now().Add(time.Second))
	defer func() { _ = a.Conn.SetDeadline(time.Time{}) }()
	if err := cmd.Write(a.Conn); err != nil {
		return 0, err
	}
	var hdr [usbip.URBHeaderSize]byte
	if err := usbip.ReadExactly(a.Conn, hdr[:]); err != nil {
		return 0, err
	}
	r, err := usbip.ParseRet(hdr[:])
	if err != nil {
		return 0, err
	}
	ret, ok := r.(*usbip.RetUnlink)
	if !ok {
		return 0, fmt.Errorf("expected RET_UNLINK, got %T", r)
	}
	return ret.Status, nil
}
