// Package usbip encodes and decodes the USB-IP wire protocol: the management
// operations used to list and import devices and the URB stream that follows
// an import. All fields are big-endian.
package usbip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Version = 0x0111

	OpReqDevlist = 0x8005
	OpRepDevlist = 0x0005
	OpReqImport  = 0x8003
	OpRepImport  = 0x0003

	CmdSubmitCode = 0x00000001
	CmdUnlinkCode = 0x00000002
	RetSubmitCode = 0x00000003
	RetUnlinkCode = 0x00000004

	DirOut = 0x00000000
	DirIn  = 0x00000001
)

const (
	MgmtHeaderSize = 8
	BusIDSize      = 32
	PathSize       = 256
	URBHeaderSize  = 0x30
)

// Status codes carried in RET_SUBMIT / RET_UNLINK.
const (
	StatusOK        = 0
	StatusConnReset = -104 // -ECONNRESET
	StatusPipe      = -32  // -EPIPE, a stalled endpoint
)

var ErrShortHeader = errors.New("usbip: short header")

// MgmtHeader is the 8-byte header of devlist/import requests and replies.
type MgmtHeader struct {
	Version uint16
	Command uint16
	Status  uint32
}

func (h *MgmtHeader) Write(w io.Writer) error {
	var buf [MgmtHeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], h.Command)
	binary.BigEndian.PutUint32(buf[4:8], h.Status)
	_, err := w.Write(buf[:])
	return err
}

func ParseMgmtHeader(b []byte) (MgmtHeader, error) {
	if len(b) < MgmtHeaderSize {
		return MgmtHeader{}, ErrShortHeader
	}
	return MgmtHeader{
		Version: binary.BigEndian.Uint16(b[0:2]),
		Command: binary.BigEndian.Uint16(b[2:4]),
		Status:  binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// ExportMeta is the bus identity of an exported device.
type ExportMeta struct {
	Path     [PathSize]byte
	USBBusId [BusIDSize]byte
	BusId    uint32
	DevId    uint32
}

// BusIDString returns USBBusId without its NUL padding.
func (m *ExportMeta) BusIDString() string {
	return CString(m.USBBusId[:])
}

// CString returns b up to the first NUL.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ExportedDevice is one device record of a devlist or import reply.
type ExportedDevice struct {
	ExportMeta
	Speed uint32

	IDVendor            uint16
	IDProduct           uint16
	BcdDevice           uint16
	BDeviceClass        uint8
	BDeviceSubClass     uint8
	BDeviceProtocol     uint8
	BConfigurationValue uint8
	BNumConfigurations  uint8
	BNumInterfaces      uint8

	Interfaces []InterfaceDesc
}

type InterfaceDesc struct {
	Class    uint8
	SubClass uint8
	Protocol uint8
}

func (d *ExportedDevice) appendRecord(b []byte) []byte {
	b = append(b, d.Path[:]...)
	b = append(b, d.USBBusId[:]...)
	b = binary.BigEndian.AppendUint32(b, d.BusId)
	b = binary.BigEndian.AppendUint32(b, d.DevId)
	b = binary.BigEndian.AppendUint32(b, d.Speed)
	b = binary.BigEndian.AppendUint16(b, d.IDVendor)
	b = binary.BigEndian.AppendUint16(b, d.IDProduct)
	b = binary.BigEndian.AppendUint16(b, d.BcdDevice)
	return append(b,
		d.BDeviceClass,
		d.BDeviceSubClass,
		d.BDeviceProtocol,
		d.BConfigurationValue,
		d.BNumConfigurations,
		d.BNumInterfaces,
	)
}

// WriteDevlist writes the record for OP_REP_DEVLIST, followed by one
// class/subclass/protocol/pad quadruplet per interface.
func (d *ExportedDevice) WriteDevlist(w io.Writer) error {
	b := d.appendRecord(nil)
	for _, iface := range d.Interfaces {
		b = append(b, iface.Class, iface.SubClass, iface.Protocol, 0)
	}
	_, err := w.Write(b)
	return err
}

// WriteImport writes the record for OP_REP_IMPORT, which stops at
// bNumInterfaces.
func (d *ExportedDevice) WriteImport(w io.Writer) error {
	_, err := w.Write(d.appendRecord(nil))
	return err
}

// HeaderBasic starts every URB command and reply.
type HeaderBasic struct {
	Command uint32
	Seqnum  uint32
	Devid   uint32
	Dir     uint32
	Ep      uint32
}

func (h HeaderBasic) appendTo(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, h.Command)
	b = binary.BigEndian.AppendUint32(b, h.Seqnum)
	b = binary.BigEndian.AppendUint32(b, h.Devid)
	b = binary.BigEndian.AppendUint32(b, h.Dir)
	return binary.BigEndian.AppendUint32(b, h.Ep)
}

func parseHeaderBasic(b []byte) HeaderBasic {
	return HeaderBasic{
		Command: binary.BigEndian.Uint32(b[0:4]),
		Seqnum:  binary.BigEndian.Uint32(b[4:8]),
		Devid:   binary.BigEndian.Uint32(b[8:12]),
		Dir:     binary.BigEndian.Uint32(b[12:16]),
		Ep:      binary.BigEndian.Uint32(b[16:20]),
	}
}

// CmdSubmit is USBIP_CMD_SUBMIT without its OUT payload.
type CmdSubmit struct {
	Basic             HeaderBasic
	TransferFlags     uint32
	TransferBufferLen uint32
	StartFrame        uint32
	NumberOfPackets   uint32
	Interval          uint32
	Setup             [8]byte
}

func (c *CmdSubmit) Write(w io.Writer) error {
	b := c.Basic.appendTo(make([]byte, 0, URBHeaderSize))
	b = binary.BigEndian.AppendUint32(b, c.TransferFlags)
	b = binary.BigEndian.AppendUint32(b, c.TransferBufferLen)
	b = binary.BigEndian.AppendUint32(b, c.StartFrame)
	b = binary.BigEndian.AppendUint32(b, c.NumberOfPackets)
	b = binary.BigEndian.AppendUint32(b, c.Interval)
	b = append(b, c.Setup[:]...)
	_, err := w.Write(b)
	return err
}

// CmdUnlink is USBIP_CMD_UNLINK.
type CmdUnlink struct {
	Basic        HeaderBasic
	UnlinkSeqnum uint32
}

func (c *CmdUnlink) Write(w io.Writer) error {
	b := c.Basic.appendTo(make([]byte, 0, URBHeaderSize))
	b = binary.BigEndian.AppendUint32(b, c.UnlinkSeqnum)
	b = append(b, make([]byte, URBHeaderSize-len(b))...)
	_, err := w.Write(b)
	return err
}

// ParseURB decodes a 48-byte URB header into either a *CmdSubmit or a
// *CmdUnlink.
func ParseURB(b []byte) (any, error) {
	if len(b) < URBHeaderSize {
		return nil, ErrShortHeader
	}
	basic := parseHeaderBasic(b)
	switch basic.Command {
	case CmdSubmitCode:
		c := &CmdSubmit{
			Basic:             basic,
			TransferFlags:     binary.BigEndian.Uint32(b[20:24]),
			TransferBufferLen: binary.BigEndian.Uint32(b[24:28]),
			StartFrame:        binary.BigEndian.Uint32(b[28:32]),
			NumberOfPackets:   binary.BigEndian.Uint32(b[32:36]),
			Interval:          binary.BigEndian.Uint32(b[36:40]),
		}
		copy(c.Setup[:], b[40:48])
		return c, nil
	case CmdUnlinkCode:
		return &CmdUnlink{Basic: basic, UnlinkSeqnum: binary.BigEndian.Uint32(b[20:24])}, nil
	default:
		return nil, fmt.Errorf("usbip: unsupported command %#x (seq=%d)", basic.Command, basic.Seqnum)
	}
}

// RetSubmit is USBIP_RET_SUBMIT; Data is the IN payload that follows it.
type RetSubmit struct {
	Basic           HeaderBasic
	Status          int32
	ActualLength    uint32
	StartFrame      uint32
	NumberOfPackets uint32
	ErrorCount      uint32
	Data            []byte
}

// Write emits header and payload in one write so replies are never
// interleaved on the connection.
func (r *RetSubmit) Write(w io.Writer) error {
	b := r.Basic.appendTo(make([]byte, 0, URBHeaderSize+len(r.Data)))
	b = binary.BigEndian.AppendUint32(b, uint32(r.Status))
	b = binary.BigEndian.AppendUint32(b, r.ActualLength)
	b = binary.BigEndian.AppendUint32(b, r.StartFrame)
	b = binary.BigEndian.AppendUint32(b, r.NumberOfPackets)
	b = binary.BigEndian.AppendUint32(b, r.ErrorCount)
	b = append(b, make([]byte, 8)...)
	b = append(b, r.Data...)
	_, err := w.Write(b)
	return err
}

// RetUnlink is USBIP_RET_UNLINK.
type RetUnlink struct {
	Basic  HeaderBasic
	Status int32
}

func (r *RetUnlink) Write(w io.Writer) error {
	b := r.Basic.appendTo(make([]byte, 0, URBHeaderSize))
	b = binary.BigEndian.AppendUint32(b, uint32(r.Status))
	b = append(b, make([]byte, URBHeaderSize-len(b))...)
	_, err := w.Write(b)
	return err
}

// ParseRet decodes a reply header (client side). For RET_SUBMIT the payload
// is not read; ActualLength tells how many bytes follow.
func ParseRet(b []byte) (any, error) {
	if len(b) < URBHeaderSize {
		return nil, ErrShortHeader
	}
	basic := parseHeaderBasic(b)
	status := int32(binary.BigEndian.Uint32(b[20:24]))
	switch basic.Command {
	case RetSubmitCode:
		return &RetSubmit{
			Basic:           basic,
			Status:          status,
			ActualLength:    binary.BigEndian.Uint32(b[24:28]),
			StartFrame:      binary.BigEndian.Uint32(b[28:32]),
			NumberOfPackets: binary.BigEndian.Uint32(b[32:36]),
			ErrorCount:      binary.BigEndian.Uint32(b[36:40]),
		}, nil
	case RetUnlinkCode:
		return &RetUnlink{Basic: basic, Status: status}, nil
	default:
		return nil, fmt.Errorf("usbip: unexpected reply %#x (seq=%d)", basic.Command, basic.Seqnum)
	}
}

// ReadExactly is io.ReadFull without the ErrUnexpectedEOF translation.
func ReadExactly(r io.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}
