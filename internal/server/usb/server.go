// Package usb serves the devices of a virtual bus over USB-IP, so that
// usbip attach (Linux) or usbip-win makes them appear as local USB devices.
package usb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/simrig/hshifter/internal/log"
	"github.com/simrig/hshifter/usb"
	"github.com/simrig/hshifter/usbip"
	"github.com/simrig/hshifter/virtualbus"
)

const (
	usbReqGetStatus        = 0x00
	usbReqClearFeature     = 0x01
	usbReqSetFeature       = 0x03
	usbReqSetAddress       = 0x05
	usbReqGetDescriptor    = 0x06
	usbReqGetConfiguration = 0x08
	usbReqSetConfiguration = 0x09
	usbReqGetInterface     = 0x0A
	usbReqSetInterface     = 0x0B

	usbReqTypeStandardToDevice      = 0x00
	usbReqTypeStandardToInterface   = 0x01
	usbReqTypeStandardToEndpoint    = 0x02
	usbReqTypeStandardFromDevice    = 0x80
	usbReqTypeStandardFromInterface = 0x81
)

type Server struct {
	config    *ServerConfig
	logger    *slog.Logger
	rawLogger log.RawLogger
	bus       *virtualbus.VirtualBus

	ready     chan struct{}
	readyOnce sync.Once
	lnMu      sync.Mutex
	ln        net.Listener
}

func New(config ServerConfig, bus *virtualbus.VirtualBus, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	return &Server{
		config:    &config,
		logger:    logger,
		rawLogger: rawLogger,
		bus:       bus,
		ready:     make(chan struct{}),
	}
}

// ListenAndServe binds the configured address and serves until ctx is done
// or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("USBIP server listening", "addr", ln.Addr().String())
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("USBIP server stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}
		s.logger.Info("Client connected", "remote", c.RemoteAddr())
		go func() {
			if err := s.handleConn(c); err != nil {
				if isClientDisconnect(err) {
					s.logger.Info("Client disconnected", "remote", c.RemoteAddr())
				} else {
					s.logger.Error("Connection handler error", "remote", c.RemoteAddr(), "error", err)
				}
			}
		}()
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Close() error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// ListenPort returns the bound port, or the configured one before Ready.
func (s *Server) ListenPort() uint16 {
	addr := s.config.Addr
	if a := s.Addr(); a != nil {
		addr = a.String()
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}

// --

func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()
	if s.rawLogger != nil {
		conn = &logConn{Conn: conn, raw: s.rawLogger}
	}
	if s.config.ConnectionTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.config.ConnectionTimeout)); err != nil {
			s.logger.Warn("Failed to set deadline", "error", err)
		}
	}

	var hdrBuf [usbip.MgmtHeaderSize]byte
	if err := usbip.ReadExactly(conn, hdrBuf[:]); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	hdr, _ := usbip.ParseMgmtHeader(hdrBuf[:])
	if hdr.Version != usbip.Version {
		return fmt.Errorf("unsupported USB-IP version %#04x", hdr.Version)
	}

	switch hdr.Command {
	case usbip.OpReqDevlist:
		s.logger.Debug("OP_REQ_DEVLIST")
		return s.handleDevList(conn)
	case usbip.OpReqImport:
		s.logger.Debug("OP_REQ_IMPORT")
		dev, ctx, err := s.handleImport(conn)
		if err != nil {
			return fmt.Errorf("handle import: %w", err)
		}
		return s.handleUrbStream(ctx, conn, dev)
	}
	return fmt.Errorf("protocol violation: unexpected op %#04x before OP_REQ_IMPORT", hdr.Command)
}

func exportedDevice(m virtualbus.DeviceMeta) usbip.ExportedDevice {
	desc := m.Dev.GetDescriptor()
	exp := usbip.ExportedDevice{
		ExportMeta:          m.Meta,
		Speed:               desc.Device.Speed,
		IDVendor:            desc.Device.IDVendor,
		IDProduct:           desc.Device.IDProduct,
		BcdDevice:           desc.Device.BcdDevice,
		BDeviceClass:        desc.Device.BDeviceClass,
		BDeviceSubClass:     desc.Device.BDeviceSubClass,
		BDeviceProtocol:     desc.Device.BDeviceProtocol,
		BConfigurationValue: usb.ConfigValue,
		BNumConfigurations:  desc.Device.BNumConfigurations,
		BNumInterfaces:      uint8(len(desc.Interfaces)),
	}
	for _, iface := range desc.Interfaces {
		exp.Interfaces = append(exp.Interfaces, usbip.InterfaceDesc{
			Class:    iface.Descriptor.BInterfaceClass,
			SubClass: iface.Descriptor.BInterfaceSubClass,
			Protocol: iface.Descriptor.BInterfaceProtocol,
		})
	}
	return exp
}

func (s *Server) handleDevList(conn net.Conn) error {
	metas := s.bus.Devices()

	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepDevlist}
	_ = rep.Write(&buf)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(metas)))
	for _, m := range metas {
		exp := exportedDevice(m)
		_ = exp.WriteDevlist(&buf)
	}
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write devlist: %w", err)
	}
	return nil
}

func (s *Server) handleImport(conn net.Conn) (usb.Device, context.Context, error) {
	var rest [usbip.BusIDSize]byte
	if err := usbip.ReadExactly(conn, rest[:]); err != nil {
		return nil, nil, fmt.Errorf("read import busid: %w", err)
	}
	reqBus := usbip.CString(rest[:])
	s.logger.Info("Import request", "busid", reqBus)

	m, ctx, ok := s.bus.Lookup(reqBus)
	if !ok {
		// status 1 tells the client the device is unavailable
		rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport, Status: 1}
		_ = rep.Write(conn)
		return nil, nil, fmt.Errorf("no device matches busid %s", reqBus)
	}

	var buf bytes.Buffer
	rep := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpRepImport}
	_ = rep.Write(&buf)
	exp := exportedDevice(m)
	_ = exp.WriteImport(&buf)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return nil, nil, fmt.Errorf("write import reply: %w", err)
	}
	return m.Dev, ctx, nil
}

func (s *Server) handleUrbStream(ctx context.Context, conn net.Conn, dev usb.Device) error {
	_ = conn.SetDeadline(time.Time{})

	// A device removed from the bus ends the stream.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var lastInterrupt time.Time
	for {
		var hdr [usbip.URBHeaderSize]byte
		if err := usbip.ReadExactly(conn, hdr[:]); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Device removed, closing URB stream")
				return nil
			}
			return fmt.Errorf("read URB header: %w", err)
		}
		urb, err := usbip.ParseURB(hdr[:])
		if err != nil {
			return err
		}

		switch cmd := urb.(type) {
		case *usbip.CmdUnlink:
			s.logger.Debug("USBIP_CMD_UNLINK", "seq", cmd.Basic.Seqnum, "unlink", cmd.UnlinkSeqnum)
			// Submits are answered synchronously, so the target is always
			// already gone.
			ret := usbip.RetUnlink{
				Basic:  usbip.HeaderBasic{Command: usbip.RetUnlinkCode, Seqnum: cmd.Basic.Seqnum},
				Status: usbip.StatusConnReset,
			}
			if err := ret.Write(conn); err != nil {
				return fmt.Errorf("write RET_UNLINK: %w", err)
			}

		case *usbip.CmdSubmit:
			var outPayload []byte
			if cmd.Basic.Dir == usbip.DirOut && cmd.TransferBufferLen > 0 {
				outPayload = make([]byte, cmd.TransferBufferLen)
				if err := usbip.ReadExactly(conn, outPayload); err != nil {
					return fmt.Errorf("read OUT payload: %w", err)
				}
			}

			if cmd.Basic.Ep != 0 && s.config.PollInterval > 0 {
				if wait := time.Until(lastInterrupt.Add(s.config.PollInterval)); wait > 0 {
					time.Sleep(wait)
				}
				lastInterrupt = time.Now()
			}

			data, status := s.processSubmit(dev, cmd, outPayload)
			if cmd.Basic.Dir == usbip.DirIn && uint32(len(data)) > cmd.TransferBufferLen {
				data = data[:cmd.TransferBufferLen]
			}
			actual := uint32(len(data))
			if cmd.Basic.Dir == usbip.DirOut {
				actual = uint32(len(outPayload))
				data = nil
			}
			ret := usbip.RetSubmit{
				Basic:        usbip.HeaderBasic{Command: usbip.RetSubmitCode, Seqnum: cmd.Basic.Seqnum},
				Status:       status,
				ActualLength: actual,
				Data:         data,
			}
			if err := ret.Write(conn); err != nil {
				return fmt.Errorf("write RET_SUBMIT: %w", err)
			}
		}
	}
}

// processSubmit answers one submit. Interrupt and bulk transfers go to the
// device; EP0 requests are answered from its descriptor. Unknown control
// requests stall.
func (s *Server) processSubmit(dev usb.Device, cmd *usbip.CmdSubmit, out []byte) ([]byte, int32) {
	if cmd.Basic.Ep != 0 {
		return dev.HandleTransfer(cmd.Basic.Ep, cmd.Basic.Dir, out), usbip.StatusOK
	}

	setup := cmd.Setup
	bm := setup[0]
	breq := setup[1]
	wValue := binary.LittleEndian.Uint16(setup[2:4])
	wIndex := binary.LittleEndian.Uint16(setup[4:6])
	desc := dev.GetDescriptor()

	switch {
	case bm == usbReqTypeStandardToDevice && (breq == usbReqSetAddress || breq == usbReqSetConfiguration):
		return nil, usbip.StatusOK
	case bm == usbReqTypeStandardFromDevice && breq == usbReqGetConfiguration:
		return []byte{usb.ConfigValue}, usbip.StatusOK
	case bm&0x80 != 0 && breq == usbReqGetStatus && bm&0x60 == 0:
		return []byte{0, 0}, usbip.StatusOK
	case bm&0x7F == usbReqTypeStandardToEndpoint && (breq == usbReqClearFeature || breq == usbReqSetFeature):
		return nil, usbip.StatusOK
	case bm == usbReqTypeStandardToInterface && breq == usbReqSetInterface:
		return nil, usbip.StatusOK
	case bm == usbReqTypeStandardFromInterface && breq == usbReqGetInterface:
		return []byte{0}, usbip.StatusOK

	case bm == usbReqTypeStandardFromDevice && breq == usbReqGetDescriptor:
		var data []byte
		switch uint8(wValue >> 8) {
		case usb.DeviceDescType:
			data = desc.Bytes()
		case usb.ConfigDescType:
			data = desc.ConfigBytes()
		case usb.StringDescType:
			data = desc.StringBytes(uint8(wValue))
		}
		if data == nil {
			return nil, usbip.StatusPipe
		}
		return data, usbip.StatusOK

	case bm == usbReqTypeStandardFromInterface && breq == usbReqGetDescriptor:
		iface := int(wIndex & 0xff)
		if iface >= len(desc.Interfaces) {
			return nil, usbip.StatusPipe
		}
		ic := desc.Interfaces[iface]
		switch uint8(wValue >> 8) {
		case usb.HIDDescType:
			if ic.HID != nil {
				return ic.HID.Bytes(), usbip.StatusOK
			}
		case usb.ReportDescType:
			if len(ic.HIDReport) > 0 {
				return ic.HIDReport, usbip.StatusOK
			}
		}
		return nil, usbip.StatusPipe
	}

	if ch, ok := dev.(usb.ControlHandler); ok {
		if data, ok := ch.HandleControl(setup, out); ok {
			return data, usbip.StatusOK
		}
	}
	s.logger.Debug("Stalling unknown control request", "bmRequestType", bm, "bRequest", breq, "wValue", wValue)
	return nil, usbip.StatusPipe
}

type logConn struct {
	net.Conn
	raw log.RawLogger
}

func (lc *logConn) Read(p []byte) (int, error) {
	n, err := lc.Conn.Read(p)
	if n > 0 {
		lc.raw.Log(true, p[:n])
	}
	return n, err
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 {
		lc.raw.Log(false, p[:n])
	}
	return n, err
}

// isClientDisconnect reports whether err is an ordinary client hang-up,
// which is logged at info instead of error.
func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset by peer") || strings.Contains(e, "forcibly closed")
}
