// Package gamepad implements the shifter's USB HID joystick: 14 buttons and a
// 10-bit Z axis.
package gamepad

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/simrig/hshifter/device"
	"github.com/simrig/hshifter/usb"
	"github.com/simrig/hshifter/usbip"
)

// Gamepad keeps two copies of its state. The control loop edits the pending
// copy during a tick and publishes it with Flush; the USB side only ever
// reads the committed copy, so the host never sees a half-applied tick.
type Gamepad struct {
	pending InputState

	stateMu   sync.Mutex
	committed InputState
	idle      uint8

	polls      atomic.Uint64
	descriptor usb.Descriptor
}

func New(o *device.CreateOptions) *Gamepad {
	g := &Gamepad{descriptor: defaultDescriptor()}
	if o != nil {
		if o.IdVendor != nil {
			g.descriptor.Device.IDVendor = *o.IdVendor
		}
		if o.IdProduct != nil {
			g.descriptor.Device.IDProduct = *o.IdProduct
		}
		if o.Serial != "" {
			g.descriptor.Strings[3] = o.Serial
		}
	}
	return g
}

// PressButton sets slot in the pending state. Out-of-range slots are ignored.
func (g *Gamepad) PressButton(slot int) {
	g.SetButton(slot, true)
}

// ReleaseButton clears slot in the pending state.
func (g *Gamepad) ReleaseButton(slot int) {
	g.SetButton(slot, false)
}

func (g *Gamepad) SetButton(slot int, pressed bool) {
	if slot < 0 || slot >= Buttons {
		return
	}
	if pressed {
		g.pending.Buttons |= 1 << slot
	} else {
		g.pending.Buttons &^= 1 << slot
	}
}

// SetZAxis sets the pending brake position, clamped to 0..ZMax.
func (g *Gamepad) SetZAxis(v int) {
	g.pending.Z = uint16(max(0, min(v, ZMax)))
}

// Pending returns the state being assembled by the current tick.
func (g *Gamepad) Pending() InputState {
	return g.pending
}

// Flush publishes the pending state and reports whether it differs from what
// was published before.
func (g *Gamepad) Flush() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	changed := g.committed != g.pending
	g.committed = g.pending
	return changed
}

// State returns the committed state.
func (g *Gamepad) State() InputState {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.committed
}

// Polls returns how many interrupt IN transfers have been served.
func (g *Gamepad) Polls() uint64 {
	return g.polls.Load()
}

// HandleTransfer serves interrupt IN on EP1 with the committed report.
func (g *Gamepad) HandleTransfer(ep uint32, dir uint32, out []byte) []byte {
	if dir != usbip.DirIn || ep != 1 {
		return nil
	}
	g.polls.Add(1)
	st := g.State()
	return st.BuildReport()
}

// HandleControl answers the HID class requests on EP0. It returns false for
// requests it does not know.
func (g *Gamepad) HandleControl(setup [8]byte, out []byte) ([]byte, bool) {
	bm, req := setup[0], setup[1]
	wValue := binary.LittleEndian.Uint16(setup[2:4])
	switch {
	case bm == reqTypeClassInterfaceIn && req == hidReqGetReport:
		st := g.State()
		return st.BuildReport(), true
	case bm == reqTypeClassInterfaceIn && req == hidReqGetIdle:
		g.stateMu.Lock()
		defer g.stateMu.Unlock()
		return []byte{g.idle}, true
	case bm == reqTypeClassInterfaceOut && req == hidReqSetIdle:
		g.stateMu.Lock()
		g.idle = uint8(wValue >> 8)
		g.stateMu.Unlock()
		return nil, true
	}
	return nil, false
}

func (g *Gamepad) GetDescriptor() *usb.Descriptor {
	return &g.descriptor
}

var hidReportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x04, // Usage (Joystick)
	0xA1, 0x01, // Collection (Application)
	0x85, ReportID, //   Report ID (1)
	0x05, 0x09, //   Usage Page (Button)
	0x19, 0x01, //   Usage Minimum (Button 1)
	0x29, Buttons, //   Usage Maximum (Button 14)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, Buttons, //   Report Count (14)
	0x81, 0x02, //   Input (Data, Variable, Absolute)
	0x75, 0x01, //   Report Size (1)
	0x95, 16 - Buttons, //   Report Count (2)
	0x81, 0x03, //   Input (Constant) - padding
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x09, 0x32, //   Usage (Z)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x03, //   Logical Maximum (1023)
	0x75, 0x10, //   Report Size (16)
	0x95, 0x01, //   Report Count (1)
	0x81, 0x02, //   Input (Data, Variable, Absolute)
	0xC0, // End Collection
}

func defaultDescriptor() usb.Descriptor {
	return usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    0x40,
			IDVendor:           VendorID,
			IDProduct:          ProductID,
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
					BInterfaceNumber:   0x00,
					BNumEndpoints:      0x01,
					BInterfaceClass:    0x03, // HID
					BInterfaceSubClass: 0x00, // no boot protocol
					BInterfaceProtocol: 0x00,
				},
				HID: &usb.HIDDescriptor{
					BcdHID:            0x0111,
					WDescriptorLength: uint16(len(hidReportDescriptor)),
				},
				HIDReport: hidReportDescriptor,
				Endpoints: []usb.EndpointDescriptor{
					{
						BEndpointAddress: 0x81,
						BMAttributes:     0x03, // Interrupt
						WMaxPacketSize:   0x0040,
						BInterval:        0x01, // 1 ms
					},
				},
			},
		},
		Strings: map[uint8]string{
			1: Manufacturer,
			2: Product,
			3: "0001",
		},
	}
}
