// Package virtualbus assigns USB-IP bus identities to emulated devices and
// owns their lifetime: removing a device cancels its context, which ends any
// attached URB stream.
package virtualbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/simrig/hshifter/device"
	"github.com/simrig/hshifter/usb"
	"github.com/simrig/hshifter/usbip"
)

const basepath = "/sys/devices/platform/hshifter/usb"

// VirtualBus is one emulated USB bus.
type VirtualBus struct {
	mutex   sync.Mutex
	busId   uint32
	devices []busDevice
	closed  bool
}

// DeviceMeta pairs a device with its export identity.
type DeviceMeta struct {
	Dev  usb.Device
	Meta usbip.ExportMeta
}

type busDevice struct {
	dev    usb.Device
	meta   usbip.ExportMeta
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bus. Bus numbers start at 1.
func New(busId uint32) (*VirtualBus, error) {
	if busId == 0 {
		return nil, fmt.Errorf("bus number must be at least 1")
	}
	return &VirtualBus{busId: busId}, nil
}

func (vb *VirtualBus) BusID() uint32 {
	return vb.busId
}

// Add attaches dev with the lowest free device number and returns a context
// that lives as long as the device stays on the bus.
func (vb *VirtualBus) Add(dev usb.Device) (context.Context, error) {
	vb.mutex.Lock()
	defer vb.mutex.Unlock()

	if vb.closed {
		return nil, fmt.Errorf("bus %d is closed", vb.busId)
	}
	used := make(map[uint32]bool, len(vb.devices))
	for _, d := range vb.devices {
		if d.dev == dev {
			return nil, fmt.Errorf("device already registered on bus %d", vb.busId)
		}
		used[d.meta.DevId] = true
	}
	devID := uint32(1)
	for used[devID] {
		devID++
	}

	busDevID := fmt.Sprintf("%d-%d", vb.busId, devID)
	var meta usbip.ExportMeta
	copy(meta.Path[:], fmt.Sprintf("%s%d/%s", basepath, vb.busId, busDevID))
	copy(meta.USBBusId[:], busDevID)
	meta.BusId = vb.busId
	meta.DevId = devID

	ctx, cancel := context.WithCancel(context.Background())
	ctx = device.WithExportMeta(ctx, &meta)

	vb.devices = append(vb.devices, busDevice{dev: dev, meta: meta, ctx: ctx, cancel: cancel})
	return ctx, nil
}

// Remove detaches dev and cancels its context.
func (vb *VirtualBus) Remove(dev usb.Device) error {
	vb.mutex.Lock()
	defer vb.mutex.Unlock()
	for i, d := range vb.devices {
		if d.dev == dev {
			d.cancel()
			vb.devices = append(vb.devices[:i], vb.devices[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("device not found on bus %d", vb.busId)
}

// Devices returns a snapshot of the attached devices with their identities.
func (vb *VirtualBus) Devices() []DeviceMeta {
	vb.mutex.Lock()
	defer vb.mutex.Unlock()
	out := make([]DeviceMeta, 0, len(vb.devices))
	for _, d := range vb.devices {
		out = append(out, DeviceMeta{Dev: d.dev, Meta: d.meta})
	}
	return out
}

// Lookup finds a device by its "bus-dev" id and returns it with its context.
func (vb *VirtualBus) Lookup(busID string) (DeviceMeta, context.Context, bool) {
	vb.mutex.Lock()
	defer vb.mutex.Unlock()
	for _, d := range vb.devices {
		if d.meta.BusIDString() == busID {
			return DeviceMeta{Dev: d.dev, Meta: d.meta}, d.ctx, true
		}
	}
	return DeviceMeta{}, nil, false
}

// Close removes every device. The bus cannot be reused.
func (vb *VirtualBus) Close() error {
	vb.mutex.Lock()
	defer vb.mutex.Unlock()
	for _, d := range vb.devices {
		d.cancel()
	}
	vb.devices = nil
	vb.closed = true
	return nil
}
