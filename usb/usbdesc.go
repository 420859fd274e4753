// Package usb builds the standard and HID class descriptors an emulated
// device reports during enumeration.
package usb

import (
	"encoding/binary"
)

const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	StringDescType    = 0x03
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	HIDDescType       = 0x21
	ReportDescType    = 0x22
)

const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
	HIDDescLen       = 9
)

// Configuration attributes used by every device here.
const (
	ConfigValue          = 1
	ConfigAttrBusPowered = 0x80
	ConfigMaxPower100mA  = 50 // units of 2mA
)

// LangIDEnglishUS is string descriptor 0.
const LangIDEnglishUS = 0x0409

// Descriptor holds everything a device reports during enumeration.
type Descriptor struct {
	Device     DeviceDescriptor
	Interfaces []InterfaceConfig
	// Strings maps string indexes (1..n) to their text. Index 0 is the
	// language table and is always answered with en-US.
	Strings map[uint8]string
}

// InterfaceConfig groups an interface with its class and endpoint descriptors.
type InterfaceConfig struct {
	Descriptor InterfaceDescriptor
	Endpoints  []EndpointDescriptor
	HID        *HIDDescriptor
	HIDReport  []byte
}

// DeviceDescriptor is the standard device descriptor. Speed is not part of it
// but travels with it in USB-IP device records.
type DeviceDescriptor struct {
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8
	Speed              uint32 // 1=low, 2=full, 3=high, 4=super
}

// Bytes encodes the device descriptor.
func (d *Descriptor) Bytes() []byte {
	b := make([]byte, 0, DeviceDescLen)
	b = append(b, DeviceDescLen, DeviceDescType)
	b = binary.LittleEndian.AppendUint16(b, d.Device.BcdUSB)
	b = append(b, d.Device.BDeviceClass, d.Device.BDeviceSubClass, d.Device.BDeviceProtocol, d.Device.BMaxPacketSize0)
	b = binary.LittleEndian.AppendUint16(b, d.Device.IDVendor)
	b = binary.LittleEndian.AppendUint16(b, d.Device.IDProduct)
	b = binary.LittleEndian.AppendUint16(b, d.Device.BcdDevice)
	return append(b, d.Device.IManufacturer, d.Device.IProduct, d.Device.ISerialNumber, d.Device.BNumConfigurations)
}

// ConfigBytes encodes the full configuration: header, then per interface its
// descriptor, HID class descriptor and endpoints. wTotalLength is patched in.
func (d *Descriptor) ConfigBytes() []byte {
	b := []byte{
		ConfigDescLen, ConfigDescType,
		0, 0, // wTotalLength
		uint8(len(d.Interfaces)),
		ConfigValue,
		0, // iConfiguration
		ConfigAttrBusPowered,
		ConfigMaxPower100mA,
	}
	for _, iface := range d.Interfaces {
		b = iface.Descriptor.AppendTo(b)
		if iface.HID != nil {
			b = iface.HID.AppendTo(b)
		}
		for _, ep := range iface.Endpoints {
			b = ep.AppendTo(b)
		}
	}
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(b)))
	return b
}

// StringBytes returns string descriptor idx, or nil when the device has no
// such string.
func (d *Descriptor) StringBytes(idx uint8) []byte {
	if idx == 0 {
		return binary.LittleEndian.AppendUint16([]byte{4, StringDescType}, LangIDEnglishUS)
	}
	s, ok := d.Strings[idx]
	if !ok {
		return nil
	}
	return EncodeStringDescriptor(s)
}

// EncodeStringDescriptor encodes s as a UTF-16LE string descriptor. Runes
// outside the BMP are not expected in device strings and are truncated.
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2, 2+len(runes)*2)
	buf[0] = uint8(2 + len(runes)*2)
	buf[1] = StringDescType
	for _, r := range runes {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(r))
	}
	return buf
}

type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (i InterfaceDescriptor) AppendTo(b []byte) []byte {
	return append(b, InterfaceDescLen, InterfaceDescType,
		i.BInterfaceNumber, i.BAlternateSetting, i.BNumEndpoints,
		i.BInterfaceClass, i.BInterfaceSubClass, i.BInterfaceProtocol, i.IInterface)
}

type EndpointDescriptor struct {
	BEndpointAddress uint8
	BMAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

func (e EndpointDescriptor) AppendTo(b []byte) []byte {
	b = append(b, EndpointDescLen, EndpointDescType, e.BEndpointAddress, e.BMAttributes)
	b = binary.LittleEndian.AppendUint16(b, e.WMaxPacketSize)
	return append(b, e.BInterval)
}

// HIDDescriptor is the HID class descriptor (0x21) with one report
// descriptor.
type HIDDescriptor struct {
	BcdHID            uint16
	BCountryCode      uint8
	WDescriptorLength uint16
}

func (h HIDDescriptor) AppendTo(b []byte) []byte {
	b = append(b, HIDDescLen, HIDDescType)
	b = binary.LittleEndian.AppendUint16(b, h.BcdHID)
	b = append(b, h.BCountryCode, 1, ReportDescType)
	return binary.LittleEndian.AppendUint16(b, h.WDescriptorLength)
}

// Bytes encodes the HID class descriptor on its own, as returned for a
// GET_DESCRIPTOR(HID) request.
func (h HIDDescriptor) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, HIDDescLen))
}
