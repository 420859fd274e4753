package device

import (
	"fmt"
	"strconv"
	"strings"
)

// CreateOptions overrides parts of a device's default identity.
type CreateOptions struct {
	IdVendor  *uint16
	IdProduct *uint16
	Serial    string
}

// USBID is a "vvvv:pppp" hex pair as printed by lsusb.
type USBID struct {
	Vendor, Product uint16
}

func ParseUSBID(s string) (USBID, error) {
	v, p, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return USBID{}, fmt.Errorf("usb id %q: want vvvv:pppp", s)
	}
	vid, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("usb id %q: vendor: %w", s, err)
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(p, "0x"), 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("usb id %q: product: %w", s, err)
	}
	return USBID{Vendor: uint16(vid), Product: uint16(pid)}, nil
}

func (id USBID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

func (id *USBID) UnmarshalText(text []byte) error {
	v, err := ParseUSBID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id USBID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// Options converts a configured id into CreateOptions. A zero id keeps the
// device defaults.
func (id USBID) Options(serial string) *CreateOptions {
	o := &CreateOptions{Serial: serial}
	if id != (USBID{}) {
		o.IdVendor = &id.Vendor
		o.IdProduct = &id.Product
	}
	return o
}
