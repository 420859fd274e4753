package usb

// Device is what the USB-IP server needs from an emulated device. EP0
// enumeration is answered by the server from the descriptor; everything else
// goes through HandleTransfer.
type Device interface {
	// HandleTransfer serves a non-EP0 transfer. ep excludes the direction
	// bit, dir is usbip.DirIn or usbip.DirOut. IN transfers return the
	// payload; OUT transfers consume out and return nil.
	HandleTransfer(ep uint32, dir uint32, out []byte) []byte
	GetDescriptor() *Descriptor
}

// ControlHandler is optionally implemented by devices that answer class or
// vendor requests on EP0. ok is false for requests the device does not know.
type ControlHandler interface {
	HandleControl(setup [8]byte, out []byte) (data []byte, ok bool)
}
