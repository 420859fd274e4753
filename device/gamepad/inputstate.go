package gamepad

import (
	"encoding/binary"
	"io"
)

// InputState is what the host sees: the button bitfield and the brake on Z.
type InputState struct {
	// Bit n is button slot n. Bits 14 and 15 are padding and always clear.
	Buttons uint16
	// Z is the brake position, 0..ZMax.
	Z uint16
}

// Pressed reports whether slot is pressed.
func (s InputState) Pressed(slot int) bool {
	if slot < 0 || slot >= Buttons {
		return false
	}
	return s.Buttons&(1<<slot) != 0
}

// PressedSlots lists the pressed slots in ascending order.
func (s InputState) PressedSlots() []int {
	var out []int
	for i := 0; i < Buttons; i++ {
		if s.Pressed(i) {
			out = append(out, i)
		}
	}
	return out
}

// BuildReport encodes the input report.
//
// Report layout (5 bytes):
//
//	Byte 0: Report ID (1)
//	Bytes 1-2: Buttons 1-14 (LE, bits 14-15 padding)
//	Bytes 3-4: Z (uint16 LE, 0..1023)
func (s *InputState) BuildReport() []byte {
	b := make([]byte, ReportSize)
	b[0] = ReportID
	binary.LittleEndian.PutUint16(b[1:3], s.Buttons&buttonMask)
	binary.LittleEndian.PutUint16(b[3:5], min(s.Z, ZMax))
	return b
}

// MarshalBinary encodes the state as the 4 bytes after the report ID.
func (s *InputState) MarshalBinary() ([]byte, error) {
	return s.BuildReport()[1:], nil
}

func (s *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize-1 {
		return io.ErrUnexpectedEOF
	}
	s.Buttons = binary.LittleEndian.Uint16(data[0:2]) & buttonMask
	s.Z = min(binary.LittleEndian.Uint16(data[2:4]), ZMax)
	return nil
}
