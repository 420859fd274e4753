// Package input turns raw sensor-board samples into the logical readings the
// gear state machine consumes.
package input

import (
	"encoding/binary"
	"errors"
)

// FrameSize is the encoded length of a Frame.
const FrameSize = 10

const (
	magic0 = 0xA5
	magic1 = 0x5A
)

// Level bits inside Frame.Levels. A set bit means the line reads high.
const (
	LevelModifier uint8 = 1 << iota
	LevelSeqUp
	LevelSeqDown
)

var (
	ErrShortFrame = errors.New("input: short frame")
	ErrBadMagic   = errors.New("input: bad frame magic")
	ErrChecksum   = errors.New("input: frame checksum mismatch")
)

// Frame is one raw sample from the sensor board: unfiltered ADC counts and the
// electrical level of every switch line.
//
// Wire layout (10 bytes):
//
//	0-1: 0xA5 0x5A magic
//	2-3: X (uint16 little-endian)
//	4-5: Y
//	6-7: Brake
//	8:   Levels bitfield
//	9:   XOR of bytes 2..8
type Frame struct {
	X, Y   uint16
	Brake  uint16
	Levels uint8
}

// High reports whether the line selected by bit reads high.
func (f Frame) High(bit uint8) bool {
	return f.Levels&bit != 0
}

// SetLevel sets the electrical level of the line selected by bit.
func (f *Frame) SetLevel(bit uint8, high bool) {
	if high {
		f.Levels |= bit
	} else {
		f.Levels &^= bit
	}
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameSize)
	b[0] = magic0
	b[1] = magic1
	binary.LittleEndian.PutUint16(b[2:4], f.X)
	binary.LittleEndian.PutUint16(b[4:6], f.Y)
	binary.LittleEndian.PutUint16(b[6:8], f.Brake)
	b[8] = f.Levels
	b[9] = checksum(b[2:9])
	return b, nil
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < FrameSize {
		return ErrShortFrame
	}
	if data[0] != magic0 || data[1] != magic1 {
		return ErrBadMagic
	}
	if checksum(data[2:9]) != data[9] {
		return ErrChecksum
	}
	f.X = binary.LittleEndian.Uint16(data[2:4])
	f.Y = binary.LittleEndian.Uint16(data[4:6])
	f.Brake = binary.LittleEndian.Uint16(data[6:8])
	f.Levels = data[8]
	return nil
}

func checksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}
