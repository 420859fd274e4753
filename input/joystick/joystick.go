// Package joystick reads a Linux joystick device (/dev/input/jsN) and
// presents it as a sensor board, so a USB stick or a second controller can
// drive the shifter during bench testing.
package joystick

import (
	"encoding/binary"
	"errors"

	"github.com/simrig/hshifter/input"
)

var ErrUnsupported = errors.New("joystick: not supported on this platform")

// Config maps joystick axes and buttons onto board channels. A negative
// number leaves the channel unmapped.
type Config struct {
	Device string `help:"Joystick device" default:"/dev/input/js0" yaml:"device"`

	AxisX     int  `help:"Axis number feeding the X channel" default:"0" yaml:"axisX"`
	AxisY     int  `help:"Axis number feeding the Y channel" default:"1" yaml:"axisY"`
	AxisBrake int  `help:"Axis number feeding the brake channel (-1 to disable)" default:"2" yaml:"axisBrake"`
	InvertY   bool `help:"Invert the Y axis (most sticks report up as negative)" default:"true" yaml:"invertY"`

	ButtonModifier int `help:"Button number acting as the modifier switch (-1 to disable)" default:"0" yaml:"buttonModifier"`
	ButtonUp       int `help:"Button number acting as sequential up (-1 to disable)" default:"4" yaml:"buttonUp"`
	ButtonDown     int `help:"Button number acting as sequential down (-1 to disable)" default:"5" yaml:"buttonDown"`
}

// js_event from linux/joystick.h.
const eventSize = 8

const (
	eventButton = 0x01
	eventAxis   = 0x02
	eventInit   = 0x80
)

type event struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

func decodeEvent(b []byte) event {
	return event{
		Time:   binary.LittleEndian.Uint32(b[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(b[4:6])),
		Type:   b[6],
		Number: b[7],
	}
}

// state accumulates events into the frame a board would have sent.
type state struct {
	cfg   Config
	frame input.Frame
}

func newState(cfg Config) *state {
	s := &state{cfg: cfg}
	s.frame.X = input.AxisMax / 2
	s.frame.Y = input.AxisMax / 2
	// released switches read high, like a pulled-up line
	s.frame.Levels = input.LevelModifier | input.LevelSeqUp | input.LevelSeqDown
	return s
}

// apply folds one event into the frame and reports whether it touched a
// mapped channel.
func (s *state) apply(e event) bool {
	n := int(e.Number)
	switch e.Type &^ eventInit {
	case eventAxis:
		switch n {
		case s.cfg.AxisX:
			s.frame.X = scaleAxis(e.Value, false)
		case s.cfg.AxisY:
			s.frame.Y = scaleAxis(e.Value, s.cfg.InvertY)
		case s.cfg.AxisBrake:
			s.frame.Brake = scaleAxis(e.Value, false)
		default:
			return false
		}
	case eventButton:
		var bit uint8
		switch n {
		case s.cfg.ButtonModifier:
			bit = input.LevelModifier
		case s.cfg.ButtonUp:
			bit = input.LevelSeqUp
		case s.cfg.ButtonDown:
			bit = input.LevelSeqDown
		default:
			return false
		}
		s.frame.SetLevel(bit, e.Value == 0)
	default:
		return false
	}
	return true
}

// scaleAxis maps -32767..32767 onto 0..AxisMax counts.
func scaleAxis(v int16, invert bool) uint16 {
	x := int(v)
	if x < -32767 {
		x = -32767
	}
	if invert {
		x = -x
	}
	return uint16((x + 32767) * input.AxisMax / 65534)
}
