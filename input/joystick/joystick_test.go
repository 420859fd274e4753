package joystick

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simrig/hshifter/input"
)

func rawEvent(value int16, typ, number uint8) []byte {
	b := make([]byte, eventSize)
	binary.LittleEndian.PutUint32(b[0:4], 1234)
	binary.LittleEndian.PutUint16(b[4:6], uint16(value))
	b[6] = typ
	b[7] = number
	return b
}

func testConfig() Config {
	return Config{
		AxisX: 0, AxisY: 1, AxisBrake: 2, InvertY: true,
		ButtonModifier: 0, ButtonUp: 4, ButtonDown: 5,
	}
}

func TestDecodeEvent(t *testing.T) {
	e := decodeEvent(rawEvent(-200, eventAxis|eventInit, 3))
	assert.Equal(t, event{Time: 1234, Value: -200, Type: eventAxis | eventInit, Number: 3}, e)
}

func TestScaleAxis(t *testing.T) {
	type testCase struct {
		name   string
		value  int16
		invert bool
		want   uint16
	}
	for _, tc := range []testCase{
		{name: "min", value: -32767, want: 0},
		{name: "below min", value: -32768, want: 0},
		{name: "centre", value: 0, want: 511},
		{name: "max", value: 32767, want: 1023},
		{name: "inverted max", value: 32767, invert: true, want: 0},
		{name: "inverted min", value: -32767, invert: true, want: 1023},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scaleAxis(tc.value, tc.invert))
		})
	}
}

func TestStateApply(t *testing.T) {
	s := newState(testConfig())
	assert.True(t, s.frame.High(input.LevelModifier))
	assert.True(t, s.frame.High(input.LevelSeqUp))

	type testCase struct {
		name    string
		event   event
		changed bool
		check   func(t *testing.T, f input.Frame)
	}
	for _, tc := range []testCase{
		{
			name: "init axis seeds X", event: event{Value: 32767, Type: eventAxis | eventInit, Number: 0}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.Equal(t, uint16(1023), f.X) },
		},
		{
			name: "stick up is forward", event: event{Value: -32767, Type: eventAxis, Number: 1}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.Equal(t, uint16(1023), f.Y) },
		},
		{
			name: "brake axis", event: event{Value: 0, Type: eventAxis, Number: 2}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.Equal(t, uint16(511), f.Brake) },
		},
		{
			name: "pressed modifier pulls line low", event: event{Value: 1, Type: eventButton, Number: 0}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.False(t, f.High(input.LevelModifier)) },
		},
		{
			name: "released modifier reads high", event: event{Value: 0, Type: eventButton, Number: 0}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.True(t, f.High(input.LevelModifier)) },
		},
		{
			name: "sequential down", event: event{Value: 1, Type: eventButton, Number: 5}, changed: true,
			check: func(t *testing.T, f input.Frame) { assert.False(t, f.High(input.LevelSeqDown)) },
		},
		{name: "unmapped axis", event: event{Value: 100, Type: eventAxis, Number: 7}},
		{name: "unmapped button", event: event{Value: 1, Type: eventButton, Number: 9}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.changed, s.apply(tc.event))
			if tc.check != nil {
				tc.check(t, s.frame)
			}
		})
	}
}

func TestStateDisabledChannel(t *testing.T) {
	cfg := testConfig()
	cfg.AxisBrake = -1
	cfg.ButtonUp = -1
	s := newState(cfg)
	assert.False(t, s.apply(event{Value: 100, Type: eventAxis, Number: 2}))
	assert.False(t, s.apply(event{Value: 1, Type: eventButton, Number: 4}))
	assert.Equal(t, uint16(0), s.frame.Brake)
}
