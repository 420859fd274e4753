package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/input"
)

func TestPolarity(t *testing.T) {
	assert.True(t, input.ActiveLow.Held(false))
	assert.False(t, input.ActiveLow.Held(true))
	assert.True(t, input.ActiveHigh.Held(true))
	assert.False(t, input.ActiveHigh.Held(false))

	p, err := input.ParsePolarity("Active-High")
	require.NoError(t, err)
	assert.Equal(t, input.ActiveHigh, p)

	var q input.Polarity
	require.NoError(t, q.UnmarshalText([]byte("active-low")))
	assert.Equal(t, input.ActiveLow, q)
	assert.Error(t, q.UnmarshalText([]byte("sideways")))

	b, err := input.ActiveHigh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "active-high", string(b))
}

func TestAnalogScale(t *testing.T) {
	type testCase struct {
		name string
		a    input.Analog
		raw  int
		want int
	}
	for _, tc := range []testCase{
		{name: "identity", a: input.Analog{Min: 0, Max: 1023}, raw: 512, want: 512},
		{name: "clamp low", a: input.Analog{Min: 100, Max: 900}, raw: 20, want: 0},
		{name: "clamp high", a: input.Analog{Min: 0, Max: 900}, raw: 1000, want: 1023},
		{name: "rescale", a: input.Analog{Min: 0, Max: 900}, raw: 450, want: 511},
		{name: "inverted range", a: input.Analog{Min: 500, Max: 500}, raw: 700, want: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Value(tc.raw))
		})
	}
}

func TestAnalogSmoothing(t *testing.T) {
	a := input.Analog{Min: 0, Max: 1023, Smoothing: 4}
	assert.Equal(t, 100, a.Value(100))
	assert.Equal(t, 150, a.Value(200))
	assert.Equal(t, 200, a.Value(300))
	assert.Equal(t, 250, a.Value(400))
	// window full, oldest (100) drops out
	assert.Equal(t, 350, a.Value(500))

	a.Reset()
	assert.Equal(t, 800, a.Value(800))
}

func TestConditionerBrakeSmoothing(t *testing.T) {
	c := input.DefaultConditioner()

	type testCase struct {
		raw  uint16
		want int
	}
	steps := []testCase{
		{raw: 0, want: 0},
		{raw: 900, want: 511},
		{raw: 900, want: 682},
		{raw: 450, want: 639},
	}
	for i, st := range steps {
		s := c.Apply(input.Frame{X: 512, Y: 512, Brake: st.raw})
		assert.Equal(t, st.want, s.Brake, "sample %d", i)
	}

	var last int
	for i := 0; i < 10; i++ {
		last = c.Apply(input.Frame{X: 512, Y: 512, Brake: 900}).Brake
	}
	assert.Equal(t, input.AxisMax, last, "window holds only full-scale samples")

	c.Reset()
	assert.Equal(t, 0, c.Apply(input.Frame{Brake: 0}).Brake)
}

func TestConditionerApply(t *testing.T) {
	c := input.DefaultConditioner()
	c.Brake.Smoothing = 1

	f := input.Frame{X: 950, Y: 100, Brake: 900}
	f.SetLevel(input.LevelModifier, false)
	f.SetLevel(input.LevelSeqUp, true)
	f.SetLevel(input.LevelSeqDown, false)

	s := c.Apply(f)
	assert.Equal(t, input.Sample{X: 950, Y: 100, Brake: 1023, Modifier: true, SeqUp: false, SeqDown: true}, s)

	c.Modifier = input.ActiveHigh
	s = c.Apply(f)
	assert.False(t, s.Modifier)
}
