package input

// Sample is one conditioned reading: analog channels on 0..AxisMax and the
// logical state of every switch.
type Sample struct {
	X, Y  int
	Brake int

	Modifier bool
	SeqUp    bool
	SeqDown  bool
}

// Conditioner turns raw frames into samples. It keeps smoothing state and
// must only be used from one goroutine.
type Conditioner struct {
	X     Analog `embed:"" prefix:"x." yaml:"x"`
	Y     Analog `embed:"" prefix:"y." yaml:"y"`
	Brake Analog `embed:"" prefix:"brake." set:"analog_max=900" set:"analog_smoothing=10" yaml:"brake"`

	Modifier Polarity `help:"Modifier switch polarity (active-low|active-high)" default:"active-low" yaml:"modifier"`
	SeqUp    Polarity `help:"Sequential up switch polarity" default:"active-low" yaml:"seqUp"`
	SeqDown  Polarity `help:"Sequential down switch polarity" default:"active-low" yaml:"seqDown"`
}

// DefaultConditioner matches the stock board: unsmoothed 10-bit stick axes, a
// brake potentiometer that tops out at 900 counts with 10-sample smoothing and
// pulled-up switches.
func DefaultConditioner() Conditioner {
	return Conditioner{
		X:     Analog{Min: 0, Max: AxisMax, Smoothing: 1},
		Y:     Analog{Min: 0, Max: AxisMax, Smoothing: 1},
		Brake: Analog{Min: 0, Max: 900, Smoothing: 10},
	}
}

// Apply conditions one frame.
func (c *Conditioner) Apply(f Frame) Sample {
	return Sample{
		X:        c.X.Value(int(f.X)),
		Y:        c.Y.Value(int(f.Y)),
		Brake:    c.Brake.Value(int(f.Brake)),
		Modifier: c.Modifier.Held(f.High(LevelModifier)),
		SeqUp:    c.SeqUp.Held(f.High(LevelSeqUp)),
		SeqDown:  c.SeqDown.Held(f.High(LevelSeqDown)),
	}
}

// Reset clears the smoothing history of every channel.
func (c *Conditioner) Reset() {
	c.X.Reset()
	c.Y.Reset()
	c.Brake.Reset()
}
