package input

// AxisMax is the top of the logical range every analog channel is scaled to.
const AxisMax = 1023

// Analog conditions one raw ADC channel: clamp to [Min, Max], rescale to
// 0..AxisMax and average the last Smoothing samples.
type Analog struct {
	Min       int `help:"Raw count mapped to 0" default:"0" yaml:"min"`
	Max       int `help:"Raw count mapped to full scale" default:"${analog_max=1023}" yaml:"max"`
	Smoothing int `help:"Number of samples averaged (1 disables smoothing)" default:"${analog_smoothing=1}" yaml:"smoothing"`

	window []int
	next   int
	sum    int
}

// Value feeds one raw sample through the filter and returns the conditioned
// reading.
func (a *Analog) Value(raw int) int {
	v := a.scale(raw)

	n := a.Smoothing
	if n <= 1 {
		return v
	}
	if cap(a.window) != n {
		a.window = make([]int, 0, n)
		a.next = 0
		a.sum = 0
	}
	if len(a.window) < n {
		a.window = append(a.window, v)
		a.sum += v
		return a.sum / len(a.window)
	}
	a.sum += v - a.window[a.next]
	a.window[a.next] = v
	a.next = (a.next + 1) % n
	return a.sum / n
}

// Reset drops the smoothing history.
func (a *Analog) Reset() {
	a.window = a.window[:0]
	a.next = 0
	a.sum = 0
}

func (a *Analog) scale(raw int) int {
	lo, hi := a.Min, a.Max
	if hi <= lo {
		return 0
	}
	if raw < lo {
		raw = lo
	}
	if raw > hi {
		raw = hi
	}
	return (raw - lo) * AxisMax / (hi - lo)
}
