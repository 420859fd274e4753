package shifter

// Latch holds the modifier switch state sampled while the lever rests in
// neutral. The value is frozen while a gate is engaged so the modifier has to be
// selected before the lever leaves neutral.
type Latch struct {
	held bool
}

// Observe re-samples the switch when p is neutral and leaves the latch alone
// otherwise.
func (l *Latch) Observe(p Position, switchHeld bool) {
	if p.Neutral() {
		l.held = switchHeld
	}
}

// Held returns the latched modifier value.
func (l *Latch) Held() bool {
	return l.held
}
