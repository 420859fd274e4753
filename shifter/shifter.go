package shifter

// Shifter is the per-device state carried across ticks: the thresholds, the
// modifier latch and the gear last reported to the sink.
type Shifter struct {
	thresholds Thresholds
	latch      Latch
	reporter   *Reporter

	engaged  Gear
	hasGear  bool
	modified bool
}

// New returns a Shifter in neutral with the modifier released.
func New(t Thresholds, sink ButtonSink) *Shifter {
	return &Shifter{
		thresholds: t,
		reporter:   NewReporter(sink),
	}
}

// Thresholds returns the gate layout in use.
func (s *Shifter) Thresholds() Thresholds {
	return s.thresholds
}

// Step runs one tick: classify the reading, let the latch observe it, then
// report the gear slots. The classified position is returned.
func (s *Shifter) Step(x, y int, modifierHeld bool) Position {
	p := s.thresholds.Classify(x, y)
	s.latch.Observe(p, modifierHeld)
	s.reporter.Report(p, s.latch.Held())

	switch {
	case p.Neutral():
		s.hasGear = false
		s.modified = false
	case p.Gap():
		// carry-over: keep whatever was reported last
	default:
		s.engaged, _ = p.Gear()
		s.hasGear = true
		s.modified = s.latch.Held()
	}
	return p
}

// Modified returns the current latch value.
func (s *Shifter) Modified() bool {
	return s.latch.Held()
}

// Engaged returns the gear whose slot is currently pressed, and whether that
// slot is the modified variant. ok is false while no gear slot is pressed.
func (s *Shifter) Engaged() (g Gear, modified bool, ok bool) {
	return s.engaged, s.modified, s.hasGear
}
