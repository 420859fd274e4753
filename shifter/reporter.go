package shifter

// ButtonSink receives press and release commands for HID button slots.
// Implementations must treat repeated presses or releases as no-ops.
type ButtonSink interface {
	PressButton(slot int)
	ReleaseButton(slot int)
}

// Reporter drives the twelve gear slots of a ButtonSink.
type Reporter struct {
	sink ButtonSink
}

// NewReporter returns a Reporter writing to sink.
func NewReporter(sink ButtonSink) *Reporter {
	return &Reporter{sink: sink}
}

// Report applies one classified position.
//
// Neutral releases every gear slot. An engaged gear presses exactly one slot of
// its pair, chosen by modified. A gap position changes nothing, so whichever slot
// was pressed before stays pressed until the lever returns to neutral.
func (r *Reporter) Report(p Position, modified bool) {
	if p.Neutral() {
		for slot := 0; slot < GearSlots; slot++ {
			r.sink.ReleaseButton(slot)
		}
		return
	}

	g, ok := p.Gear()
	if !ok {
		return
	}
	r.sink.ReleaseButton(g.Slot(!modified))
	r.sink.PressButton(g.Slot(modified))
}
