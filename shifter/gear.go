package shifter

const (
	// Gears is the number of gate positions on the H pattern.
	Gears = 6
	// ModifiedOffset separates the unmodified slot of a gear from its modified one.
	ModifiedOffset = Gears
	// GearSlots is the number of HID button slots owned by the gear reporter.
	GearSlots = Gears * 2
)

// Gear is a gate index: 0/1 left forward/backward, 2/3 middle, 4/5 right.
type Gear int

// Slot returns the HID button slot for the gear, offset into the modified
// range when modified is set.
func (g Gear) Slot(modified bool) int {
	if modified {
		return int(g) + ModifiedOffset
	}
	return int(g)
}
