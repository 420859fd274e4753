// Package shifter implements the H-pattern gear state machine: zone
// classification of the shifter axes, the modifier latch and the gear button
// reporter.
package shifter

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Band is a horizontal gate interval, Min inclusive and Max exclusive.
type Band struct {
	Min int
	Max int
}

// Contains reports whether x lies inside the band.
func (b Band) Contains(x int) bool {
	return x >= b.Min && x < b.Max
}

func (b Band) String() string {
	return fmt.Sprintf("%d:%d", b.Min, b.Max)
}

// ParseBand parses the "min:max" form used in configuration files and flags.
func ParseBand(s string) (Band, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Band{}, fmt.Errorf("band %q: expected min:max", s)
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Band{}, fmt.Errorf("band %q: min: %w", s, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return Band{}, fmt.Errorf("band %q: max: %w", s, err)
	}
	return Band{Min: min, Max: max}, nil
}

func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	v, err := ParseBand(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b *Band) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(raw))
}

// Thresholds partitions the shifter travel into gates. Y above Top is forward,
// Y below Bottom is backward, anything in between is the neutral band.
type Thresholds struct {
	Left   Band `help:"Left gate X band (min:max, max exclusive)" default:"0:100" yaml:"left"`
	Middle Band `help:"Middle gate X band" default:"400:600" yaml:"middle"`
	Right  Band `help:"Right gate X band" default:"900:1024" yaml:"right"`
	Top    int  `help:"Y above this value selects the forward row" default:"800" yaml:"top"`
	Bottom int  `help:"Y below this value selects the backward row" default:"200" yaml:"bottom"`
}

// DefaultThresholds returns the gate layout of the reference shifter build.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Left:   Band{Min: 0, Max: 100},
		Middle: Band{Min: 400, Max: 600},
		Right:  Band{Min: 900, Max: 1024},
		Top:    800,
		Bottom: 200,
	}
}

// Validate checks that the bands are non-empty, ordered left to right and
// disjoint, and that the neutral band is not inverted.
func (t Thresholds) Validate() error {
	bands := []struct {
		name string
		band Band
	}{
		{"left", t.Left},
		{"middle", t.Middle},
		{"right", t.Right},
	}
	for i, b := range bands {
		if b.band.Max <= b.band.Min {
			return fmt.Errorf("%s band %s is empty", b.name, b.band)
		}
		if i > 0 && b.band.Min < bands[i-1].band.Max {
			return fmt.Errorf("%s band %s overlaps %s band %s", b.name, b.band, bands[i-1].name, bands[i-1].band)
		}
	}
	if t.Bottom > t.Top {
		return fmt.Errorf("bottom threshold %d is above top threshold %d", t.Bottom, t.Top)
	}
	return nil
}

// Direction is the vertical deflection out of the neutral band.
type Direction uint8

const (
	DirectionNone Direction = iota
	Forward
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// Lane is one of the three horizontal gates.
type Lane uint8

const (
	LaneNone Lane = iota
	Left
	Middle
	Right
)

func (l Lane) String() string {
	switch l {
	case Left:
		return "left"
	case Middle:
		return "middle"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Position is the result of classifying one axis reading.
//
// A zero Position is neutral. A Position with a Direction but no Lane means the
// lever is deflected while between two gates.
type Position struct {
	Direction Direction
	Lane      Lane
}

// Neutral reports whether the lever is inside the neutral band.
func (p Position) Neutral() bool {
	return p.Direction == DirectionNone
}

// Gap reports whether the lever is deflected inside a dead zone between gates.
func (p Position) Gap() bool {
	return p.Direction != DirectionNone && p.Lane == LaneNone
}

// Gear returns the engaged gear; ok is false for neutral and gap positions.
func (p Position) Gear() (g Gear, ok bool) {
	if p.Direction == DirectionNone || p.Lane == LaneNone {
		return 0, false
	}
	g = Gear(int(p.Lane-Left) * 2)
	if p.Direction == Backward {
		g++
	}
	return g, true
}

func (p Position) String() string {
	switch {
	case p.Neutral():
		return "neutral"
	case p.Gap():
		return "gap/" + p.Direction.String()
	default:
		g, _ := p.Gear()
		return fmt.Sprintf("gear%d", int(g))
	}
}

// Classify maps an axis reading to a Position. It is total over all inputs.
func (t Thresholds) Classify(x, y int) Position {
	var p Position
	switch {
	case y > t.Top:
		p.Direction = Forward
	case y < t.Bottom:
		p.Direction = Backward
	default:
		return p
	}

	switch {
	case t.Left.Contains(x):
		p.Lane = Left
	case t.Middle.Contains(x):
		p.Lane = Middle
	case t.Right.Contains(x):
		p.Lane = Right
	}
	return p
}
