package input

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Polarity describes how a switch line's electrical level maps to "held".
type Polarity uint8

const (
	// ActiveLow is a switch to ground with a pull-up: a low line means held.
	ActiveLow Polarity = iota
	// ActiveHigh is a switch to the supply: a high line means held.
	ActiveHigh
)

// Held translates an electrical level (true = high) into a logical switch state.
// This is the only place in the program where pin polarity is interpreted.
func (p Polarity) Held(high bool) bool {
	if p == ActiveHigh {
		return high
	}
	return !high
}

// ParsePolarity accepts "active-low" (also "low", "pullup") and
// "active-high" (also "high").
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active-low", "low", "pullup", "pull-up":
		return ActiveLow, nil
	case "active-high", "high":
		return ActiveHigh, nil
	default:
		return ActiveLow, fmt.Errorf("unknown polarity %q", s)
	}
}

func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Polarity) UnmarshalText(text []byte) error {
	v, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p *Polarity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(raw))
}
