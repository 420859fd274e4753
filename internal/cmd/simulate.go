package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/simrig/hshifter/device/gamepad"
	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/internal/controller"
	"github.com/simrig/hshifter/shifter"
)

// Simulate runs a trace through the control loop without exporting anything.
type Simulate struct {
	Trace  string             `arg:"" help:"YAML trace to run" type:"existingfile"`
	Gate   shifter.Thresholds `embed:"" prefix:"gate." yaml:"gate"`
	Sensor input.Conditioner  `embed:"" prefix:"sensor." yaml:"sensor"`

	out io.Writer `kong:"-"`
}

func (s *Simulate) Run(logger *slog.Logger) error {
	if err := s.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate thresholds: %w", err)
	}
	t, err := input.LoadTrace(s.Trace)
	if err != nil {
		return err
	}
	out := s.out
	if out == nil {
		out = os.Stdout
	}
	return simulate(context.Background(), t, s.Gate, s.Sensor, out, logger)
}

func simulate(ctx context.Context, t *input.Trace, gate shifter.Thresholds, cond input.Conditioner, out io.Writer, logger *slog.Logger) error {
	pad := gamepad.New(nil)
	ctrl := controller.New(cond, gate, pad, nil, logger)

	fmt.Fprintf(out, "%5s  %-14s %-6s %5s  %s\n", "tick", "position", "latch", "z", "buttons")
	for _, f := range t.Expand() {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := ctrl.Tick(cond.Apply(f))
		st := pad.State()
		fmt.Fprintf(out, "%5d  %-14s %-6t %5d  %v\n", ctrl.Ticks(), p, ctrl.Shifter().Modified(), st.Z, st.PressedSlots())
	}
	return nil
}
