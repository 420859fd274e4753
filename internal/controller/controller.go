// Package controller runs the per-tick loop: conditioned samples in, gamepad
// state out.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/simrig/hshifter/device/gamepad"
	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/internal/log"
	"github.com/simrig/hshifter/internal/telemetry"
	"github.com/simrig/hshifter/shifter"
)

// Pad is the gamepad surface driven by the loop.
type Pad interface {
	shifter.ButtonSink
	SetButton(slot int, pressed bool)
	SetZAxis(v int)
	Flush() bool
}

type engagement struct {
	gear     shifter.Gear
	modified bool
	ok       bool
}

// Controller owns one shifter and drives a Pad from conditioned samples.
// It is not safe for concurrent use.
type Controller struct {
	cond    input.Conditioner
	shifter *shifter.Shifter
	pad     Pad
	events  telemetry.Publisher
	logger  *slog.Logger

	now   func() time.Time
	last  engagement
	ticks uint64
}

// New wires a controller. A nil publisher disables telemetry.
func New(cond input.Conditioner, t shifter.Thresholds, pad Pad, events telemetry.Publisher, logger *slog.Logger) *Controller {
	if events == nil {
		events = telemetry.Nop{}
	}
	return &Controller{
		cond:    cond,
		shifter: shifter.New(t, pad),
		pad:     pad,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Shifter exposes the gear state for reporting.
func (c *Controller) Shifter() *shifter.Shifter {
	return c.shifter
}

// Ticks returns the number of samples processed.
func (c *Controller) Ticks() uint64 {
	return c.ticks
}

// Tick applies one sample and commits the resulting report.
func (c *Controller) Tick(s input.Sample) shifter.Position {
	c.ticks++

	c.pad.SetZAxis(s.Brake)
	c.pad.SetButton(gamepad.SlotSequentialUp, s.SeqUp)
	c.pad.SetButton(gamepad.SlotSequentialDown, s.SeqDown)

	p := c.shifter.Step(s.X, s.Y, s.Modifier)
	changed := c.pad.Flush()

	c.logger.Log(context.Background(), log.LevelTrace, "Tick",
		"x", s.X, "y", s.Y, "brake", s.Brake, "position", p.String(),
		"latch", c.shifter.Modified(), "changed", changed)

	g, mod, ok := c.shifter.Engaged()
	cur := engagement{gear: g, modified: mod, ok: ok}
	if cur != c.last {
		c.last = cur
		c.gearChanged(cur, s.Brake)
	}
	return p
}

func (c *Controller) gearChanged(e engagement, brake int) {
	ev := telemetry.Event{Neutral: !e.ok, Slot: -1, Brake: brake, At: c.now()}
	if e.ok {
		ev.Gear = int(e.gear) + 1
		ev.Modified = e.modified
		ev.Slot = e.gear.Slot(e.modified)
	}
	c.logger.Debug("Gear changed", "gear", ev.Gear, "modified", ev.Modified, "neutral", ev.Neutral, "slot", ev.Slot)
	if err := c.events.Publish(ev); err != nil {
		c.logger.Warn("Failed to publish gear change", "error", err)
	}
}

// Run feeds frames from src through the loop until ctx is done or the source
// is exhausted.
func (c *Controller) Run(ctx context.Context, src input.Source) error {
	for {
		f, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		c.Tick(c.cond.Apply(f))
	}
}
