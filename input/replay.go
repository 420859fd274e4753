package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TraceFrame is one entry of a replay trace. Switch fields are electrical
// levels (true = line high), exactly what the board would report.
type TraceFrame struct {
	X      uint16 `yaml:"x"`
	Y      uint16 `yaml:"y"`
	Brake  uint16 `yaml:"brake"`
	Mod    bool   `yaml:"mod"`
	Up     bool   `yaml:"up"`
	Down   bool   `yaml:"down"`
	Repeat int    `yaml:"repeat,omitempty"`
}

// Frame converts the trace entry to a raw frame.
func (t TraceFrame) Frame() Frame {
	f := Frame{X: t.X, Y: t.Y, Brake: t.Brake}
	f.SetLevel(LevelModifier, t.Mod)
	f.SetLevel(LevelSeqUp, t.Up)
	f.SetLevel(LevelSeqDown, t.Down)
	return f
}

// Trace is a recorded or hand-written sequence of frames.
type Trace struct {
	Frames []TraceFrame `yaml:"frames"`
}

// ParseTrace decodes a YAML trace.
func ParseTrace(r io.Reader) (*Trace, error) {
	var t Trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		if err == io.EOF {
			return &t, nil
		}
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	return &t, nil
}

// LoadTrace reads a YAML trace from path.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTrace(f)
}

// Expand returns the frames with every repeat unrolled.
func (t *Trace) Expand() []Frame {
	out := make([]Frame, 0, len(t.Frames))
	for _, tf := range t.Frames {
		n := tf.Repeat
		if n < 1 {
			n = 1
		}
		f := tf.Frame()
		for i := 0; i < n; i++ {
			out = append(out, f)
		}
	}
	return out
}

// Replay is a Source that plays back a trace.
type Replay struct {
	frames   []Frame
	pos      int
	interval time.Duration
	loop     bool
	last     time.Time
}

type ReplayOption func(*Replay)

// WithInterval paces frames at the given period.
func WithInterval(d time.Duration) ReplayOption {
	return func(r *Replay) { r.interval = d }
}

// WithLoop restarts the trace instead of returning io.EOF.
func WithLoop(loop bool) ReplayOption {
	return func(r *Replay) { r.loop = loop }
}

func NewReplay(t *Trace, opts ...ReplayOption) *Replay {
	r := &Replay{frames: t.Expand()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Replay) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if r.pos >= len(r.frames) {
		if !r.loop || len(r.frames) == 0 {
			return Frame{}, io.EOF
		}
		r.pos = 0
	}
	if r.interval > 0 && !r.last.IsZero() {
		wait := time.Until(r.last.Add(r.interval))
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return Frame{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	r.last = time.Now()
	f := r.frames[r.pos]
	r.pos++
	return f, nil
}

func (r *Replay) Close() error { return nil }
