package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/input/feed"
	"github.com/simrig/hshifter/input/joystick"
	"github.com/simrig/hshifter/input/serial"
	"github.com/simrig/hshifter/internal/configpaths"
)

type ReplayConfig struct {
	Trace    string        `help:"YAML trace to replay" type:"path" yaml:"trace"`
	Interval time.Duration `help:"Delay between frames" default:"1ms" yaml:"interval"`
	Loop     bool          `help:"Restart the trace when it ends" yaml:"loop"`
}

// Open loads the trace and returns a paced replay source.
func (r ReplayConfig) Open() (*input.Replay, error) {
	if r.Trace == "" {
		return nil, errors.New("replay: no trace file configured")
	}
	t, err := input.LoadTrace(r.Trace)
	if err != nil {
		return nil, err
	}
	return input.NewReplay(t, input.WithInterval(r.Interval), input.WithLoop(r.Loop)), nil
}

// Input selects and configures the sensor source.
type Input struct {
	Kind     string          `help:"Sensor source (serial|joystick|feed|replay)" enum:"serial,joystick,feed,replay" default:"serial" yaml:"kind"`
	Serial   serial.Config   `embed:"" prefix:"serial." yaml:"serial"`
	Joystick joystick.Config `embed:"" prefix:"joystick." yaml:"joystick"`
	Feed     feed.Config     `embed:"" prefix:"feed." yaml:"feed"`
	Replay   ReplayConfig    `embed:"" prefix:"replay." yaml:"replay"`
}

// Open returns the configured source. On error the returned Source is nil.
func (i *Input) Open(logger *slog.Logger) (input.Source, error) {
	switch i.Kind {
	case "serial":
		logger.Info("Opening serial sensor board", "port", i.Serial.Port, "baud", i.Serial.BaudRate)
		s, err := serial.Open(i.Serial)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "joystick":
		logger.Info("Opening joystick", "device", i.Joystick.Device)
		s, err := joystick.Open(i.Joystick)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "feed":
		cfg := i.Feed
		pw, err := feedPassword(cfg.Password)
		if err != nil {
			return nil, err
		}
		if pw == "" {
			logger.Warn("Feed has no password; any host can drive the shifter", "hint", "run 'hshifter keygen'")
		}
		cfg.Password = pw
		s, err := feed.Listen(cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "replay":
		logger.Info("Replaying trace", "file", i.Replay.Trace, "interval", i.Replay.Interval, "loop", i.Replay.Loop)
		r, err := i.Replay.Open()
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown input kind %q", i.Kind)
	}
}

// feedPassword returns explicit when set, otherwise the key stored by keygen.
// A missing key file means no authentication.
func feedPassword(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := configpaths.DefaultKeyPath()
	if err != nil {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read feed key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
