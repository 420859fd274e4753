// Package serial reads sensor-board frames from a serial port.
package serial

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/simrig/hshifter/input"
)

type Config struct {
	Port     string `help:"Serial device of the sensor board (e.g. /dev/ttyACM0, COM3)" env:"HSHIFTER_SERIAL_PORT" yaml:"port"`
	BaudRate int    `help:"Serial baud rate" default:"115200" yaml:"baudRate"`
}

// Port is the subset of serial.Port the source needs.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// pollInterval bounds how long a blocked read can delay cancellation.
const pollInterval = 50 * time.Millisecond

// Source decodes frames from a serial port.
type Source struct {
	port Port
	dec  *input.Decoder
	ctx  context.Context
}

// Open opens the configured port in 8N1 mode.
func Open(cfg Config) (*Source, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial: no port configured")
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	s, err := New(p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened port.
func New(p Port) (*Source, error) {
	if err := p.SetReadTimeout(pollInterval); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	s := &Source{port: p, ctx: context.Background()}
	s.dec = input.NewDecoder(portReader{s})
	return s, nil
}

func (s *Source) Next(ctx context.Context) (input.Frame, error) {
	s.ctx = ctx
	return s.dec.Decode()
}

func (s *Source) Close() error {
	return s.port.Close()
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// portReader turns read timeouts into cancellation checks. A timed out read
// returns 0 bytes and no error.
type portReader struct {
	s *Source
}

func (r portReader) Read(p []byte) (int, error) {
	for {
		if err := r.s.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := r.s.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
}
