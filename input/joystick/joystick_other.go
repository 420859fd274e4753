//go:build !linux

package joystick

import (
	"context"

	"github.com/simrig/hshifter/input"
)

type Source struct{}

func Open(cfg Config) (*Source, error) {
	return nil, ErrUnsupported
}

func (s *Source) Next(ctx context.Context) (input.Frame, error) {
	return input.Frame{}, ErrUnsupported
}

func (s *Source) Close() error { return nil }
