//go:build linux

package joystick

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/simrig/hshifter/input"
)

// pollTimeoutMs bounds how long Next can miss a cancelled context.
const pollTimeoutMs = 100

type Source struct {
	fd    int
	state *state
	buf   []byte
}

// Open opens the joystick device read-only and non-blocking.
func Open(cfg Config) (*Source, error) {
	fd, err := unix.Open(cfg.Device, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &Source{
		fd:    fd,
		state: newState(cfg),
		buf:   make([]byte, 64*eventSize),
	}, nil
}

// Next returns a frame after each batch of events that touched a mapped
// channel.
func (s *Source) Next(ctx context.Context) (input.Frame, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return input.Frame{}, err
		}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return input.Frame{}, fmt.Errorf("poll joystick: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			return input.Frame{}, io.EOF
		}

		m, err := unix.Read(s.fd, s.buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return input.Frame{}, fmt.Errorf("read joystick: %w", err)
		}
		if m == 0 {
			return input.Frame{}, io.EOF
		}

		changed := false
		for off := 0; off+eventSize <= m; off += eventSize {
			if s.state.apply(decodeEvent(s.buf[off:])) {
				changed = true
			}
		}
		if changed {
			return s.state.frame, nil
		}
	}
}

func (s *Source) Close() error {
	return unix.Close(s.fd)
}
