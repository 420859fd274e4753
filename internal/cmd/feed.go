package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/input/feed"
)

// Feed plays a trace into a running feed server, standing in for the board.
type Feed struct {
	Addr     string        `arg:"" help:"Feed server address (host:port)"`
	Trace    string        `arg:"" help:"YAML trace to send" type:"existingfile"`
	Password string        `help:"Feed password; defaults to the key stored by keygen" env:"HSHIFTER_FEED_PASSWORD" yaml:"password"`
	Interval time.Duration `help:"Delay between frames" default:"1ms" yaml:"interval"`
	Loop     bool          `help:"Repeat the trace until interrupted" yaml:"loop"`
	Timeout  time.Duration `help:"Connect and handshake timeout" default:"5s" yaml:"timeout"`
}

func (f *Feed) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := input.LoadTrace(f.Trace)
	if err != nil {
		return err
	}
	pw, err := feedPassword(f.Password)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	c, err := feed.Dial(dialCtx, f.Addr, pw)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Info("Connected to feed", "addr", f.Addr, "auth", pw != "")

	sent, err := sendTrace(ctx, c, input.NewReplay(t, input.WithInterval(f.Interval), input.WithLoop(f.Loop)))
	logger.Info("Feed finished", "frames", sent)
	return err
}

type frameSender interface {
	Send(input.Frame) error
}

func sendTrace(ctx context.Context, dst frameSender, src input.Source) (int, error) {
	sent := 0
	for {
		fr, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return sent, nil
			}
			return sent, err
		}
		if err := dst.Send(fr); err != nil {
			return sent, fmt.Errorf("send frame %d: %w", sent, err)
		}
		sent++
	}
}
