// Package feed receives sensor-board frames over TCP, optionally behind the
// pre-shared-key handshake, and sends them from a bench client.
package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/internal/auth"
)

// Config is the feed listener configuration.
type Config struct {
	Addr             string        `help:"Feed listen address" default:":3250" env:"HSHIFTER_FEED_ADDR" yaml:"addr"`
	Password         string        `help:"Pre-shared feed password; empty disables authentication" env:"HSHIFTER_FEED_PASSWORD" yaml:"password"`
	HandshakeTimeout time.Duration `help:"Time a board has to complete the handshake" default:"5s" yaml:"handshakeTimeout"`
}

var ErrClosed = errors.New("feed: server closed")

// Server accepts one board at a time. A newly connected board replaces the
// previous one. It implements input.Source.
type Server struct {
	cfg    Config
	key    []byte
	logger *slog.Logger
	ln     net.Listener

	frames chan input.Frame
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	active net.Conn
	wg     sync.WaitGroup
}

// Listen binds the feed address and starts accepting boards.
func Listen(cfg Config, logger *slog.Logger) (*Server, error) {
	var key []byte
	if cfg.Password != "" {
		k, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			return nil, err
		}
		key = k
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("feed listen: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		key:    key,
		logger: logger,
		ln:     ln,
		frames: make(chan input.Frame, 64),
		done:   make(chan struct{}),
	}
	logger.Info("Feed listening", "addr", ln.Addr().String(), "auth", key != nil)
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

func (s *Server) Next(ctx context.Context) (input.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return input.Frame{}, ctx.Err()
	case <-s.done:
		return input.Frame{}, ErrClosed
	}
}

func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ln.Close()
		s.mu.Lock()
		if s.active != nil {
			_ = s.active.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Feed accept error", "error", err)
			continue
		}
		s.logger.Info("Board connected", "remote", c.RemoteAddr())

		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			_ = c.Close()
			return
		default:
		}
		if s.active != nil {
			s.logger.Info("Replacing previous board", "remote", s.active.RemoteAddr())
			_ = s.active.Close()
		}
		s.active = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.handleConn(c)
			s.mu.Lock()
			if s.active == c {
				s.active = nil
			}
			s.mu.Unlock()
			_ = c.Close()
			switch {
			case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				s.logger.Info("Board disconnected", "remote", c.RemoteAddr())
			default:
				s.logger.Warn("Board connection ended", "remote", c.RemoteAddr(), "error", err)
			}
		}()
	}
}

func (s *Server) handleConn(c net.Conn) error {
	br := bufio.NewReader(c)
	var stream io.Reader = br

	if s.key != nil {
		_ = c.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
		clientNonce, serverNonce, err := auth.ServerHandshake(br, c, s.key)
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		_ = c.SetDeadline(time.Time{})
		sc, err := auth.WrapConn(&bufferedConn{Conn: c, r: br}, auth.DeriveSessionKey(s.key, serverNonce, clientNonce))
		if err != nil {
			return err
		}
		stream = sc
	} else if ok, _ := auth.IsAuthHandshake(br); ok {
		return fmt.Errorf("board requested authentication but no password is configured")
	}

	dec := input.NewDecoder(stream)
	for {
		f, err := dec.Decode()
		if err != nil {
			return err
		}
		select {
		case s.frames <- f:
		case <-s.done:
			return nil
		}
	}
}

// bufferedConn reads through the bufio.Reader used for the handshake so that
// bytes it already buffered are not lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }
