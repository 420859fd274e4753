package feed

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/internal/auth"
)

// Client streams frames to a feed server, standing in for a sensor board.
type Client struct {
	conn net.Conn
}

// Dial connects to addr. With a non-empty password the handshake is performed
// and every frame is sent encrypted.
func Dial(ctx context.Context, addr, password string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	if password == "" {
		return &Client{conn: conn}, nil
	}

	key, err := auth.DeriveKey(password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	br := bufio.NewReader(conn)
	clientNonce, serverNonce, err := auth.ClientHandshake(br, conn, key)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	sc, err := auth.WrapConn(&bufferedConn{Conn: conn, r: br}, auth.DeriveSessionKey(key, serverNonce, clientNonce))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Client{conn: sc}, nil
}

func (c *Client) Send(f input.Frame) error {
	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = c.conn.Write(b)
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}
