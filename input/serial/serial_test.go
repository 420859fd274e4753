package serial_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/input/serial"
)

// fakePort hands out data in small chunks and reports timeouts as
// zero-length reads, like a real port with a read timeout.
type fakePort struct {
	mu      sync.Mutex
	data    []byte
	chunk   int
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.EOF
	}
	if len(p.data) == 0 {
		p.mu.Unlock()
		time.Sleep(p.timeout)
		p.mu.Lock()
		return 0, nil
	}
	n := min(len(b), p.chunk, len(p.data))
	copy(b, p.data[:n])
	p.data = p.data[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestSourceDecodesChunkedStream(t *testing.T) {
	var stream bytes.Buffer
	stream.Write([]byte{0x17, 0x00})
	want := []input.Frame{{X: 512, Y: 500}, {X: 60, Y: 880, Levels: input.LevelSeqUp}}
	for _, f := range want {
		b, err := f.MarshalBinary()
		require.NoError(t, err)
		stream.Write(b)
	}

	port := &fakePort{data: stream.Bytes(), chunk: 3}
	src, err := serial.New(port)
	require.NoError(t, err)
	assert.NotZero(t, port.timeout)

	for _, f := range want {
		got, err := src.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	require.NoError(t, src.Close())
}

func TestSourceHonoursCancellation(t *testing.T) {
	src, err := serial.New(&fakePort{chunk: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
