package feed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/input/feed"
	"github.com/simrig/hshifter/internal/auth"
)

func newServer(t *testing.T, password string) *feed.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := feed.Listen(feed.Config{Addr: "127.0.0.1:0", Password: password, HandshakeTimeout: time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFeedRoundTrip(t *testing.T) {
	type testCase struct {
		name     string
		password string
	}

	testCases := []testCase{
		{name: "plain"},
		{name: "authenticated", password: "bench-rig"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newServer(t, tc.password)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			c, err := feed.Dial(ctx, s.Addr().String(), tc.password)
			require.NoError(t, err)
			defer c.Close()

			want := []input.Frame{
				{X: 512, Y: 500, Levels: input.LevelModifier},
				{X: 50, Y: 900},
				{X: 950, Y: 100, Brake: 700, Levels: input.LevelSeqUp | input.LevelSeqDown},
			}
			for _, f := range want {
				require.NoError(t, c.Send(f))
			}
			for _, f := range want {
				got, err := s.Next(ctx)
				require.NoError(t, err)
				assert.Equal(t, f, got)
			}
		})
	}
}

func TestFeedWrongPassword(t *testing.T) {
	s := newServer(t, "right")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := feed.Dial(ctx, s.Addr().String(), "wrong")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestFeedReplacesBoard(t *testing.T) {
	s := newServer(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := feed.Dial(ctx, s.Addr().String(), "")
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Send(input.Frame{X: 1}))
	got, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), got.X)

	second, err := feed.Dial(ctx, s.Addr().String(), "")
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Send(input.Frame{X: 2}))
	got, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), got.X)

	// the first board's connection has been dropped by the server
	assert.Eventually(t, func() bool {
		return first.Send(input.Frame{X: 3}) != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFeedNextAfterClose(t *testing.T) {
	s := newServer(t, "")
	require.NoError(t, s.Close())
	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, feed.ErrClosed)
}
