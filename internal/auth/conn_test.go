package auth_test

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/internal/auth"
)

func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, err = ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestConn(t *testing.T) {
	good, err := auth.DeriveKey("test123")
	require.NoError(t, err)
	other, err := auth.DeriveKey("123test")
	require.NoError(t, err)

	type testCase struct {
		name        string
		clientKey   []byte
		serverKey   []byte
		payloads    [][]byte
		expectedErr string
	}

	testCases := []testCase{
		{
			name:      "single record",
			clientKey: good, serverKey: good,
			payloads: [][]byte{[]byte("Hello, World!")},
		},
		{
			name:      "several records",
			clientKey: good, serverKey: good,
			payloads: [][]byte{{0xA5, 0x5A, 1, 2}, {3, 4, 5}, {6}},
		},
		{
			name:      "differing keys",
			clientKey: good, serverKey: other,
			payloads:    [][]byte{[]byte("x")},
			expectedErr: "message authentication failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, s := tcpPair(t)
			wc, err := auth.WrapConn(c, tc.clientKey)
			require.NoError(t, err)
			ws, err := auth.WrapConn(s, tc.serverKey)
			require.NoError(t, err)

			var want []byte
			for _, p := range tc.payloads {
				n, err := wc.Write(p)
				require.NoError(t, err)
				assert.Equal(t, len(p), n)
				want = append(want, p...)
			}

			got := make([]byte, len(want))
			_, err = io.ReadFull(ws, got)
			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestWrapConnBadKey(t *testing.T) {
	c, _ := tcpPair(t)
	_, err := auth.WrapConn(c, []byte{1, 2, 3})
	assert.ErrorContains(t, err, "bad key length")
}

type bufConn struct {
	net.Conn
	buf *bytes.Buffer
}

func (b bufConn) Read(p []byte) (int, error)  { return b.buf.Read(p) }
func (b bufConn) Write(p []byte) (int, error) { return b.buf.Write(p) }

func TestConnRejectsReplayedRecord(t *testing.T) {
	key, err := auth.DeriveKey("test123")
	require.NoError(t, err)

	var wire bytes.Buffer
	sender, err := auth.WrapConn(bufConn{buf: &wire}, key)
	require.NoError(t, err)
	_, err = sender.Write([]byte("frame-1"))
	require.NoError(t, err)
	record := bytes.Clone(wire.Bytes())

	var in bytes.Buffer
	in.Write(record)
	in.Write(record)
	recv, err := auth.WrapConn(bufConn{buf: &in}, key)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := recv.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "frame-1", string(buf[:n]))

	_, err = recv.Read(buf)
	assert.ErrorIs(t, err, auth.ErrReplay)
}
