package auth_test

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simrig/hshifter/internal/auth"
)

func TestReadClientNonce(t *testing.T) {
	validNonce := make([]byte, 32)
	for i := range validNonce {
		validNonce[i] = byte(i)
	}

	type testCase struct {
		name        string
		input       []byte
		expectedErr string
	}

	testCases := []testCase{
		{name: "valid nonce", input: validNonce},
		{name: "short input", input: []byte{1, 2, 3}, expectedErr: "read client nonce: unexpected EOF"},
		{name: "empty input", input: []byte{}, expectedErr: "read client nonce: EOF"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nonce, err := auth.ReadClientNonce(bytes.NewBuffer(tc.input))
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validNonce, nonce)
		})
	}
}

func TestWriteServerHandshake(t *testing.T) {
	var buf bytes.Buffer
	nonce, err := auth.WriteServerHandshake(&buf)
	require.NoError(t, err)
	assert.Len(t, nonce, auth.NonceSize)
	assert.Equal(t, "OK\x00", buf.String()[:3])
	assert.Equal(t, nonce, buf.Bytes()[3:])

	_, err = auth.WriteServerHandshake(nil)
	assert.EqualError(t, err, "write response: write on nil pointer")
}

func TestIsAuthHandshake(t *testing.T) {
	ok, err := auth.IsAuthHandshake(bufio.NewReader(bytes.NewBufferString(auth.HandshakeMagic + "rest")))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.IsAuthHandshake(bufio.NewReader(bytes.NewBuffer([]byte{0xA5, 0x5A, 0, 0, 0, 0})))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = auth.IsAuthHandshake(bufio.NewReader(bytes.NewBufferString("HS")))
	assert.ErrorIs(t, err, io.EOF)
}

func TestHandshake(t *testing.T) {
	key, err := auth.DeriveKey("bench-rig")
	require.NoError(t, err)
	wrong, err := auth.DeriveKey("not-the-rig")
	require.NoError(t, err)

	type testCase struct {
		name      string
		clientKey []byte
		serverKey []byte
		wantErr   error
	}

	testCases := []testCase{
		{name: "matching keys", clientKey: key, serverKey: key},
		{name: "wrong key", clientKey: wrong, serverKey: key, wantErr: auth.ErrUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, s := net.Pipe()
			defer c.Close()
			defer s.Close()

			type result struct {
				cn, sn []byte
				err    error
			}
			srv := make(chan result, 1)
			go func() {
				cn, sn, err := auth.ServerHandshake(bufio.NewReader(s), s, tc.serverKey)
				srv <- result{cn, sn, err}
			}()

			cn, sn, err := auth.ClientHandshake(c, c, tc.clientKey)
			r := <-srv
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.ErrorIs(t, r.err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NoError(t, r.err)
			assert.Equal(t, r.cn, cn)
			assert.Equal(t, r.sn, sn)
			assert.Equal(t,
				auth.DeriveSessionKey(tc.clientKey, sn, cn),
				auth.DeriveSessionKey(tc.serverKey, r.sn, r.cn))
		})
	}
}

func TestServerHandshakeBadMagic(t *testing.T) {
	key, err := auth.DeriveKey("k")
	require.NoError(t, err)
	in := bytes.NewBufferString("GET / HTTP/1.1\r\n")
	_, _, err = auth.ServerHandshake(bufio.NewReader(in), io.Discard, key)
	assert.ErrorContains(t, err, "bad magic")
}
