package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

const (
	HandshakeMagic = "HSF1\x00"
	NonceSize      = 32
	authContext    = "hshifter-auth-v1"
)

var (
	respOK     = []byte("OK\x00")
	respDenied = []byte("NO\x00")
)

// ErrUnauthorized is returned on both ends when the client proof does not
// match the server key.
var ErrUnauthorized = errors.New("auth: unauthorized")

// ReadClientNonce reads the client nonce. The magic must already be consumed.
func ReadClientNonce(r io.Reader) (clientNonce []byte, err error) {
	clientNonce = make([]byte, NonceSize)
	if _, err = io.ReadFull(r, clientNonce); err != nil {
		return nil, fmt.Errorf("read client nonce: %w", err)
	}
	return clientNonce, nil
}

// WriteServerHandshake sends "OK\0" followed by a fresh server nonce.
func WriteServerHandshake(w io.Writer) (serverNonce []byte, err error) {
	if w == nil {
		return nil, fmt.Errorf("write response: write on nil pointer")
	}
	serverNonce = make([]byte, NonceSize)
	if _, err = rand.Read(serverNonce); err != nil {
		return nil, fmt.Errorf("generate server nonce: %w", err)
	}

	response := append(append([]byte{}, respOK...), serverNonce...)
	if _, err = w.Write(response); err != nil {
		return nil, fmt.Errorf("write response: %w", err)
	}
	return serverNonce, nil
}

// IsAuthHandshake peeks for the handshake magic.
func IsAuthHandshake(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(len(HandshakeMagic))
	if err != nil {
		return false, err
	}
	return string(b) == HandshakeMagic, nil
}

func proof(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// ClientHandshake sends magic, nonce and proof and reads the server nonce.
func ClientHandshake(r io.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if r == nil || w == nil {
		return nil, nil, fmt.Errorf("handshake: nil stream")
	}
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}

	clientNonce = make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, nil, fmt.Errorf("generate client nonce: %w", err)
	}

	msg := append([]byte(HandshakeMagic), clientNonce...)
	msg = append(msg, proof(key, clientNonce)...)
	if _, err := w.Write(msg); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	prefix := make([]byte, len(respOK))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, nil, fmt.Errorf("read handshake response: %w", err)
	}
	switch string(prefix) {
	case string(respOK):
	case string(respDenied):
		return nil, nil, ErrUnauthorized
	default:
		return nil, nil, fmt.Errorf("invalid handshake response %q", prefix)
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// ServerHandshake verifies the client proof. On mismatch it answers "NO\0"
// and returns ErrUnauthorized.
func ServerHandshake(r *bufio.Reader, w io.Writer, key []byte) (clientNonce, serverNonce []byte, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("handshake: nil reader")
	}
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}

	magic := make([]byte, len(HandshakeMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, nil, fmt.Errorf("read handshake magic: %w", err)
	}
	if string(magic) != HandshakeMagic {
		return nil, nil, fmt.Errorf("handshake: bad magic %q", magic)
	}

	clientNonce, err = ReadClientNonce(r)
	if err != nil {
		return nil, nil, err
	}

	clientAuth := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, clientAuth); err != nil {
		return nil, nil, fmt.Errorf("read client auth: %w", err)
	}
	if !hmac.Equal(clientAuth, proof(key, clientNonce)) {
		if w != nil {
			_, _ = w.Write(respDenied)
		}
		return nil, nil, ErrUnauthorized
	}

	serverNonce, err = WriteServerHandshake(w)
	if err != nil {
		return nil, nil, err
	}
	return clientNonce, serverNonce, nil
}
