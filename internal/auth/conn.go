package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Conn seals every Write into one length-prefixed chacha20poly1305 record.
type Conn struct {
	net.Conn
	aead    cipher.AEAD
	sendCtr uint64
	recvCtr uint64
	recvBuf bytes.Buffer
	mu      sync.Mutex
}

// ErrReplay is returned when a record arrives out of sequence.
var ErrReplay = errors.New("auth: record out of sequence")

// Frames on the feed are tiny; anything bigger is a broken peer.
const maxRecordSize = 64 * 1024

func WrapConn(conn net.Conn, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, aead: aead}, nil
}

func (s *Conn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)

	rec := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(rec, uint32(len(nonce)+len(ct)))
	rec = append(rec, nonce...)
	rec = append(rec, ct...)
	if _, err := s.Conn.Write(rec); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Conn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxRecordSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}

		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.Conn, pkt); err != nil {
			return 0, err
		}

		nonce := pkt[:chacha20poly1305.NonceSize]
		if binary.BigEndian.Uint64(nonce[4:]) != s.recvCtr {
			return 0, ErrReplay
		}
		s.recvCtr++
		pt, err := s.aead.Open(nil, nonce, pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
