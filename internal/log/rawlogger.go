package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw packet traffic.
type RawLogger interface {
	// Log records one chunk. in is true for client to server traffic.
	Log(in bool, data []byte)
}

type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewRaw returns a RawLogger writing one line per chunk to w.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

func (r *rawLogger) Log(in bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	dir := "S->C"
	if in {
		dir = "C->S"
	}

	line := fmt.Sprintf("%s %s %d bytes: % x\n",
		r.now().Format("2006/01/02 15:04:05.000"),
		dir,
		len(data),
		data)

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}

// Dump formats data as a canonical hex dump, for trace-level slog attributes.
func Dump(data []byte) string {
	return hex.Dump(data)
}
