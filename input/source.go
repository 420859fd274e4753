package input

import "context"

// Source produces raw frames. Next blocks until a frame is available, ctx is
// done or the source is exhausted (io.EOF).
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
