package input

import (
	"bufio"
	"errors"
	"io"
)

// Decoder reads frames from a byte stream. Serial lines are usually opened in
// the middle of a frame, so the decoder hunts for the magic and drops frames
// that fail the checksum instead of giving up.
type Decoder struct {
	r       *bufio.Reader
	dropped uint64
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4*FrameSize)}
}

// Dropped returns the number of bytes skipped while resynchronising.
func (d *Decoder) Dropped() uint64 {
	return d.dropped
}

// Decode returns the next valid frame. Errors from the underlying reader are
// returned as is.
func (d *Decoder) Decode() (Frame, error) {
	for {
		b, err := d.r.Peek(FrameSize)
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				return Frame{}, err
			}
			if len(b) > 0 && errors.Is(err, io.EOF) {
				return Frame{}, io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}

		var f Frame
		switch err := f.UnmarshalBinary(b); {
		case err == nil:
			_, _ = d.r.Discard(FrameSize)
			return f, nil
		case errors.Is(err, ErrBadMagic), errors.Is(err, ErrChecksum):
			_, _ = d.r.Discard(1)
			d.dropped++
		default:
			return Frame{}, err
		}
	}
}
