package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultReadSize is the chunk size a Scanner reads when none is given.
const DefaultReadSize = 4096

// Scanner pulls bytes from an io.Reader into a Reader.
type Scanner struct {
	src     io.Reader
	rd      *Reader
	chunk   []byte
	eof     bool
	dropped int
}

// NewScanner reads src in chunks of readSize bytes.
func NewScanner(src io.Reader, rd *Reader, readSize int) *Scanner {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	return &Scanner{src: src, rd: rd, chunk: make([]byte, readSize)}
}

// Reader returns the underlying frame reader.
func (s *Scanner) Reader() *Reader { return s.rd }

// Scan returns the next frame. CRC and decode errors are returned as they
// happen and scanning may continue after them. At the end of src any
// buffered partial frame is resynchronized through, then reported once as
// io.ErrUnexpectedEOF. io.EOF marks a clean end.
//
// ctx is checked between reads. A Read already blocked on src is not
// interrupted; close src to unblock it.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := s.rd.Next()
		if !errors.Is(err, ErrNeedMore) {
			return res, err
		}
		if s.eof {
			if s.rd.Buffered() == 0 {
				if s.dropped > 0 {
					n := s.dropped
					s.dropped = 0
					return Result{}, fmt.Errorf("stream: partial frame at end of input (%d bytes dropped): %w", n, io.ErrUnexpectedEOF)
				}
				return Result{}, io.EOF
			}
			s.rd.skip(1)
			s.dropped++
			continue
		}
		n, rerr := s.src.Read(s.chunk)
		if n > 0 {
			s.rd.Feed(s.chunk[:n])
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				return Result{}, fmt.Errorf("stream: read: %w", rerr)
			}
			s.eof = true
		}
	}
}
