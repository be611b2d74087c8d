package stream

import (
	"fmt"

	"github.com/pmiettinen/libsbp/internal/protocol/frame"
)

// ErrNeedMore means the buffered bytes are a prefix of a frame. It wraps
// frame.ErrTruncated.
var ErrNeedMore = fmt.Errorf("stream: need more input: %w", frame.ErrTruncated)

// DecodeError reports an intact frame whose payload did not match the
// registered descriptor. The frame bytes are consumed.
type DecodeError struct {
	Offset int64
	Frame  frame.Frame
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stream: frame at offset %d (msg_type=0x%04X sender=0x%04X): %v",
		e.Offset, e.Frame.MsgType(), e.Frame.Sender(), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
