package stream

import (
	"bytes"
	"errors"

	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
	"github.com/rs/zerolog"
)

// State is where the reader is within the frame at the head of its buffer.
type State uint8

const (
	StateSeekingPreamble State = iota
	StateReadingHeader
	StateReadingPayload
	StateReadingCRC
)

func (s State) String() string {
	switch s {
	case StateSeekingPreamble:
		return "seeking_preamble"
	case StateReadingHeader:
		return "reading_header"
	case StateReadingPayload:
		return "reading_payload"
	case StateReadingCRC:
		return "reading_crc"
	default:
		return "unknown"
	}
}

// compactAt bounds how much consumed space Feed tolerates before moving the
// unconsumed suffix to the front of the buffer.
const compactAt = 4096

// Result is one frame taken off the stream.
type Result struct {
	// Offset is the stream offset of the frame's preamble.
	Offset int64
	// Consumed counts every byte this call removed from the buffer,
	// skipped noise included.
	Consumed int
	// Skipped counts noise bytes discarded since the previous frame.
	Skipped int
	Frame   frame.Frame
	// Message is nil when the msg_type is not registered.
	Message *message.Message
}

// Known reports whether the frame was decoded against a descriptor.
func (r Result) Known() bool { return r.Message != nil }

// Config tunes a Reader. The zero value is usable.
type Config struct {
	Observer Observer
	Logger   *zerolog.Logger
}

// Reader is a push-fed frame extractor. A Reader is owned by one goroutine;
// independent streams use independent readers sharing a sealed registry.
type Reader struct {
	reg *schema.Registry
	obs Observer
	log zerolog.Logger

	buf      []byte
	start    int
	off      int64
	state    State
	skipped  int
	consumed int
	stats    Stats
}

// NewReader creates a reader that decodes known msg_types against reg.
func NewReader(reg *schema.Registry, cfg Config) *Reader {
	r := &Reader{reg: reg, obs: cfg.Observer}
	if r.obs == nil {
		r.obs = nopObserver{}
	}
	if cfg.Logger != nil {
		r.log = *cfg.Logger
	} else {
		r.log = logging.Component("stream")
	}
	return r
}

// Feed appends p to the buffered input. p is copied.
func (r *Reader) Feed(p []byte) {
	if r.start > 0 && (r.start == len(r.buf) || r.start >= compactAt) {
		n := copy(r.buf, r.buf[r.start:])
		r.buf = r.buf[:n]
		r.start = 0
	}
	r.buf = append(r.buf, p...)
}

// Buffered returns the number of fed bytes not yet consumed.
func (r *Reader) Buffered() int { return len(r.buf) - r.start }

// Offset returns the stream offset of the first unconsumed byte.
func (r *Reader) Offset() int64 { return r.off }

// State reports the state the last Next call left the reader in.
func (r *Reader) State() State { return r.state }

func (r *Reader) Stats() Stats { return r.stats }

// Next takes the next frame off the buffer.
//
// ErrNeedMore means nothing more can be done until more bytes are fed. A
// *frame.CRCError means the candidate frame at the returned offset did not
// verify; one byte was dropped and the next call resumes seeking. A
// *DecodeError means the frame was intact but its payload did not match the
// descriptor; the frame was consumed. Results returned with an error carry
// only Offset, Consumed and, for a *DecodeError, Skipped.
func (r *Reader) Next() (Result, error) {
	r.consumed = 0
	r.seek()
	pending := r.buf[r.start:]
	if len(pending) == 0 {
		r.state = StateSeekingPreamble
		return Result{Consumed: r.consumed, Offset: r.off}, ErrNeedMore
	}

	at := r.off
	f, n, err := frame.Decode(pending)
	if errors.Is(err, frame.ErrTruncated) {
		r.state = stateOf(pending)
		return Result{Consumed: r.consumed, Offset: at}, ErrNeedMore
	}
	if err != nil {
		var crcErr *frame.CRCError
		if errors.As(err, &crcErr) {
			crcErr.Offset = at
			r.stats.CRCErrors++
			r.obs.OnCRCError()
			r.log.Debug().
				Int64("offset", at).
				Uint16("computed", crcErr.Computed).
				Uint16("received", crcErr.Received).
				Msg("stream crc mismatch, resyncing")
		}
		r.skip(1)
		r.state = StateSeekingPreamble
		return Result{Consumed: r.consumed, Offset: at}, err
	}

	r.advance(n)
	r.state = StateSeekingPreamble
	res := Result{Offset: at, Consumed: r.consumed, Skipped: r.skipped, Frame: f}
	r.skipped = 0

	desc, ok := r.reg.Lookup(f.MsgType())
	if !ok {
		r.stats.Unknown++
		r.obs.OnUnknown(f.MsgType())
		r.log.Debug().Uint16("msg_type", f.MsgType()).Int64("offset", at).Msg("stream unknown msg_type")
		return res, nil
	}
	m, err := message.Decode(f, desc)
	if err != nil {
		r.stats.DecodeErrors++
		r.obs.OnDecodeError(f.MsgType())
		r.log.Debug().Err(err).Int64("offset", at).Msg("stream payload decode failed")
		return Result{Offset: at, Consumed: res.Consumed, Skipped: res.Skipped}, &DecodeError{Offset: at, Frame: f, Err: err}
	}
	res.Message = m
	r.stats.Messages++
	r.obs.OnMessage(f.MsgType())
	return res, nil
}

// seek drops bytes up to the next preamble.
func (r *Reader) seek() {
	pending := r.buf[r.start:]
	i := bytes.IndexByte(pending, frame.Preamble)
	if i < 0 {
		i = len(pending)
	}
	if i > 0 {
		r.skip(i)
	}
}

func (r *Reader) skip(n int) {
	r.advance(n)
	r.skipped += n
	r.stats.Skipped += uint64(n)
	r.obs.OnSkipped(n)
}

func (r *Reader) advance(n int) {
	r.start += n
	r.off += int64(n)
	r.consumed += n
}

func stateOf(pending []byte) State {
	if len(pending) < frame.HeaderLen {
		return StateReadingHeader
	}
	if len(pending) < frame.NeedLen(pending)-frame.CRCLen {
		return StateReadingPayload
	}
	return StateReadingCRC
}
