package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc16"
)

const (
	Preamble   byte = 0x55
	HeaderLen       = 6
	CRCLen          = 2
	MaxPayload      = 255
	// MinFrameLen is a frame with an empty payload.
	MinFrameLen = HeaderLen + CRCLen
	MaxFrameLen = HeaderLen + MaxPayload + CRCLen
)

var (
	ErrTruncated       = errors.New("frame: truncated input")
	ErrBadPreamble     = errors.New("frame: bad preamble")
	ErrCRCMismatch     = errors.New("frame: crc mismatch")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// CRCError carries the bytes of a frame whose checksum did not verify.
type CRCError struct {
	Offset   int64
	Raw      []byte
	Computed uint16
	Received uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("frame: crc mismatch at offset %d: computed 0x%04X received 0x%04X (%d bytes)",
		e.Offset, e.Computed, e.Received, len(e.Raw))
}

func (e *CRCError) Unwrap() error { return ErrCRCMismatch }

// Header is the fixed part of a frame after the preamble.
type Header struct {
	MsgType uint16
	Sender  uint16
	Length  uint8
}

// Frame is one validated wire message. It is immutable once built.
type Frame struct {
	head    Header
	payload []byte
	crc     uint16
}

// New builds a frame and computes its checksum. payload is copied.
func New(msgType, sender uint16, payload []byte) (Frame, error) {
	if len(payload) > MaxPayload {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	h := Header{MsgType: msgType, Sender: sender, Length: uint8(len(payload))}
	p := make([]byte, len(payload))
	copy(p, payload)
	return Frame{head: h, payload: p, crc: checksum(h, p)}, nil
}

func (f Frame) Header() Header { return f.head }
func (f Frame) MsgType() uint16 { return f.head.MsgType }
func (f Frame) Sender() uint16 { return f.head.Sender }
func (f Frame) Length() uint8 { return f.head.Length }
func (f Frame) CRC() uint16 { return f.crc }
func (f Frame) WireSize() int { return HeaderLen + len(f.payload) + CRCLen }
func (f Frame) IsZero() bool { return f.payload == nil && f.head == Header{} && f.crc == 0 }
func (f Frame) String() string {
	return fmt.Sprintf("frame{msg_type=0x%04X sender=0x%04X length=%d crc=0x%04X}",
		f.head.MsgType, f.head.Sender, f.head.Length, f.crc)
}

// Equal reports whether f and o encode to the same bytes.
func (f Frame) Equal(o Frame) bool {
	return f.head == o.head && f.crc == o.crc && string(f.payload) == string(o.payload)
}

// Payload returns a copy of the payload bytes.
func (f Frame) Payload() []byte {
	out := make([]byte, len(f.payload))
	copy(out, f.payload)
	return out
}

// Bytes returns the complete wire encoding of f.
func (f Frame) Bytes() []byte {
	return f.AppendTo(make([]byte, 0, f.WireSize()))
}

// AppendTo appends the wire encoding of f to dst.
func (f Frame) AppendTo(dst []byte) []byte {
	dst = append(dst, Preamble)
	dst = appendHeader(dst, f.head)
	dst = append(dst, f.payload...)
	return binary.LittleEndian.AppendUint16(dst, f.crc)
}

// Encode frames payload for msgType and sender.
func Encode(msgType, sender uint16, payload []byte) ([]byte, error) {
	f, err := New(msgType, sender, payload)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// Decode parses one frame from the start of buf and returns it with the
// number of bytes it occupies. ErrTruncated means buf is a valid prefix
// that needs more bytes; ErrBadPreamble and CRC errors mean buf does not
// start with a frame.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrTruncated
	}
	if buf[0] != Preamble {
		return Frame{}, 0, fmt.Errorf("%w: 0x%02X", ErrBadPreamble, buf[0])
	}
	if len(buf) < HeaderLen {
		return Frame{}, 0, ErrTruncated
	}
	h := DecodeHeader(buf[1:HeaderLen])
	n := HeaderLen + int(h.Length) + CRCLen
	if len(buf) < n {
		return Frame{}, 0, ErrTruncated
	}
	payload := buf[HeaderLen : HeaderLen+int(h.Length)]
	received := binary.LittleEndian.Uint16(buf[n-CRCLen : n])
	computed := checksum(h, payload)
	if computed != received {
		raw := make([]byte, n)
		copy(raw, buf[:n])
		return Frame{}, 0, &CRCError{Raw: raw, Computed: computed, Received: received}
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	return Frame{head: h, payload: p, crc: received}, n, nil
}

// NeedLen returns the total frame length announced by a buffered header, or
// 0 if the header is not complete yet.
func NeedLen(buf []byte) int {
	if len(buf) < HeaderLen {
		return 0
	}
	return HeaderLen + int(buf[HeaderLen-1]) + CRCLen
}

// ReadFrame reads exactly one frame from r. It does not resynchronize: any
// byte that is not a preamble is an error.
func ReadFrame(r io.Reader) (Frame, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	if head[0] != Preamble {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrBadPreamble, head[0])
	}
	rest := make([]byte, int(head[HeaderLen-1])+CRCLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	f, _, err := Decode(append(head[:], rest...))
	return f, err
}

// WriteFrame writes the wire encoding of f to w.
func WriteFrame(w io.Writer, f Frame) error {
	_, err := w.Write(f.Bytes())
	return err
}

// DecodeHeader parses the five header bytes that follow the preamble.
func DecodeHeader(b []byte) Header {
	return Header{
		MsgType: binary.LittleEndian.Uint16(b[0:2]),
		Sender:  binary.LittleEndian.Uint16(b[2:4]),
		Length:  b[4],
	}
}

func appendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, h.MsgType)
	dst = binary.LittleEndian.AppendUint16(dst, h.Sender)
	return append(dst, h.Length)
}

func checksum(h Header, payload []byte) uint16 {
	var head [HeaderLen - 1]byte
	appendHeader(head[:0], h)
	crc := crc16.Update(0, head[:], crcTable)
	return crc16.Update(crc, payload, crcTable)
}
