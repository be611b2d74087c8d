package field

import (
	"encoding/binary"
	"fmt"
)

// Cursor is a read position over a bounded payload. It never reads past
// the end of the slice it was created with.
type Cursor struct {
	buf []byte
	off int
}

func NewCursor(payload []byte) *Cursor {
	return &Cursor{buf: payload}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.off, c.Remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Encode appends v's wire bytes to dst. v must carry tag t.
func Encode(t Type, v Value, dst []byte) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return dst, err
	}
	if v.typ != t {
		return dst, fmt.Errorf("%w: value is %s, field is %s", ErrFieldTypeMismatch, v.typ, t)
	}
	switch t.Kind {
	case KindString:
		return append(dst, v.str...), nil
	case KindArray:
		for _, bits := range v.elems {
			dst = appendScalar(dst, t.Elem, bits)
		}
		return dst, nil
	default:
		return appendScalar(dst, t.Kind, v.bits), nil
	}
}

// Decode reads one value of type t. Variable-length types are greedy and
// consume every remaining byte in c.
func Decode(t Type, c *Cursor) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	switch t.Kind {
	case KindString:
		return decodeString(c, c.Remaining())
	case KindArray:
		size := t.Elem.Size()
		if c.Remaining()%size != 0 {
			return Value{}, fmt.Errorf("%w: %d trailing bytes do not fill %s elements", ErrTruncated, c.Remaining(), t.Elem)
		}
		return decodeArray(t, c, c.Remaining()/size)
	default:
		return decodeScalar(t.Kind, c)
	}
}

// DecodeN reads a variable-length value with an explicit count: bytes for
// strings, elements for arrays.
func DecodeN(t Type, c *Cursor, n int) (Value, error) {
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	if n < 0 {
		return Value{}, ErrNegativeLength
	}
	switch t.Kind {
	case KindString:
		return decodeString(c, n)
	case KindArray:
		return decodeArray(t, c, n)
	default:
		return Value{}, fmt.Errorf("%w: %s has no count", ErrInvalidType, t)
	}
}

func decodeScalar(k Kind, c *Cursor) (Value, error) {
	b, err := c.take(k.Size())
	if err != nil {
		return Value{}, err
	}
	return fromBits(k, readScalar(k, b)), nil
}

func decodeString(c *Cursor, n int) (Value, error) {
	b, err := c.take(n)
	if err != nil {
		return Value{}, err
	}
	return NewString(string(b)), nil
}

func decodeArray(t Type, c *Cursor, n int) (Value, error) {
	size := t.Elem.Size()
	if n > c.Remaining()/size {
		return Value{}, fmt.Errorf("%w: need %d %s elements at offset %d, have %d bytes", ErrTruncated, n, t.Elem, c.off, c.Remaining())
	}
	b, err := c.take(n * size)
	if err != nil {
		return Value{}, err
	}
	elems := make([]uint64, n)
	for i := range elems {
		elems[i] = fromBits(t.Elem, readScalar(t.Elem, b[i*size:(i+1)*size])).bits
	}
	return Value{typ: t, elems: elems}, nil
}

func readScalar(k Kind, b []byte) uint64 {
	switch k.Size() {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func appendScalar(dst []byte, k Kind, bits uint64) []byte {
	switch k.Size() {
	case 1:
		return append(dst, byte(bits))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(bits))
	case 4:
		return binary.LittleEndian.AppendUint32(dst, uint32(bits))
	default:
		return binary.LittleEndian.AppendUint64(dst, bits)
	}
}
