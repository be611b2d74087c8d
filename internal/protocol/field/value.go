package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one decoded field value. Scalars keep their wire bits in a
// uint64: signed kinds sign-extended, floats as IEEE-754 bits.
type Value struct {
	typ   Type
	bits  uint64
	str   string
	elems []uint64
}

// NewU8 creates a u8 value.
func NewU8(v uint8) Value { return Value{typ: U8, bits: uint64(v)} }

// NewU16 creates a u16 value.
func NewU16(v uint16) Value { return Value{typ: U16, bits: uint64(v)} }

// NewU32 creates a u32 value.
func NewU32(v uint32) Value { return Value{typ: U32, bits: uint64(v)} }

// NewU64 creates a u64 value.
func NewU64(v uint64) Value { return Value{typ: U64, bits: v} }

// NewS8 creates an s8 value.
func NewS8(v int8) Value { return Value{typ: S8, bits: uint64(int64(v))} }

// NewS16 creates an s16 value.
func NewS16(v int16) Value { return Value{typ: S16, bits: uint64(int64(v))} }

// NewS32 creates an s32 value.
func NewS32(v int32) Value { return Value{typ: S32, bits: uint64(int64(v))} }

// NewS64 creates an s64 value.
func NewS64(v int64) Value { return Value{typ: S64, bits: uint64(v)} }

// NewF32 creates an f32 value.
func NewF32(v float32) Value { return Value{typ: F32, bits: uint64(math.Float32bits(v))} }

// NewF64 creates an f64 value.
func NewF64(v float64) Value { return Value{typ: F64, bits: math.Float64bits(v)} }

// NewString creates a string value. The string is treated as raw bytes.
func NewString(v string) Value { return Value{typ: String, str: v} }

// NewUint creates an unsigned scalar of kind k, truncating v to the kind's width.
func NewUint(k Kind, v uint64) (Value, error) {
	if !k.IsUnsigned() {
		return Value{}, fmt.Errorf("%w: %s is not unsigned", ErrFieldTypeMismatch, k)
	}
	return Value{typ: Type{Kind: k}, bits: truncate(k, v)}, nil
}

// NewInt creates a signed scalar of kind k, wrapping v to the kind's width.
func NewInt(k Kind, v int64) (Value, error) {
	if !k.IsSigned() {
		return Value{}, fmt.Errorf("%w: %s is not signed", ErrFieldTypeMismatch, k)
	}
	return Value{typ: Type{Kind: k}, bits: signExtend(k, uint64(v))}, nil
}

// NewFloat creates a float scalar of kind k.
func NewFloat(k Kind, v float64) (Value, error) {
	switch k {
	case KindF32:
		return NewF32(float32(v)), nil
	case KindF64:
		return NewF64(v), nil
	default:
		return Value{}, fmt.Errorf("%w: %s is not a float", ErrFieldTypeMismatch, k)
	}
}

// NewArray creates an array of elem from already-typed scalar values.
func NewArray(elem Kind, items []Value) (Value, error) {
	t := ArrayOf(elem)
	if err := t.Validate(); err != nil {
		return Value{}, err
	}
	elems := make([]uint64, len(items))
	for i, item := range items {
		if item.typ.Kind != elem {
			return Value{}, fmt.Errorf("%w: element %d is %s, want %s", ErrFieldTypeMismatch, i, item.typ, elem)
		}
		elems[i] = item.bits
	}
	return Value{typ: t, elems: elems}, nil
}

// Type returns the value's tag.
func (v Value) Type() Type { return v.typ }

// IsZero reports whether v was never set.
func (v Value) IsZero() bool { return v.typ.Kind == KindInvalid }

// Uint returns an unsigned scalar.
func (v Value) Uint() (uint64, error) {
	if !v.typ.Kind.IsUnsigned() {
		return 0, ErrFieldTypeMismatch
	}
	return v.bits, nil
}

// Int returns a signed scalar.
func (v Value) Int() (int64, error) {
	if !v.typ.Kind.IsSigned() {
		return 0, ErrFieldTypeMismatch
	}
	return int64(v.bits), nil
}

// Float returns a float scalar widened to float64.
func (v Value) Float() (float64, error) {
	switch v.typ.Kind {
	case KindF32:
		return float64(math.Float32frombits(uint32(v.bits))), nil
	case KindF64:
		return math.Float64frombits(v.bits), nil
	default:
		return 0, ErrFieldTypeMismatch
	}
}

// Str returns a string value.
func (v Value) Str() (string, error) {
	if v.typ.Kind != KindString {
		return "", ErrFieldTypeMismatch
	}
	return v.str, nil
}

// Elems returns array elements as scalar values.
func (v Value) Elems() ([]Value, error) {
	if v.typ.Kind != KindArray {
		return nil, ErrFieldTypeMismatch
	}
	out := make([]Value, len(v.elems))
	for i, bits := range v.elems {
		out[i] = Value{typ: Type{Kind: v.typ.Elem}, bits: bits}
	}
	return out, nil
}

// Count returns the element count of an array, the byte length of a string,
// and 1 for scalars.
func (v Value) Count() int {
	switch v.typ.Kind {
	case KindString:
		return len(v.str)
	case KindArray:
		return len(v.elems)
	case KindInvalid:
		return 0
	default:
		return 1
	}
}

// WireSize returns the number of bytes v occupies on the wire.
func (v Value) WireSize() int {
	switch v.typ.Kind {
	case KindString:
		return len(v.str)
	case KindArray:
		return len(v.elems) * v.typ.Elem.Size()
	default:
		return v.typ.Size()
	}
}

// Equal compares tag and wire bits. Floats compare by bits, so NaN equals
// itself and 0 differs from -0.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.bits != o.bits || v.str != o.str || len(v.elems) != len(o.elems) {
		return false
	}
	for i := range v.elems {
		if v.elems[i] != o.elems[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch k := v.typ.Kind; {
	case k.IsUnsigned():
		return strconv.FormatUint(v.bits, 10)
	case k.IsSigned():
		return strconv.FormatInt(int64(v.bits), 10)
	case k.IsFloat():
		f, _ := v.Float()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case k == KindString:
		return strconv.Quote(v.str)
	case k == KindArray:
		elems, _ := v.Elems()
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "<unset>"
	}
}

func truncate(k Kind, v uint64) uint64 {
	switch k.Size() {
	case 1:
		return v & 0xFF
	case 2:
		return v & 0xFFFF
	case 4:
		return v & 0xFFFFFFFF
	default:
		return v
	}
}

func signExtend(k Kind, v uint64) uint64 {
	switch k.Size() {
	case 1:
		return uint64(int64(int8(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 4:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

// fromBits builds a scalar from raw little-endian wire bits.
func fromBits(k Kind, raw uint64) Value {
	if k.IsSigned() {
		raw = signExtend(k, raw)
	}
	return Value{typ: Type{Kind: k}, bits: raw}
}
