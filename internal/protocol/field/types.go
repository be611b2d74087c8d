package field

import "fmt"

// Kind is the wire kind of a field or of an array element.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindString
	KindArray
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindU8:      "u8",
	KindU16:     "u16",
	KindU32:     "u32",
	KindU64:     "u64",
	KindS8:      "s8",
	KindS16:     "s16",
	KindS32:     "s32",
	KindS64:     "s64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindString:  "string",
	KindArray:   "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size returns the fixed wire width in bytes, or 0 for variable-length kinds.
func (k Kind) Size() int {
	switch k {
	case KindU8, KindS8:
		return 1
	case KindU16, KindS16:
		return 2
	case KindU32, KindS32, KindF32:
		return 4
	case KindU64, KindS64, KindF64:
		return 8
	default:
		return 0
	}
}

// IsScalar reports whether k is a fixed-width number.
func (k Kind) IsScalar() bool { return k.Size() > 0 }

func (k Kind) IsUnsigned() bool {
	return k == KindU8 || k == KindU16 || k == KindU32 || k == KindU64
}

func (k Kind) IsSigned() bool {
	return k == KindS8 || k == KindS16 || k == KindS32 || k == KindS64
}

func (k Kind) IsFloat() bool { return k == KindF32 || k == KindF64 }

// Type is a field type tag. Elem is only meaningful for arrays.
type Type struct {
	Kind Kind
	Elem Kind
}

var (
	U8     = Type{Kind: KindU8}
	U16    = Type{Kind: KindU16}
	U32    = Type{Kind: KindU32}
	U64    = Type{Kind: KindU64}
	S8     = Type{Kind: KindS8}
	S16    = Type{Kind: KindS16}
	S32    = Type{Kind: KindS32}
	S64    = Type{Kind: KindS64}
	F32    = Type{Kind: KindF32}
	F64    = Type{Kind: KindF64}
	String = Type{Kind: KindString}
)

// ArrayOf returns the array type with scalar elements of kind elem.
func ArrayOf(elem Kind) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// Variable reports whether the type has no fixed wire width.
func (t Type) Variable() bool {
	return t.Kind == KindString || t.Kind == KindArray
}

// Size returns the fixed wire width of t, or 0 when t is variable.
func (t Type) Size() int { return t.Kind.Size() }

// Validate checks that t is a usable tag.
func (t Type) Validate() error {
	switch {
	case t.Kind.IsScalar(), t.Kind == KindString:
		if t.Elem != KindInvalid {
			return fmt.Errorf("%w: %s carries element kind %s", ErrInvalidType, t.Kind, t.Elem)
		}
		return nil
	case t.Kind == KindArray:
		if !t.Elem.IsScalar() {
			return fmt.Errorf("%w: array element must be a fixed-width number, got %s", ErrInvalidType, t.Elem)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidType, t.Kind)
	}
}

func (t Type) String() string {
	if t.Kind == KindArray {
		return fmt.Sprintf("array<%s>", t.Elem)
	}
	return t.Kind.String()
}
