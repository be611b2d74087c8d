package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmiettinen/libsbp/internal/protocol/field"
)

var (
	ErrUnsupportedLayout = errors.New("schema: unsupported field layout")
	ErrRegistrySealed    = errors.New("schema: registry sealed")
)

// FieldDesc describes one payload field. LengthField, when set, names an
// earlier unsigned field whose value is the count for this variable field.
type FieldDesc struct {
	Name        string
	Type        field.Type
	LengthField string
}

// Greedy reports whether the field consumes the rest of the payload.
func (f FieldDesc) Greedy() bool {
	return f.Type.Variable() && f.LengthField == ""
}

// Descriptor is the ordered payload layout of one message type.
type Descriptor struct {
	MsgType uint16
	Name    string
	Fields  []FieldDesc
}

// Index returns the position of the named field, or -1.
func (d Descriptor) Index(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FixedSize returns the payload size when every field is fixed-width.
func (d Descriptor) FixedSize() (int, bool) {
	total := 0
	for _, f := range d.Fields {
		if f.Type.Variable() {
			return 0, false
		}
		total += f.Type.Size()
	}
	return total, true
}

// LengthTargets maps a length field name to the variable field it sizes.
func (d Descriptor) LengthTargets() map[string]string {
	out := make(map[string]string)
	for _, f := range d.Fields {
		if f.LengthField != "" {
			out[f.LengthField] = f.Name
		}
	}
	return out
}

// LayoutError reports why a descriptor cannot be registered.
type LayoutError struct {
	MsgType uint16
	Field   string
	Reason  string
}

func (e LayoutError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: msg_type=0x%04X: %s", e.MsgType, e.Reason)
	}
	return fmt.Sprintf("schema: msg_type=0x%04X field=%s: %s", e.MsgType, e.Field, e.Reason)
}

func (e LayoutError) Unwrap() error { return ErrUnsupportedLayout }

// Validate enforces the layout rules: unique non-empty names, valid tags,
// at most one greedy field and only in last position, and length fields
// that name an earlier unsigned scalar not already claimed.
func (d Descriptor) Validate() error {
	seen := make(map[string]field.Type, len(d.Fields))
	claimed := make(map[string]struct{})
	for i, f := range d.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" || name != f.Name {
			return LayoutError{MsgType: d.MsgType, Field: f.Name, Reason: fmt.Sprintf("field %d has an invalid name", i)}
		}
		if _, dup := seen[name]; dup {
			return LayoutError{MsgType: d.MsgType, Field: name, Reason: "duplicate field name"}
		}
		if err := f.Type.Validate(); err != nil {
			return LayoutError{MsgType: d.MsgType, Field: name, Reason: err.Error()}
		}
		if f.LengthField != "" {
			if !f.Type.Variable() {
				return LayoutError{MsgType: d.MsgType, Field: name, Reason: "length field on fixed-width type"}
			}
			lt, ok := seen[f.LengthField]
			if !ok {
				return LayoutError{MsgType: d.MsgType, Field: name, Reason: fmt.Sprintf("length field %q must precede it", f.LengthField)}
			}
			if !lt.Kind.IsUnsigned() {
				return LayoutError{MsgType: d.MsgType, Field: name, Reason: fmt.Sprintf("length field %q is %s, want unsigned", f.LengthField, lt)}
			}
			if _, dup := claimed[f.LengthField]; dup {
				return LayoutError{MsgType: d.MsgType, Field: name, Reason: fmt.Sprintf("length field %q sizes more than one field", f.LengthField)}
			}
			claimed[f.LengthField] = struct{}{}
		}
		if f.Greedy() && i != len(d.Fields)-1 {
			return LayoutError{MsgType: d.MsgType, Field: name, Reason: "greedy field must be last"}
		}
		seen[name] = f.Type
	}
	return nil
}
