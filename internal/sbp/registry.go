package sbp

import (
	"fmt"

	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
)

// DefaultSender is the sender id used when a caller does not pick one.
const DefaultSender uint16 = 0x42

// Descriptors returns every compiled-in descriptor.
func Descriptors() []schema.Descriptor {
	return []schema.Descriptor{
		ImuRawDescriptor,
		ImuAuxDescriptor,
		StartupDescriptor,
		DgnssStatusDescriptor,
		HeartbeatDescriptor,
	}
}

// Register adds the compiled-in descriptors to reg.
func Register(reg *schema.Registry) error {
	if err := reg.RegisterAll(Descriptors()...); err != nil {
		return fmt.Errorf("sbp: register: %w", err)
	}
	return nil
}

// NewRegistry returns a sealed registry holding the compiled-in message set.
func NewRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

// Payload is a typed view that can be encoded.
type Payload interface {
	MsgType() uint16
	Values() map[string]field.Value
}

// Encode frames p for sender using the compiled-in descriptor.
func Encode(p Payload, sender uint16) (frame.Frame, error) {
	desc, ok := lookup(p.MsgType())
	if !ok {
		return frame.Frame{}, fmt.Errorf("sbp: no descriptor for msg_type 0x%04X", p.MsgType())
	}
	return message.Encode(desc, sender, p.Values())
}

func lookup(msgType uint16) (schema.Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.MsgType == msgType {
			return d, true
		}
	}
	return schema.Descriptor{}, false
}

// view checks m is of msgType and reads typed fields out of it. The first
// failure sticks.
type view struct {
	m   *message.Message
	err error
}

func newView(m *message.Message, msgType uint16) *view {
	v := &view{m: m}
	if m == nil {
		v.err = fmt.Errorf("%w: nil message", message.ErrMsgTypeMismatch)
	} else if m.MsgType != msgType {
		v.err = fmt.Errorf("%w: message 0x%04X, want 0x%04X", message.ErrMsgTypeMismatch, m.MsgType, msgType)
	}
	return v
}

func (v *view) get(name string, t field.Type) field.Value {
	if v.err != nil {
		return field.Value{}
	}
	fv, ok := v.m.Get(name)
	if !ok {
		v.err = message.MissingFieldError{MsgType: v.m.MsgType, Field: name}
		return field.Value{}
	}
	if fv.Type() != t {
		v.err = message.FieldTypeMismatchError{MsgType: v.m.MsgType, Field: name, Want: t, Got: fv.Type()}
		return field.Value{}
	}
	return fv
}

func (v *view) u8(name string) uint8 {
	n, _ := v.get(name, field.U8).Uint()
	return uint8(n)
}

func (v *view) u16(name string) uint16 {
	n, _ := v.get(name, field.U16).Uint()
	return uint16(n)
}

func (v *view) u32(name string) uint32 {
	n, _ := v.get(name, field.U32).Uint()
	return uint32(n)
}

func (v *view) s16(name string) int16 {
	n, _ := v.get(name, field.S16).Int()
	return int16(n)
}

func (v *view) str(name string) string {
	s, _ := v.get(name, field.String).Str()
	return s
}
