package message

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
)

// Decode decodes f's payload field by field in descriptor order. The
// payload must be consumed exactly.
func Decode(f frame.Frame, desc schema.Descriptor) (*Message, error) {
	if f.MsgType() != desc.MsgType {
		return nil, fmt.Errorf("%w: frame 0x%04X descriptor 0x%04X", ErrMsgTypeMismatch, f.MsgType(), desc.MsgType)
	}
	fields, err := DecodePayload(desc, f.Payload())
	if err != nil {
		return nil, err
	}
	return &Message{
		MsgType: f.MsgType(),
		Sender:  f.Sender(),
		Name:    desc.Name,
		fields:  fields,
		src:     f,
		hasSrc:  true,
	}, nil
}

// DecodePayload decodes payload against desc into ordered field values.
func DecodePayload(desc schema.Descriptor, payload []byte) (*orderedmap.OrderedMap[string, field.Value], error) {
	out := orderedmap.NewOrderedMapWithCapacity[string, field.Value](len(desc.Fields))
	c := field.NewCursor(payload)
	for _, fd := range desc.Fields {
		var v field.Value
		var err error
		start := c.Offset()
		if fd.LengthField != "" {
			n, lerr := countFrom(out, fd.LengthField)
			if lerr != nil {
				return nil, &DecodeError{MsgType: desc.MsgType, Field: fd.Name, Offset: start, Err: lerr}
			}
			v, err = field.DecodeN(fd.Type, c, n)
		} else {
			v, err = field.Decode(fd.Type, c)
		}
		if err != nil {
			return nil, &DecodeError{MsgType: desc.MsgType, Field: fd.Name, Offset: start, Err: err}
		}
		out.Set(fd.Name, v)
	}
	if c.Remaining() != 0 {
		return nil, &DecodeError{
			MsgType: desc.MsgType,
			Offset:  c.Offset(),
			Err:     fmt.Errorf("%w: %d bytes", ErrTrailingBytes, c.Remaining()),
		}
	}
	return out, nil
}

func countFrom(fields *orderedmap.OrderedMap[string, field.Value], name string) (int, error) {
	lv, ok := fields.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: length field %q", ErrMissingField, name)
	}
	n, err := lv.Uint()
	if err != nil {
		return 0, err
	}
	if n > frame.MaxPayload {
		return 0, fmt.Errorf("%w: count %d exceeds any payload", field.ErrTruncated, n)
	}
	return int(n), nil
}

// EncodePayload encodes values in descriptor order. Every descriptor field
// must be present, except length fields, which are derived from the field
// they size when absent.
func EncodePayload(desc schema.Descriptor, values map[string]field.Value) ([]byte, error) {
	for name := range values {
		if desc.Index(name) < 0 {
			return nil, fmt.Errorf("%w: msg_type=0x%04X field %q", ErrUnknownField, desc.MsgType, name)
		}
	}
	targets := desc.LengthTargets()
	var buf []byte
	for _, fd := range desc.Fields {
		v, ok := values[fd.Name]
		if target, isLen := targets[fd.Name]; isLen {
			lv, err := lengthValue(desc, fd, values[target], v, ok)
			if err != nil {
				return nil, err
			}
			v, ok = lv, true
		}
		if !ok {
			return nil, MissingFieldError{MsgType: desc.MsgType, Field: fd.Name}
		}
		if v.Type() != fd.Type {
			return nil, FieldTypeMismatchError{MsgType: desc.MsgType, Field: fd.Name, Want: fd.Type, Got: v.Type()}
		}
		var err error
		buf, err = field.Encode(fd.Type, v, buf)
		if err != nil {
			return nil, fmt.Errorf("message: msg_type=0x%04X field %q: %w", desc.MsgType, fd.Name, err)
		}
	}
	return buf, nil
}

func lengthValue(desc schema.Descriptor, fd schema.FieldDesc, target, given field.Value, present bool) (field.Value, error) {
	if target.IsZero() {
		if present {
			return given, nil
		}
		return field.Value{}, MissingFieldError{MsgType: desc.MsgType, Field: fd.Name}
	}
	count := uint64(target.Count())
	if present {
		n, err := given.Uint()
		if err != nil || given.Type() != fd.Type {
			return field.Value{}, FieldTypeMismatchError{MsgType: desc.MsgType, Field: fd.Name, Want: fd.Type, Got: given.Type()}
		}
		if n != count {
			return field.Value{}, fmt.Errorf("%w: %q=%d but value has %d", ErrLengthMismatch, fd.Name, n, count)
		}
		return given, nil
	}
	lv, err := field.NewUint(fd.Type.Kind, count)
	if err != nil {
		return field.Value{}, err
	}
	if n, _ := lv.Uint(); n != count {
		return field.Value{}, fmt.Errorf("%w: %d does not fit %s %q", ErrLengthMismatch, count, fd.Type, fd.Name)
	}
	return lv, nil
}

// Encode encodes values for desc and frames them for sender.
func Encode(desc schema.Descriptor, sender uint16, values map[string]field.Value) (frame.Frame, error) {
	payload, err := EncodePayload(desc, values)
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(desc.MsgType, sender, payload)
}

// EncodeMessage encodes m against desc. Fields set on m that the
// descriptor does not name are rejected.
func EncodeMessage(desc schema.Descriptor, m *Message) (frame.Frame, error) {
	if m.MsgType != desc.MsgType {
		return frame.Frame{}, fmt.Errorf("%w: message 0x%04X descriptor 0x%04X", ErrMsgTypeMismatch, m.MsgType, desc.MsgType)
	}
	return Encode(desc, m.Sender, m.Values())
}
