package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
)

// envelope is the import shape. Field order comes from the descriptor.
type envelope struct {
	Preamble *uint8                     `json:"preamble"`
	MsgType  uint16                     `json:"msg_type"`
	Sender   *uint16                    `json:"sender"`
	Length   *uint8                     `json:"length"`
	Payload  []byte                     `json:"payload"`
	CRC      *uint16                    `json:"crc"`
	Name     string                     `json:"name"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

// MarshalJSON writes the envelope keys followed by fields in message order.
func (m *Message) MarshalJSON() ([]byte, error) {
	f, err := m.ToFrame()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeEnvelope(&buf, f, m.Name)
	buf.WriteString(`,"fields":{`)
	first := true
	var ferr error
	m.Range(func(name string, v field.Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		if ferr = appendValueJSON(&buf, v); ferr != nil {
			ferr = fmt.Errorf("field %q: %w", name, ferr)
			return false
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// MarshalFrameJSON projects a frame with no known descriptor.
func MarshalFrameJSON(f frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	writeEnvelope(&buf, f, "")
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeEnvelope(buf *bytes.Buffer, f frame.Frame, name string) {
	payload, _ := json.Marshal(f.Payload())
	fmt.Fprintf(buf, `{"preamble":%d,"msg_type":%d,"sender":%d,"length":%d,"payload":%s,"crc":%d`,
		frame.Preamble, f.MsgType(), f.Sender(), f.Length(), payload, f.CRC())
	if name != "" {
		n, _ := json.Marshal(name)
		buf.WriteString(`,"name":`)
		buf.Write(n)
	}
}

func appendValueJSON(buf *bytes.Buffer, v field.Value) error {
	k := v.Type().Kind
	switch {
	case k.IsUnsigned(), k.IsSigned():
		buf.WriteString(v.String())
	case k.IsFloat():
		f, _ := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %v", ErrUnrepresentable, f)
		}
		bits := 64
		if k == field.KindF32 {
			bits = 32
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, bits))
	case k == field.KindString:
		s, _ := v.Str()
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: string is not valid utf-8", ErrUnrepresentable)
		}
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case k == field.KindArray:
		elems, _ := v.Elems()
		buf.WriteByte('[')
		for i, e := range elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendValueJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unset value", ErrUnrepresentable)
	}
	return nil
}

// FromJSON rebuilds a message from its projection using desc for field
// order and types.
func FromJSON(desc schema.Descriptor, data []byte) (*Message, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	return fromEnvelope(desc, env)
}

func fromEnvelope(desc schema.Descriptor, env envelope) (*Message, error) {
	if env.MsgType != desc.MsgType {
		return nil, fmt.Errorf("%w: json 0x%04X descriptor 0x%04X", ErrMsgTypeMismatch, env.MsgType, desc.MsgType)
	}
	m := New(env.MsgType, env.sender())
	m.Name = desc.Name
	for name := range env.Fields {
		if desc.Index(name) < 0 {
			return nil, fmt.Errorf("%w: msg_type=0x%04X field %q", ErrUnknownField, desc.MsgType, name)
		}
	}
	for _, fd := range desc.Fields {
		raw, ok := env.Fields[fd.Name]
		if !ok {
			return nil, MissingFieldError{MsgType: desc.MsgType, Field: fd.Name}
		}
		v, err := parseValue(fd.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("message: msg_type=0x%04X field %q: %w", desc.MsgType, fd.Name, err)
		}
		m.Set(fd.Name, v)
	}
	return m, nil
}

// Import turns a JSON projection back into a frame. Known types with a
// fields object are re-encoded from their fields; if a payload is also
// present it must match. Anything else is rebuilt from the payload.
func Import(reg *schema.Registry, data []byte) (frame.Frame, error) {
	return ImportWithSender(reg, data, 0)
}

// ImportWithSender is Import with a sender for projections that omit one.
func ImportWithSender(reg *schema.Registry, data []byte, sender uint16) (frame.Frame, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return frame.Frame{}, err
	}
	if env.Sender == nil {
		env.Sender = &sender
	}
	desc, known := reg.Lookup(env.MsgType)
	var f frame.Frame
	if known && env.Fields != nil {
		m, err := fromEnvelope(desc, env)
		if err != nil {
			return frame.Frame{}, err
		}
		f, err = EncodeMessage(desc, m)
		if err != nil {
			return frame.Frame{}, err
		}
		if env.Payload != nil && !bytes.Equal(env.Payload, f.Payload()) {
			return frame.Frame{}, ErrProjectionMismatch
		}
	} else {
		if env.Payload == nil {
			return frame.Frame{}, fmt.Errorf("%w: msg_type=0x%04X has no payload", ErrMissingField, env.MsgType)
		}
		f, err = frame.New(env.MsgType, env.sender(), env.Payload)
		if err != nil {
			return frame.Frame{}, err
		}
	}
	if env.Length != nil && *env.Length != f.Length() {
		return frame.Frame{}, fmt.Errorf("%w: length %d, payload %d", ErrProjectionMismatch, *env.Length, f.Length())
	}
	if env.CRC != nil && *env.CRC != f.CRC() {
		return frame.Frame{}, fmt.Errorf("%w: crc 0x%04X, computed 0x%04X", frame.ErrCRCMismatch, *env.CRC, f.CRC())
	}
	return f, nil
}

func (e envelope) sender() uint16 {
	if e.Sender == nil {
		return 0
	}
	return *e.Sender
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("message: parse json: %w", err)
	}
	if env.Preamble != nil && *env.Preamble != frame.Preamble {
		return envelope{}, fmt.Errorf("%w: 0x%02X", frame.ErrBadPreamble, *env.Preamble)
	}
	return env, nil
}

func parseValue(t field.Type, raw json.RawMessage) (field.Value, error) {
	switch k := t.Kind; {
	case k == field.KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return field.Value{}, fmt.Errorf("%w: %v", ErrFieldTypeMismatch, err)
		}
		return field.NewString(s), nil
	case k == field.KindArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return field.Value{}, fmt.Errorf("%w: %v", ErrFieldTypeMismatch, err)
		}
		elems := make([]field.Value, len(items))
		for i, item := range items {
			v, err := parseValue(field.Type{Kind: t.Elem}, item)
			if err != nil {
				return field.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = v
		}
		return field.NewArray(t.Elem, elems)
	default:
		return parseScalar(k, string(bytes.TrimSpace(raw)))
	}
}

func parseScalar(k field.Kind, s string) (field.Value, error) {
	bits := k.Size() * 8
	switch {
	case k.IsUnsigned():
		n, err := strconv.ParseUint(s, 10, bits)
		if err != nil {
			return field.Value{}, fmt.Errorf("%w: %s: %v", ErrFieldTypeMismatch, k, err)
		}
		return field.NewUint(k, n)
	case k.IsSigned():
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return field.Value{}, fmt.Errorf("%w: %s: %v", ErrFieldTypeMismatch, k, err)
		}
		return field.NewInt(k, n)
	case k.IsFloat():
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return field.Value{}, fmt.Errorf("%w: %s: %v", ErrFieldTypeMismatch, k, err)
		}
		return field.NewFloat(k, f)
	default:
		return field.Value{}, fmt.Errorf("%w: %s", field.ErrInvalidType, k)
	}
}
