package message

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
)

// Message is a decoded payload: msg_type, sender, and field values in
// descriptor order.
type Message struct {
	MsgType uint16
	Sender  uint16
	Name    string

	fields *orderedmap.OrderedMap[string, field.Value]
	src    frame.Frame
	hasSrc bool
}

// New creates an empty message for building an encode request.
func New(msgType, sender uint16) *Message {
	return &Message{
		MsgType: msgType,
		Sender:  sender,
		fields:  orderedmap.NewOrderedMap[string, field.Value](),
	}
}

// Set appends or replaces a field value. Replacing keeps the original
// position. A decoded message forgets its source frame, so ToFrame and the
// JSON projection reflect the new values.
func (m *Message) Set(name string, v field.Value) *Message {
	m.fields.Set(name, v)
	m.src, m.hasSrc = frame.Frame{}, false
	return m
}

// Get returns the named field.
func (m *Message) Get(name string) (field.Value, bool) {
	return m.fields.Get(name)
}

// At returns the field at position i.
func (m *Message) At(i int) (string, field.Value, bool) {
	if i < 0 || i >= m.fields.Len() {
		return "", field.Value{}, false
	}
	n := 0
	for el := m.fields.Front(); el != nil; el = el.Next() {
		if n == i {
			return el.Key, el.Value, true
		}
		n++
	}
	return "", field.Value{}, false
}

// Len returns the number of fields.
func (m *Message) Len() int { return m.fields.Len() }

// Names returns field names in order.
func (m *Message) Names() []string {
	out := make([]string, 0, m.fields.Len())
	for el := m.fields.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

// Range calls fn for every field in order until fn returns false.
func (m *Message) Range(fn func(name string, v field.Value) bool) {
	for el := m.fields.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// Values returns the fields as an unordered map, the shape Encode accepts.
func (m *Message) Values() map[string]field.Value {
	out := make(map[string]field.Value, m.fields.Len())
	m.Range(func(name string, v field.Value) bool {
		out[name] = v
		return true
	})
	return out
}

// Uint returns the named unsigned field.
func (m *Message) Uint(name string) (uint64, error) {
	v, ok := m.Get(name)
	if !ok {
		return 0, MissingFieldError{MsgType: m.MsgType, Field: name}
	}
	return v.Uint()
}

// Int returns the named signed field.
func (m *Message) Int(name string) (int64, error) {
	v, ok := m.Get(name)
	if !ok {
		return 0, MissingFieldError{MsgType: m.MsgType, Field: name}
	}
	return v.Int()
}

// Str returns the named string field.
func (m *Message) Str(name string) (string, error) {
	v, ok := m.Get(name)
	if !ok {
		return "", MissingFieldError{MsgType: m.MsgType, Field: name}
	}
	return v.Str()
}

// Frame returns the frame this message was decoded from, if it has not
// been modified since.
func (m *Message) Frame() (frame.Frame, bool) {
	return m.src, m.hasSrc
}

// Payload concatenates the field values in order.
func (m *Message) Payload() ([]byte, error) {
	var buf []byte
	var err error
	for el := m.fields.Front(); el != nil; el = el.Next() {
		buf, err = field.Encode(el.Value.Type(), el.Value, buf)
		if err != nil {
			return nil, fmt.Errorf("message: field %q: %w", el.Key, err)
		}
	}
	return buf, nil
}

// ToFrame returns the source frame for decoded messages, or frames the
// current field values.
func (m *Message) ToFrame() (frame.Frame, error) {
	if m.hasSrc {
		return m.src, nil
	}
	payload, err := m.Payload()
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.New(m.MsgType, m.Sender, payload)
}

func (m *Message) String() string {
	var sb strings.Builder
	name := m.Name
	if name == "" {
		name = "MSG"
	}
	fmt.Fprintf(&sb, "%s(0x%04X) sender=0x%04X", name, m.MsgType, m.Sender)
	m.Range(func(k string, v field.Value) bool {
		fmt.Fprintf(&sb, " %s=%s", k, v)
		return true
	})
	return sb.String()
}
