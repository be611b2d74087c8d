package message

import (
	"errors"
	"fmt"

	"github.com/pmiettinen/libsbp/internal/protocol/field"
)

var (
	ErrMissingField       = errors.New("message: missing field")
	ErrFieldTypeMismatch  = field.ErrFieldTypeMismatch
	ErrUnknownField       = errors.New("message: unknown field")
	ErrLengthMismatch     = errors.New("message: length field disagrees with value")
	ErrTrailingBytes      = errors.New("message: trailing payload bytes")
	ErrMsgTypeMismatch    = errors.New("message: msg_type mismatch")
	ErrUnrepresentable    = errors.New("message: value has no lossless json form")
	ErrProjectionMismatch = errors.New("message: json fields disagree with payload")
)

// MissingFieldError reports a descriptor field absent from an encode request.
type MissingFieldError struct {
	MsgType uint16
	Field   string
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("message: msg_type=0x%04X missing field %q", e.MsgType, e.Field)
}

func (e MissingFieldError) Unwrap() error { return ErrMissingField }

// FieldTypeMismatchError reports a value whose tag differs from the descriptor.
type FieldTypeMismatchError struct {
	MsgType uint16
	Field   string
	Want    field.Type
	Got     field.Type
}

func (e FieldTypeMismatchError) Error() string {
	return fmt.Sprintf("message: msg_type=0x%04X field %q is %s, want %s", e.MsgType, e.Field, e.Got, e.Want)
}

func (e FieldTypeMismatchError) Unwrap() error { return ErrFieldTypeMismatch }

// DecodeError reports a payload that does not match its descriptor.
type DecodeError struct {
	MsgType uint16
	Field   string
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("message: decode msg_type=0x%04X at payload offset %d: %v", e.MsgType, e.Offset, e.Err)
	}
	return fmt.Sprintf("message: decode msg_type=0x%04X field %q at payload offset %d: %v", e.MsgType, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
