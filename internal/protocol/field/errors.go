package field

import "errors"

var (
	ErrTruncated         = errors.New("field: truncated input")
	ErrFieldTypeMismatch = errors.New("field: type mismatch")
	ErrInvalidType       = errors.New("field: invalid type")
	ErrNegativeLength    = errors.New("field: negative length")
)
