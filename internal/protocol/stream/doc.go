// Package stream extracts frames from a byte stream fed in arbitrary chunks.
//
// A Reader buffers only the unconsumed suffix of what it was fed. Each call
// to Next either yields one frame (decoded against the registry when its
// msg_type is known, raw otherwise), reports a framing or decode error, or
// returns ErrNeedMore. After a CRC failure the reader drops exactly one byte
// and seeks the next preamble, so a corrupted region never stalls the
// stream.
//
// Scanner adapts a Reader to a blocking io.Reader source.
package stream
