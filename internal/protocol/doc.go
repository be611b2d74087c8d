// Package protocol groups the SBP wire stack.
//
// Ownership boundary:
// - field: primitive type tags and little-endian value codec
//
// - schema: message descriptors and the msg_type registry
//
// - frame: preamble, header, payload and CRC-16 envelope
//
// - message: descriptor-driven payload decode/encode and the JSON projection
//
// - stream: chunked frame extraction with resynchronization
//
// Concrete message definitions live in internal/sbp.
package protocol
