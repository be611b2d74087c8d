// Package message decodes frame payloads into ordered field values and
// encodes field values back into frames, driven by a schema.Descriptor.
//
// A Message is owned by whoever received it; nothing in this package keeps
// a reference after returning one. The JSON projection is lossless: Import
// of a Message's JSON re-encodes the original payload bytes.
package message
