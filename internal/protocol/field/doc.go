// Package field encodes and decodes single payload fields.
//
// Ownership boundary:
// - field type tags and their wire widths
// - the tagged Value sum type
// - little-endian scalar, string, and array codecs over a bounded Cursor
package field
