// Package sbp holds the compiled-in message set: descriptors for each known
// msg_type and typed views over decoded messages.
//
// Nothing registers itself. Call Register (or NewRegistry) once at startup
// and hand the sealed registry to every stream.Reader.
package sbp
