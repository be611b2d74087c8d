// Package schema owns message descriptors and the registry that maps a
// message type to its payload layout.
//
// Ownership boundary:
// - descriptor layout validation (greedy placement, length references)
// - registration and lookup by msg_type
//
// Registries are explicit values. Populate one at startup, Seal it, and
// share it read-only between stream readers.
package schema
