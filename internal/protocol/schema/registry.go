package schema

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Registry stores descriptors by msg_type. It is not safe for concurrent
// Register calls; after Seal it is read-only and Lookup needs no locking.
type Registry struct {
	items  map[uint16]Descriptor
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[uint16]Descriptor)}
}

// Register validates desc and stores it. A later registration for the same
// msg_type replaces the earlier one.
func (r *Registry) Register(desc Descriptor) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if err := desc.Validate(); err != nil {
		log.Debug().Err(err).Uint16("msg_type", desc.MsgType).Msg("schema.Register rejected")
		return err
	}
	fields := make([]FieldDesc, len(desc.Fields))
	copy(fields, desc.Fields)
	desc.Fields = fields
	if _, replaced := r.items[desc.MsgType]; replaced {
		log.Debug().Uint16("msg_type", desc.MsgType).Str("name", desc.Name).Msg("schema.Register replaced")
	}
	r.items[desc.MsgType] = desc
	return nil
}

// RegisterAll registers every descriptor and stops at the first error.
func (r *Registry) RegisterAll(descs ...Descriptor) error {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor for msgType. Unknown types return false.
func (r *Registry) Lookup(msgType uint16) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.items[msgType]
	return d, ok
}

// Seal freezes the registry.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool { return r.sealed }

// Len returns the number of registered message types.
func (r *Registry) Len() int { return len(r.items) }

// Types returns registered msg_types in ascending order.
func (r *Registry) Types() []uint16 {
	out := make([]uint16, 0, len(r.items))
	for t := range r.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
