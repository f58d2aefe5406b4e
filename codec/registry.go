package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ErrFrozen is returned when a binding is added to a frozen Registry.
var ErrFrozen = errors.New("codec: registry is frozen")

// Registry holds scalar provider bindings. Bindings are added while entity
// metadata is loaded; after Freeze the registry is read-only and lookups
// take no locks.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool
	fields map[fieldKey]Codec
	types  map[reflect.Type]Codec
	names  map[string]Codec
}

type fieldKey struct{ entity, field string }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fields: make(map[fieldKey]Codec),
		types:  make(map[reflect.Type]Codec),
		names:  make(map[string]Codec),
	}
}

func (r *Registry) add(fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	fn()
	return nil
}

// Bind binds c to a single field of an entity.
func (r *Registry) Bind(entity, field string, c Codec) error {
	if c == nil {
		return fmt.Errorf("codec: nil codec for %s.%s", entity, field)
	}
	return r.add(func() { r.fields[fieldKey{entity, field}] = c })
}

// Register binds c to every structured field of type typ.
func (r *Registry) Register(typ reflect.Type, c Codec) error {
	if typ == nil || c == nil {
		return errors.New("codec: nil type or codec")
	}
	return r.add(func() { r.types[typ] = c })
}

// Name registers c under name for fields selecting a codec by name.
func (r *Registry) Name(name string, c Codec) error {
	if name == "" || c == nil {
		return errors.New("codec: empty name or nil codec")
	}
	return r.add(func() { r.names[name] = c })
}

// Named returns the codec registered under name.
func (r *Registry) Named(name string) (Codec, bool) {
	r.rlock()
	defer r.runlock()
	c, ok := r.names[name]
	return c, ok
}

// Lookup returns the codec of a field: the field binding first, then the
// binding of its Go type.
func (r *Registry) Lookup(entity, field string, typ reflect.Type) (Codec, bool) {
	r.rlock()
	defer r.runlock()
	if c, ok := r.fields[fieldKey{entity, field}]; ok {
		return c, true
	}
	if typ != nil {
		if c, ok := r.types[typ]; ok {
			return c, true
		}
	}
	return nil, false
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

func (r *Registry) rlock() {
	if !r.frozen.Load() {
		r.mu.RLock()
	}
}

func (r *Registry) runlock() {
	if !r.frozen.Load() {
		r.mu.RUnlock()
	}
}
