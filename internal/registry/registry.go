// Package registry tracks which objects a dump run has already reported.
//
// Every object identity reachable from the roots gets exactly one entry. An
// entry starts Reserved (size -1) before the object's members are expanded,
// so a member that leads back to it is recognized as a cycle. Queued
// expansion can leave an entry Deferred while descendants wait in the work
// queue; Finalize records the settled size.
package registry

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/heap-dump/pkg/model"

	apperrors "github.com/heap-dump/pkg/errors"
)

// State is the lifecycle state of an entry.
type State int

const (
	Reserved State = iota
	Deferred
	Final
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case Reserved:
		return "reserved"
	case Deferred:
		return "deferred"
	case Final:
		return "final"
	default:
		return "unknown"
	}
}

// Identity is a reference-equality handle for an object. The type is part of
// the key because a struct and its first field share an address.
type Identity struct {
	Addr uintptr
	Type reflect.Type
	Len  int
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	if id.Len > 0 {
		return fmt.Sprintf("%s@%#x[%d]", id.Type, id.Addr, id.Len)
	}
	return fmt.Sprintf("%s@%#x", id.Type, id.Addr)
}

var stringType = reflect.TypeOf("")

// IdentityOf returns the identity of a heap object held by v. Values with no
// separate allocation (scalars, inline structs and arrays, empty strings and
// slices, nil references) have none.
func IdentityOf(v reflect.Value) (Identity, bool) {
	if !v.IsValid() {
		return Identity{}, false
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map:
		if v.IsNil() {
			return Identity{}, false
		}
		return Identity{Addr: v.Pointer(), Type: v.Type()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return Identity{}, false
		}
		return Identity{Addr: v.Pointer(), Type: v.Type(), Len: v.Len()}, true
	case reflect.String:
		s := v.String()
		if len(s) == 0 {
			return Identity{}, false
		}
		return Identity{Addr: uintptr(unsafe.Pointer(unsafe.StringData(s))), Type: stringType, Len: len(s)}, true
	case reflect.Interface:
		if v.IsNil() {
			return Identity{}, false
		}
		return IdentityOf(v.Elem())
	}
	return Identity{}, false
}

// Entry is what the registry knows about one identity.
type Entry struct {
	Type  reflect.Type
	Node  *model.ReportNode
	Size  int64
	State State
}

// Registry maps identities to entries. It belongs to a single run and is
// not safe for concurrent use.
type Registry struct {
	entries map[Identity]*Entry
	order   []Identity
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Identity]*Entry)}
}

// TryGet returns the entry for id, if any.
func (r *Registry) TryGet(id Identity) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Contains reports whether id has an entry.
func (r *Registry) Contains(id Identity) bool {
	_, ok := r.entries[id]
	return ok
}

// Reserve inserts a sentinel entry for id. Reserving a known identity is a
// walker bug.
func (r *Registry) Reserve(id Identity, node *model.ReportNode) error {
	if e, ok := r.entries[id]; ok {
		return apperrors.Wrap(apperrors.CodeRegistry,
			fmt.Sprintf("reserve %s: already %s", id, e.State), nil)
	}
	r.entries[id] = &Entry{Type: id.Type, Node: node, Size: model.PendingSize, State: Reserved}
	r.order = append(r.order, id)
	return nil
}

// Defer marks a reserved entry as expanded but waiting on queued work.
func (r *Registry) Defer(id Identity) error {
	e, ok := r.entries[id]
	if !ok {
		return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("defer %s: not reserved", id), nil)
	}
	if e.State != Reserved {
		return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("defer %s: already %s", id, e.State), nil)
	}
	e.State = Deferred
	return nil
}

// Finalize records the final size of a reserved or deferred entry.
func (r *Registry) Finalize(id Identity, size int64) error {
	e, ok := r.entries[id]
	if !ok {
		return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("finalize %s: not reserved", id), nil)
	}
	if e.State == Final {
		return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("finalize %s: already final", id), nil)
	}
	if size < 0 {
		return apperrors.Wrap(apperrors.CodeRegistry, fmt.Sprintf("finalize %s: negative size %d", id, size), nil)
	}
	e.Size = size
	e.State = Final
	return nil
}

// Len returns the number of distinct identities seen.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Unsettled counts entries that are not final yet.
func (r *Registry) Unsettled() int {
	n := 0
	for _, e := range r.entries {
		if e.State != Final {
			n++
		}
	}
	return n
}

// Each calls fn for every entry in insertion order.
func (r *Registry) Each(fn func(id Identity, e *Entry)) {
	for _, id := range r.order {
		fn(id, r.entries[id])
	}
}
