// Package roots discovers the entry points of a heap dump: package-level
// variables grouped into static holders, and a forest of scene containers
// carrying components.
package roots

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Access selects static fields by visibility.
type Access int

const (
	AccessPublic Access = 1 << iota
	AccessNonPublic

	AccessAll = AccessPublic | AccessNonPublic
)

// Allows reports whether a field with the given visibility is selected.
func (a Access) Allows(exported bool) bool {
	if exported {
		return a&AccessPublic != 0
	}
	return a&AccessNonPublic != 0
}

// ParseAccess parses "public", "nonpublic" or "all".
func ParseAccess(s string) (Access, error) {
	switch s {
	case "", "all":
		return AccessAll, nil
	case "public":
		return AccessPublic, nil
	case "nonpublic", "non-public", "private":
		return AccessNonPublic, nil
	}
	return 0, apperrors.Newf(apperrors.CodeInvalidInput, "unknown access %q", s)
}

// StaticField is one package-level variable.
type StaticField struct {
	Name     string
	Type     reflect.Type
	Exported bool

	ptr reflect.Value
}

// Value reads the variable's current value.
func (f StaticField) Value() (reflect.Value, error) {
	if !f.ptr.IsValid() || f.ptr.IsNil() {
		return reflect.Value{}, apperrors.Newf(apperrors.CodeFieldAccess, "static %s has no storage", f.Name)
	}
	return f.ptr.Elem(), nil
}

// StaticType groups static fields under one name, the unit the dump reports
// as a type.
type StaticType struct {
	Name   string
	Module string
	// Enum marks holders that only carry constants; they are not enumerated.
	Enum bool
	// Generic marks uninstantiated generic types, whose statics exist per
	// instantiation and cannot be enumerated.
	Generic bool

	fields []StaticField
}

// Fields returns the holder's fields selected by access, in registration
// order.
func (t *StaticType) Fields(access Access) []StaticField {
	out := make([]StaticField, 0, len(t.fields))
	for _, f := range t.fields {
		if access.Allows(f.Exported) {
			out = append(out, f)
		}
	}
	return out
}

// Filter selects holders by module and name.
type Filter interface {
	Match(module, name string) bool
}

// StaticSource lists the static holders to dump.
type StaticSource interface {
	Types(filter Filter) ([]*StaticType, error)
}

// Registry is an in-process StaticSource. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	holders map[string]*StaticType
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{holders: make(map[string]*StaticType)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by RegisterVar and
// RegisterStruct.
func Default() *Registry {
	return defaultRegistry
}

// RegisterVar adds a variable to the default registry.
func RegisterVar(module, holder, name string, ptr interface{}) {
	if err := defaultRegistry.Var(module, holder, name, ptr); err != nil {
		panic(err)
	}
}

// RegisterStruct adds the fields of *ptr to the default registry.
func RegisterStruct(module, holder string, ptr interface{}) {
	if err := defaultRegistry.Struct(module, holder, ptr); err != nil {
		panic(err)
	}
}

func (r *Registry) holder(module, name string) *StaticType {
	key := module + "." + name
	h, ok := r.holders[key]
	if !ok {
		h = &StaticType{Name: name, Module: module}
		r.holders[key] = h
		r.order = append(r.order, key)
	}
	return h
}

// Var registers the variable ptr points to under holder.
func (r *Registry) Var(module, holder, name string, ptr interface{}) error {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Ptr || pv.IsNil() {
		return apperrors.Newf(apperrors.CodeInvalidInput, "static %s.%s: need a non-nil pointer, got %T", holder, name, ptr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.holder(module, holder)
	for _, f := range h.fields {
		if f.Name == name {
			return apperrors.Newf(apperrors.CodeInvalidInput, "static %s.%s registered twice", holder, name)
		}
	}
	h.fields = append(h.fields, StaticField{
		Name:     name,
		Type:     pv.Type().Elem(),
		Exported: isExported(name),
		ptr:      pv,
	})
	return nil
}

// Struct registers every field of the struct ptr points to as a static of
// holder. The struct must stay alive for as long as the registry is used.
func (r *Registry) Struct(module, holder string, ptr interface{}) error {
	pv := reflect.ValueOf(ptr)
	if pv.Kind() != reflect.Ptr || pv.IsNil() || pv.Elem().Kind() != reflect.Struct {
		return apperrors.Newf(apperrors.CodeInvalidInput, "static holder %s: need a pointer to struct, got %T", holder, ptr)
	}
	sv := pv.Elem()
	st := sv.Type()

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.holder(module, holder)
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.Name == "_" {
			continue
		}
		h.fields = append(h.fields, StaticField{
			Name:     sf.Name,
			Type:     sf.Type,
			Exported: sf.IsExported(),
			ptr:      sv.Field(i).Addr(),
		})
	}
	return nil
}

// Enum declares an enumerated-constant holder.
func (r *Registry) Enum(module, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holder(module, name).Enum = true
}

// Generic declares an uninstantiated generic holder.
func (r *Registry) Generic(module, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holder(module, name).Generic = true
}

// Types returns the holders matching filter, ordered by module then name.
// A filter that matches nothing while holders exist means the target module
// could not be located.
func (r *Registry) Types(filter Filter) ([]*StaticType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*StaticType, 0, len(r.order))
	for _, key := range r.order {
		h := r.holders[key]
		if filter != nil && !filter.Match(h.Module, h.Name) {
			continue
		}
		out = append(out, h)
	}
	if filter != nil && len(out) == 0 && len(r.order) > 0 {
		return nil, apperrors.Wrap(apperrors.CodeRootEnumeration,
			fmt.Sprintf("no static holders match filter %v", filter), nil)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Len returns the number of registered holders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}
