// Package fields enumerates the instance fields of Go types for the walker.
package fields

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	apperrors "github.com/heap-dump/pkg/errors"
)

// TagName is the struct tag consulted for exclusions: `heapdump:"-"`.
const TagName = "heapdump"

// PointeeField names the pseudo-field of a pointer to a non-struct value.
const PointeeField = "*"

// Accessor reads a field from its owner value.
type Accessor func(owner reflect.Value) (reflect.Value, error)

// Descriptor describes one field.
type Descriptor struct {
	Name string
	// Owner is the struct type that declares the field; promoted fields keep
	// the embedded type as their owner.
	Owner    reflect.Type
	Type     reflect.Type
	Index    []int
	Exported bool

	get Accessor
}

// NewDescriptor builds a descriptor around a custom accessor.
func NewDescriptor(name string, owner, typ reflect.Type, get Accessor) Descriptor {
	return Descriptor{Name: name, Owner: owner, Type: typ, Exported: isExported(name), get: get}
}

// Get reads the field from owner. Reflection panics come back as field
// access errors.
func (d Descriptor) Get(owner reflect.Value) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Wrap(apperrors.CodeFieldAccess,
				fmt.Sprintf("read %s.%s", typeName(d.Owner), d.Name), fmt.Errorf("%v", r))
		}
	}()
	if d.get != nil {
		return d.get(owner)
	}
	for owner.Kind() == reflect.Ptr || owner.Kind() == reflect.Interface {
		owner = owner.Elem()
	}
	v, err = owner.FieldByIndexErr(d.Index)
	if err != nil {
		return reflect.Value{}, apperrors.Wrap(apperrors.CodeFieldAccess,
			fmt.Sprintf("read %s.%s", typeName(d.Owner), d.Name), err)
	}
	return v, nil
}

// Enumerator lists the instance fields of a type.
type Enumerator interface {
	FieldsOf(t reflect.Type) []Descriptor
}

// ReflectEnumerator enumerates fields with package reflect and caches the
// result per type. It is safe for concurrent use.
type ReflectEnumerator struct {
	mu    sync.RWMutex
	cache map[reflect.Type][]Descriptor
}

// NewReflectEnumerator creates an empty enumerator.
func NewReflectEnumerator() *ReflectEnumerator {
	return &ReflectEnumerator{cache: make(map[reflect.Type][]Descriptor)}
}

// FieldsOf returns t's own fields in declaration order followed by the
// fields promoted from embedded structs, depth first. One pointer level is
// looked through. A non-struct type yields the single pseudo-field "*".
//
// Every embedded struct is its own storage, so a type embedded twice is
// enumerated twice. Names that occur more than once are qualified with
// their embedding path, as in "left.base.ID".
func (e *ReflectEnumerator) FieldsOf(t reflect.Type) []Descriptor {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	e.mu.RLock()
	cached, ok := e.cache[t]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	var out []Descriptor
	if t.Kind() == reflect.Struct {
		out = qualify(collect(t, nil, nil, nil))
	} else {
		out = []Descriptor{pointee(t)}
	}

	e.mu.Lock()
	e.cache[t] = out
	e.mu.Unlock()
	return out
}

// promoted is a collected field with the names of the embedded structs it
// was reached through.
type promoted struct {
	Descriptor
	via []string
}

func collect(t reflect.Type, prefix []int, via []string, out []promoted) []promoted {
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if skip(sf) {
			continue
		}
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			embedded = append(embedded, sf)
			continue
		}
		out = append(out, promoted{
			Descriptor: Descriptor{
				Name:     sf.Name,
				Owner:    t,
				Type:     sf.Type,
				Index:    append(append([]int(nil), prefix...), sf.Index...),
				Exported: sf.IsExported(),
			},
			via: via,
		})
	}

	for _, sf := range embedded {
		out = collect(sf.Type,
			append(append([]int(nil), prefix...), sf.Index...),
			append(append([]string(nil), via...), sf.Name),
			out)
	}
	return out
}

// qualify prefixes ambiguous names with their embedding path.
func qualify(fields []promoted) []Descriptor {
	seen := mapset.NewThreadUnsafeSet[string]()
	ambiguous := mapset.NewThreadUnsafeSet[string]()
	for _, f := range fields {
		if !seen.Add(f.Name) {
			ambiguous.Add(f.Name)
		}
	}

	out := make([]Descriptor, 0, len(fields))
	for _, f := range fields {
		d := f.Descriptor
		if ambiguous.Contains(d.Name) && len(f.via) > 0 {
			d.Name = strings.Join(f.via, ".") + "." + d.Name
		}
		out = append(out, d)
	}
	return out
}

func skip(sf reflect.StructField) bool {
	return sf.Name == "_" || sf.Tag.Get(TagName) == "-"
}

func pointee(t reflect.Type) Descriptor {
	return Descriptor{
		Name:     PointeeField,
		Owner:    t,
		Type:     t,
		Exported: true,
		get: func(owner reflect.Value) (reflect.Value, error) {
			if owner.Kind() == reflect.Ptr {
				owner = owner.Elem()
			}
			return owner, nil
		},
	}
}

func isExported(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}
