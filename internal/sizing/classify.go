// Package sizing classifies Go values by storage kind and estimates their
// byte sizes for a configurable platform model.
package sizing

import (
	"reflect"
	"sync"
)

// Kind is the storage kind of a value.
type Kind int

const (
	Absent Kind = iota
	Primitive
	Enumerated
	Aggregate
	Text
	Sequence
	Table
	Instance
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Primitive:
		return "primitive"
	case Enumerated:
		return "enumerated"
	case Aggregate:
		return "aggregate"
	case Text:
		return "text"
	case Sequence:
		return "sequence"
	case Table:
		return "table"
	case Instance:
		return "instance"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying one value.
type Classification struct {
	Kind Kind

	// Width is the scalar width of a Primitive or Enumerated value.
	Width int64
	// DeclaredSize is the fixed layout size of an Aggregate, 0 when Err is set.
	DeclaredSize int64
	// Length is the string length, the flattened sequence length or the
	// number of table entries.
	Length int64
	Rank   int
	Dims   []int
	// Elem is the innermost element type of a Sequence or the value type of
	// a Table.
	Elem reflect.Type
	// Key is the key type of a Table.
	Key reflect.Type
	// Inline marks array values stored in place (no slot, no identity).
	Inline bool

	// Type is the runtime type after interface unwrapping.
	Type reflect.Type
	// Value is the classified value after interface unwrapping.
	Value reflect.Value
	// Err records a layout failure for an Aggregate.
	Err error
}

// IsReference reports whether the value lives behind a pointer slot.
func (c Classification) IsReference() bool {
	switch c.Kind {
	case Text, Table, Instance:
		return true
	case Sequence:
		return !c.Inline
	default:
		return false
	}
}

// Classify determines the storage kind of v. declared is the static type of
// the slot holding v and may be nil.
func (p Platform) Classify(v reflect.Value, declared reflect.Type) Classification {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return Classification{Kind: Absent, Type: declared}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return Classification{Kind: Absent, Type: declared}
	}

	t := v.Type()
	c := Classification{Type: t, Value: v}

	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			c.Kind = Absent
			return c
		}
	}

	switch t.Kind() {
	case reflect.Bool, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		c.Kind = Primitive
		c.Width, _ = p.ScalarWidth(t)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		c.Kind = Primitive
		if IsEnumerated(t) {
			c.Kind = Enumerated
		}
		c.Width, _ = p.ScalarWidth(t)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		c.Kind = Primitive
		c.Width = p.PointerWidth
	case reflect.Struct:
		c.Kind = Aggregate
		c.DeclaredSize, c.Err = p.FixedLayoutSize(t)
	case reflect.String:
		c.Kind = Text
		c.Length = int64(v.Len())
	case reflect.Array:
		c.Kind = Sequence
		c.Inline = true
		c.setDims(t, v.Len())
	case reflect.Slice:
		c.Kind = Sequence
		c.setDims(t, v.Len())
	case reflect.Map:
		c.Kind = Table
		c.Key = t.Key()
		c.Elem = t.Elem()
		c.Length = int64(v.Len())
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Array {
			c.Kind = Sequence
			c.setDims(t.Elem(), t.Elem().Len())
			break
		}
		c.Kind = Instance
	default:
		c.Kind = Instance
	}
	return c
}

func (c *Classification) setDims(t reflect.Type, outer int) {
	c.Dims = []int{outer}
	elem := t.Elem()
	for elem.Kind() == reflect.Array {
		c.Dims = append(c.Dims, elem.Len())
		elem = elem.Elem()
	}
	c.Rank = len(c.Dims)
	c.Elem = elem
	c.Length = FlattenedLength(c.Dims)
}

// FlattenedLength is the product of all dimension extents.
func FlattenedLength(dims []int) int64 {
	if len(dims) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range dims {
		n *= int64(d)
	}
	return n
}

// IsEnumerated reports whether t is a named integer type declared in a
// package, the Go rendition of an enumeration.
func IsEnumerated(t reflect.Type) bool {
	if t.Name() == "" || t.PkgPath() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

var pointerFree sync.Map // reflect.Type -> bool

// HasPointers reports whether values of t embed any reference.
func HasPointers(t reflect.Type) bool {
	if cached, ok := pointerFree.Load(t); ok {
		return !cached.(bool)
	}
	has := hasPointers(t, map[reflect.Type]bool{})
	pointerFree.Store(t, !has)
	return has
}

func hasPointers(t reflect.Type, seen map[reflect.Type]bool) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.String, reflect.Slice, reflect.Map, reflect.Interface,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem(), seen)
	case reflect.Struct:
		if seen[t] {
			return false
		}
		seen[t] = true
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type, seen) {
				return true
			}
		}
	}
	return false
}

// TypeName formats a type for the report.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "-null-"
	}
	return t.String()
}
