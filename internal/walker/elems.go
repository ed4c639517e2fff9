package walker

import (
	"reflect"
	"sort"
)

// eachElem calls fn for every innermost element of a sequence of the given
// rank in row-major order, looking through nested fixed-size arrays.
func eachElem(v reflect.Value, rank int, fn func(reflect.Value) error) error {
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		if rank > 1 {
			if err := eachElem(e, rank-1, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeys returns the keys of m ordered by their rendered form, so map
// entries come out the same way on every run.
func sortedKeys(m reflect.Value, render func(reflect.Value) string) []reflect.Value {
	keys := m.MapKeys()
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = render(k)
	}
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return labels[idx[a]] < labels[idx[b]] })

	out := make([]reflect.Value, len(keys))
	for i, j := range idx {
		out[i] = keys[j]
	}
	return out
}
