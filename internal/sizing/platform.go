package sizing

import (
	"fmt"
	"reflect"
	"strconv"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Platform describes the memory model sizes are estimated for.
type Platform struct {
	PointerWidth      int64 `mapstructure:"pointer_width"`
	CharWidth         int64 `mapstructure:"char_width"`
	LengthPrefixWidth int64 `mapstructure:"length_prefix_width"`
}

// HostPlatform models the running Go process: machine-word pointers,
// one-byte characters and a word-sized string length.
func HostPlatform() Platform {
	word := int64(strconv.IntSize / 8)
	return Platform{
		PointerWidth:      word,
		CharWidth:         1,
		LengthPrefixWidth: word,
	}
}

// Validate checks the widths describe a usable platform.
func (p Platform) Validate() error {
	if p.PointerWidth != 4 && p.PointerWidth != 8 {
		return apperrors.Newf(apperrors.CodeConfigError, "pointer width must be 4 or 8, got %d", p.PointerWidth)
	}
	if p.CharWidth <= 0 {
		return apperrors.Newf(apperrors.CodeConfigError, "char width must be positive, got %d", p.CharWidth)
	}
	if p.LengthPrefixWidth < 0 {
		return apperrors.Newf(apperrors.CodeConfigError, "length prefix width must not be negative, got %d", p.LengthPrefixWidth)
	}
	return nil
}

// ScalarWidth returns the width of a scalar kind. Word-sized integers follow
// the platform pointer width.
func (p Platform) ScalarWidth(t reflect.Type) (int64, bool) {
	switch t.Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return p.PointerWidth, true
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return int64(t.Size()), true
	}
	return 0, false
}

// SlotSize is the cost charged at the owning site (field or element slot)
// for holding the value. Only references and empty references occupy a
// pointer slot; scalars and inline values are paid for by their payload.
func (p Platform) SlotSize(c Classification) int64 {
	if c.Kind == Absent || c.IsReference() {
		return p.PointerWidth
	}
	return 0
}

// PayloadSize is the value's own size, excluding the slot and excluding
// anything reached through its element references.
func (p Platform) PayloadSize(c Classification) int64 {
	switch c.Kind {
	case Primitive, Enumerated:
		return c.Width
	case Aggregate:
		return c.DeclaredSize
	case Text:
		return p.TextPayload(c.Length)
	case Sequence:
		width, _, _ := p.ElementSlot(c.Elem)
		return width * c.Length
	case Table:
		k, _, _ := p.ElementSlot(c.Key)
		v, _, _ := p.ElementSlot(c.Elem)
		return (k + v) * c.Length
	default:
		return 0
	}
}

// SizeOf is the shallow size of a classified value seen from a field:
// slot plus payload.
func (p Platform) SizeOf(c Classification) int64 {
	return p.SlotSize(c) + p.PayloadSize(c)
}

// TextPayload is the size of a string of n characters. Empty strings are
// not allocated.
func (p Platform) TextPayload(n int64) int64 {
	if n == 0 {
		return 0
	}
	return p.CharWidth*n + p.LengthPrefixWidth
}

// ElementSlot returns the per-element width of a sequence or table of t and
// whether each element refers to a separately sized value.
func (p Platform) ElementSlot(t reflect.Type) (width int64, ref bool, err error) {
	if t == nil {
		return 0, false, nil
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.String, reflect.Slice, reflect.Map:
		return p.PointerWidth, true, nil
	case reflect.Struct, reflect.Array:
		size, err := p.FixedLayoutSize(t)
		return size, false, err
	}
	if w, ok := p.ScalarWidth(t); ok {
		return w, false, nil
	}
	return 0, false, fmt.Errorf("unsupported element kind %s", t.Kind())
}

// FixedLayoutSize returns the size of a pointer-free value type laid out
// for p. Scalars take their ScalarWidth and are aligned to it, capped at the
// pointer width, so the host platform reproduces reflect's t.Size(). Types
// embedding references have no fixed layout.
func (p Platform) FixedLayoutSize(t reflect.Type) (int64, error) {
	if t == nil {
		return 0, apperrors.Wrap(apperrors.CodeLayout, "nil type", nil)
	}
	if HasPointers(t) {
		return 0, apperrors.Wrap(apperrors.CodeLayout,
			fmt.Sprintf("%s embeds references", TypeName(t)), nil)
	}
	size, _ := p.layout(t)
	return size, nil
}

// layout returns the size and alignment of t on p.
func (p Platform) layout(t reflect.Type) (size, align int64) {
	word := p.PointerWidth
	switch t.Kind() {
	case reflect.Array:
		size, align = p.layout(t.Elem())
		return size * int64(t.Len()), align
	case reflect.Struct:
		var off int64
		align = 1
		lastZero := false
		for i := 0; i < t.NumField(); i++ {
			fs, fa := p.layout(t.Field(i).Type)
			off = alignUp(off, fa) + fs
			if fa > align {
				align = fa
			}
			lastZero = fs == 0
		}
		// a trailing zero-size field must not point past the value
		if lastZero && off > 0 {
			off++
		}
		return alignUp(off, align), align
	case reflect.String, reflect.Interface:
		return 2 * word, word
	case reflect.Slice:
		return 3 * word, word
	case reflect.Ptr, reflect.Map:
		return word, word
	}

	size, _ = p.ScalarWidth(t)
	align = size
	if k := t.Kind(); k == reflect.Complex64 || k == reflect.Complex128 {
		align = size / 2
	}
	if align > word {
		align = word
	}
	if align < 1 {
		align = 1
	}
	return size, align
}

func alignUp(n, a int64) int64 {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
