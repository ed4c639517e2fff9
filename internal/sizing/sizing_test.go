package sizing

import (
	"reflect"
	"testing"
	"time"
	"unsafe"

	apperrors "github.com/heap-dump/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color uint8

type vec3 struct {
	X, Y, Z float32
}

type tagged struct {
	ID   int32
	Name string
}

type node struct {
	next *node
}

var platform64 = Platform{PointerWidth: 8, CharWidth: 1, LengthPrefixWidth: 8}

func classify(v interface{}) Classification {
	rv := reflect.ValueOf(v)
	var declared reflect.Type
	if rv.IsValid() {
		declared = rv.Type()
	}
	return platform64.Classify(rv, declared)
}

func TestClassify_Kinds(t *testing.T) {
	var nilNode *node
	var nilSlice []int
	var nilMap map[string]int
	var fn func()

	tests := []struct {
		name  string
		value interface{}
		kind  Kind
		width int64
	}{
		{"nil interface", nil, Absent, 0},
		{"nil pointer", nilNode, Absent, 0},
		{"nil slice", nilSlice, Absent, 0},
		{"nil map", nilMap, Absent, 0},
		{"nil func", fn, Absent, 0},
		{"bool", true, Primitive, 1},
		{"int32", int32(7), Primitive, 4},
		{"int", 7, Primitive, 8},
		{"float64", 1.5, Primitive, 8},
		{"complex128", complex(1, 2), Primitive, 16},
		{"named uint8", color(3), Enumerated, 1},
		{"duration", time.Second, Enumerated, 8},
		{"func", func() {}, Primitive, 8},
		{"chan", make(chan int), Primitive, 8},
		{"unsafe pointer", unsafe.Pointer(&fn), Primitive, 8},
		{"struct", vec3{}, Aggregate, 0},
		{"string", "hello", Text, 0},
		{"slice", []int32{1, 2}, Sequence, 0},
		{"array", [2]int32{}, Sequence, 0},
		{"map", map[string]int{"a": 1}, Table, 0},
		{"pointer", &node{}, Instance, 0},
		{"pointer to scalar", new(int), Instance, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.value)
			assert.Equal(t, tt.kind, c.Kind)
			if tt.width > 0 {
				assert.Equal(t, tt.width, c.Width)
			}
		})
	}
}

func TestClassify_UnwrapsInterfaces(t *testing.T) {
	holder := struct{ V interface{} }{V: "abc"}
	field := reflect.ValueOf(holder).Field(0)

	c := platform64.Classify(field, field.Type())
	assert.Equal(t, Text, c.Kind)
	assert.Equal(t, int64(3), c.Length)
	assert.Equal(t, reflect.String, c.Type.Kind())
}

func TestClassify_Aggregate(t *testing.T) {
	c := classify(vec3{})
	require.NoError(t, c.Err)
	assert.Equal(t, int64(12), c.DeclaredSize)

	c = classify(tagged{})
	assert.Equal(t, Aggregate, c.Kind)
	assert.Equal(t, int64(0), c.DeclaredSize)
	assert.False(t, apperrors.IsFatal(c.Err))
	assert.ErrorIs(t, c.Err, apperrors.ErrLayout)
}

func TestClassify_Sequences(t *testing.T) {
	t.Run("rank two through pointer", func(t *testing.T) {
		grid := &[3][4]int32{}
		c := classify(grid)

		assert.Equal(t, Sequence, c.Kind)
		assert.False(t, c.Inline)
		assert.Equal(t, 2, c.Rank)
		assert.Equal(t, []int{3, 4}, c.Dims)
		assert.Equal(t, int64(12), c.Length)
		assert.Equal(t, reflect.Int32, c.Elem.Kind())
	})

	t.Run("slice of arrays", func(t *testing.T) {
		c := classify(make([][4]int32, 3))
		assert.Equal(t, 2, c.Rank)
		assert.Equal(t, int64(12), c.Length)
	})

	t.Run("inline array", func(t *testing.T) {
		c := classify([5]byte{})
		assert.True(t, c.Inline)
		assert.False(t, c.IsReference())
		assert.Equal(t, int64(5), c.Length)
	})

	t.Run("empty slice", func(t *testing.T) {
		c := classify([]int{})
		assert.Equal(t, Sequence, c.Kind)
		assert.Equal(t, int64(0), c.Length)
	})
}

func TestIsReference(t *testing.T) {
	assert.True(t, classify("s").IsReference())
	assert.True(t, classify(&node{}).IsReference())
	assert.True(t, classify([]int{1}).IsReference())
	assert.True(t, classify(map[int]int{}).IsReference())
	assert.False(t, classify(1).IsReference())
	assert.False(t, classify(vec3{}).IsReference())
	assert.False(t, classify(nil).IsReference())
}

func TestFlattenedLength(t *testing.T) {
	assert.Equal(t, int64(0), FlattenedLength(nil))
	assert.Equal(t, int64(7), FlattenedLength([]int{7}))
	assert.Equal(t, int64(24), FlattenedLength([]int{2, 3, 4}))
	assert.Equal(t, int64(0), FlattenedLength([]int{3, 0}))
}

func TestHasPointers(t *testing.T) {
	assert.False(t, HasPointers(reflect.TypeOf(vec3{})))
	assert.False(t, HasPointers(reflect.TypeOf([4]int{})))
	assert.False(t, HasPointers(reflect.TypeOf([0]*int{})))
	assert.True(t, HasPointers(reflect.TypeOf(tagged{})))
	assert.True(t, HasPointers(reflect.TypeOf(time.Time{})))
	assert.True(t, HasPointers(reflect.TypeOf([2]string{})))
}

func TestPlatform_Sizes(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		slot    int64
		payload int64
	}{
		{"primitive", int16(1), 0, 2},
		{"enumerated", color(1), 0, 1},
		{"aggregate", vec3{}, 0, 12},
		{"failed aggregate", tagged{}, 0, 0},
		{"string", "hello", 8, 5 + 8},
		{"empty string", "", 8, 0},
		{"scalar slice", []int64{1, 2, 3}, 8, 24},
		{"reference slice", []*node{nil, nil}, 8, 16},
		{"rank two", &[3][4]int32{}, 8, 48},
		{"inline array", [3]int16{}, 0, 6},
		{"map", map[int32]string{1: "a", 2: "b"}, 8, 2 * (4 + 8)},
		{"instance", &node{}, 8, 0},
		{"absent", nil, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.value)
			assert.Equal(t, tt.slot, platform64.SlotSize(c), "slot")
			assert.Equal(t, tt.payload, platform64.PayloadSize(c), "payload")
			assert.Equal(t, tt.slot+tt.payload, platform64.SizeOf(c))
		})
	}
}

func TestPlatform_WideChars(t *testing.T) {
	p := Platform{PointerWidth: 4, CharWidth: 2, LengthPrefixWidth: 4}
	assert.Equal(t, int64(2*5+4), p.TextPayload(5))
	assert.Equal(t, int64(0), p.TextPayload(0))

	c := p.Classify(reflect.ValueOf(int(1)), nil)
	assert.Equal(t, int64(4), c.Width)
}

func TestPlatform_ElementSlot(t *testing.T) {
	w, ref, err := platform64.ElementSlot(reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, int64(8), w)
	assert.True(t, ref)

	w, ref, err = platform64.ElementSlot(reflect.TypeOf(vec3{}))
	require.NoError(t, err)
	assert.Equal(t, int64(12), w)
	assert.False(t, ref)

	_, _, err = platform64.ElementSlot(reflect.TypeOf(tagged{}))
	assert.Error(t, err)
}

type counters struct {
	Hits  int
	Flags int32
}

type mixed struct {
	A int8
	B int64
	C int16
	D complex64
}

type trailing struct {
	N   int32
	End struct{}
}

func TestFixedLayoutSize_HostMatchesReflect(t *testing.T) {
	host := HostPlatform()
	for _, v := range []interface{}{vec3{}, counters{}, mixed{}, trailing{}, [3]counters{}, [0]*int{}, struct{}{}} {
		typ := reflect.TypeOf(v)
		got, err := host.FixedLayoutSize(typ)
		require.NoError(t, err, typ.String())
		assert.Equal(t, int64(typ.Size()), got, typ.String())
	}
}

func TestFixedLayoutSize_FollowsPlatform(t *testing.T) {
	p32 := Platform{PointerWidth: 4, CharWidth: 1, LengthPrefixWidth: 4}
	tests := []struct {
		name string
		typ  reflect.Type
		p64  int64
		p32  int64
	}{
		{"word int", reflect.TypeOf(counters{}), 16, 8},
		{"int64 aligned to word", reflect.TypeOf(mixed{}), 32, 24},
		{"array of structs", reflect.TypeOf([2]counters{}), 32, 16},
		{"trailing zero-size field", reflect.TypeOf(trailing{}), 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := platform64.FixedLayoutSize(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.p64, got)

			got, err = p32.FixedLayoutSize(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.p32, got)
		})
	}

	c := p32.Classify(reflect.ValueOf(counters{}), nil)
	assert.Equal(t, int64(8), p32.PayloadSize(c))

	_, err := p32.FixedLayoutSize(reflect.TypeOf(tagged{}))
	assert.Error(t, err)
}

func TestPlatform_Validate(t *testing.T) {
	require.NoError(t, HostPlatform().Validate())
	require.NoError(t, platform64.Validate())

	assert.Error(t, Platform{PointerWidth: 3, CharWidth: 1}.Validate())
	assert.Error(t, Platform{PointerWidth: 8, CharWidth: 0}.Validate())
	assert.Error(t, Platform{PointerWidth: 8, CharWidth: 1, LengthPrefixWidth: -1}.Validate())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "-null-", TypeName(nil))
	assert.Equal(t, "*sizing.node", TypeName(reflect.TypeOf(&node{})))
	assert.Equal(t, "[]int", TypeName(reflect.TypeOf([]int{})))
}
