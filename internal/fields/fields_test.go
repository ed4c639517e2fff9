package fields

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/heap-dump/pkg/errors"
)

type base struct {
	ID   int64
	name string
}

type left struct {
	base
	L int
}

type right struct {
	base
	R int
}

type diamond struct {
	Top string
	left
	right
}

type entity struct {
	base
	Health  int32
	_       int64
	cache   []byte `heapdump:"-"`
	Owner   *entity
	private string
}

func names(ds []Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestFieldsOf_OwnThenEmbedded(t *testing.T) {
	e := NewReflectEnumerator()
	got := e.FieldsOf(reflect.TypeOf(entity{}))

	assert.Equal(t, []string{"Health", "Owner", "private", "ID", "name"}, names(got))
	assert.Equal(t, reflect.TypeOf(base{}), got[3].Owner)
	assert.True(t, got[0].Exported)
	assert.False(t, got[2].Exported)
}

func TestFieldsOf_LooksThroughPointers(t *testing.T) {
	e := NewReflectEnumerator()
	assert.Equal(t, names(e.FieldsOf(reflect.TypeOf(entity{}))), names(e.FieldsOf(reflect.TypeOf(&entity{}))))
}

func TestFieldsOf_DiamondEnumeratesEachCopy(t *testing.T) {
	e := NewReflectEnumerator()
	got := e.FieldsOf(reflect.TypeOf(diamond{}))

	assert.Equal(t, []string{
		"Top", "L", "left.base.ID", "left.base.name",
		"R", "right.base.ID", "right.base.name",
	}, names(got))

	d := diamond{}
	d.left.ID = 1
	d.right.ID = 2
	lv, err := got[2].Get(reflect.ValueOf(&d))
	require.NoError(t, err)
	rv, err := got[5].Get(reflect.ValueOf(&d))
	require.NoError(t, err)
	assert.Equal(t, int64(1), lv.Int())
	assert.Equal(t, int64(2), rv.Int())
	assert.Equal(t, reflect.TypeOf(base{}), got[5].Owner)
}

func TestFieldsOf_Cached(t *testing.T) {
	e := NewReflectEnumerator()
	a := e.FieldsOf(reflect.TypeOf(entity{}))
	b := e.FieldsOf(reflect.TypeOf(entity{}))
	require.NotEmpty(t, a)
	assert.Same(t, &a[0], &b[0])
}

func TestFieldsOf_NonStructPointee(t *testing.T) {
	e := NewReflectEnumerator()
	x := 42
	got := e.FieldsOf(reflect.TypeOf(&x))

	require.Len(t, got, 1)
	assert.Equal(t, PointeeField, got[0].Name)

	v, err := got[0].Get(reflect.ValueOf(&x))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())
}

func TestDescriptor_Get(t *testing.T) {
	e := NewReflectEnumerator()
	self := &entity{base: base{ID: 7, name: "hero"}, Health: 100, private: "secret"}
	self.Owner = self

	values := map[string]reflect.Value{}
	for _, d := range e.FieldsOf(reflect.TypeOf(self)) {
		v, err := d.Get(reflect.ValueOf(self))
		require.NoError(t, err, d.Name)
		values[d.Name] = v
	}

	assert.Equal(t, int64(100), values["Health"].Int())
	assert.Equal(t, "secret", values["private"].String())
	assert.Equal(t, "hero", values["name"].String())
	assert.Equal(t, int64(7), values["ID"].Int())
	assert.Equal(t, reflect.ValueOf(self).Pointer(), values["Owner"].Pointer())
}

func TestDescriptor_GetRecoversPanics(t *testing.T) {
	d := NewDescriptor("Broken", reflect.TypeOf(entity{}), reflect.TypeOf(0), func(reflect.Value) (reflect.Value, error) {
		panic("accessor exploded")
	})

	_, err := d.Get(reflect.ValueOf(&entity{}))
	require.Error(t, err)
	assert.True(t, apperrors.IsFieldAccessError(err))
	assert.Contains(t, err.Error(), "accessor exploded")
}

func TestDescriptor_GetPassesAccessorErrors(t *testing.T) {
	boom := errors.New("boom")
	d := NewDescriptor("lazy", reflect.TypeOf(entity{}), reflect.TypeOf(""), func(reflect.Value) (reflect.Value, error) {
		return reflect.Value{}, boom
	})

	_, err := d.Get(reflect.ValueOf(entity{}))
	assert.ErrorIs(t, err, boom)
	assert.False(t, d.Exported)
}
