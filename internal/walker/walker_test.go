package walker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heap-dump/internal/fields"
	"github.com/heap-dump/internal/registry"
	"github.com/heap-dump/internal/report"
	"github.com/heap-dump/internal/sizing"
	"github.com/heap-dump/internal/testutil"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/roots"
	"github.com/heap-dump/pkg/utils"

	apperrors "github.com/heap-dump/pkg/errors"
)

var strategies = []model.Strategy{model.StrategyQueued, model.StrategyEager}

func testOptions(strategy model.Strategy) Options {
	opts := DefaultOptions()
	opts.Strategy = strategy
	opts.Platform = sizing.Platform{PointerWidth: 8, CharWidth: 1, LengthPrefixWidth: 8}
	return opts
}

func walk(t *testing.T, opts Options, statics roots.StaticSource, scene roots.Scene) *Result {
	t.Helper()
	res, err := New(opts, nil, nil).Walk(context.Background(), statics, scene)
	require.NoError(t, err)
	require.NoError(t, report.Verify(res.Root))
	return res
}

// valueOf returns the single value node a field wraps.
func valueOf(t *testing.T, field *model.ReportNode) *model.ReportNode {
	t.Helper()
	require.Equal(t, model.KindField, field.Kind)
	require.Len(t, field.Children, 1)
	return field.Children[0]
}

func TestNew_Defaults(t *testing.T) {
	w := New(Options{}, nil, nil)
	assert.Equal(t, model.StrategyQueued, w.Options().Strategy)
	assert.Equal(t, sizing.HostPlatform(), w.Options().Platform)
	assert.Equal(t, roots.AccessAll, w.Options().Access)
}

func TestWalk_SharedObjectCountedOnce(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			pair := testutil.SharedPair()
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "pair", &pair), nil)

			field := testutil.MustPath(t, res.Root, GroupStatics, "World", "pair")
			obj := valueOf(t, field)
			assert.Equal(t, model.KindInstance, obj.Kind)
			assert.Equal(t, "*testutil.Pair", obj.Type)

			a := valueOf(t, testutil.MustPath(t, obj, "A"))
			b := valueOf(t, testutil.MustPath(t, obj, "B"))
			assert.Equal(t, model.KindInstance, a.Kind)
			assert.Equal(t, int64(32), a.Size)
			assert.Equal(t, model.KindCycleRef, b.Kind)
			assert.Equal(t, a.Size, b.Size)
			assert.Equal(t, int64(0), b.Contribution())

			assert.Equal(t, int64(48), obj.Size)
			assert.Equal(t, int64(56), field.Size)
			assert.Equal(t, int64(56), res.Stats.TotalSize)
			assert.Equal(t, 2, res.Stats.Identities)
			assert.Equal(t, 1, res.Stats.CycleRefs)
		})
	}
}

func TestWalk_SelfReference(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			loop := testutil.SelfLoop()
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "loop", &loop), nil)

			obj := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "loop"))
			next := testutil.MustPath(t, obj, "Next")
			ref := valueOf(t, next)
			assert.Equal(t, model.KindCycleRef, ref.Kind)
			assert.Same(t, obj, ref.Target())
			assert.Equal(t, int64(0), ref.Size)

			assert.Equal(t, int64(8), next.Size)
			assert.Equal(t, int64(16), obj.Size)
			assert.Equal(t, int64(24), res.Stats.TotalSize)

			// equal sizes keep field order
			assert.Equal(t, "Next", obj.Children[0].Name)
			assert.Equal(t, "Value", obj.Children[1].Name)
		})
	}
}

func TestWalk_RingSettlesInBothStrategies(t *testing.T) {
	totals := map[model.Strategy]int64{}
	for _, s := range strategies {
		ring := testutil.Ring(3)
		res := walk(t, testOptions(s), testutil.Statics(t, "World", "ring", &ring), nil)
		totals[s] = res.Stats.TotalSize
		assert.Equal(t, 3, res.Stats.Identities)
		assert.Equal(t, 1, testutil.CountKind(res.Root, model.KindCycleRef))
		assert.Equal(t, 0, res.Registry.Unsettled())
	}
	assert.Equal(t, int64(56), totals[model.StrategyQueued])
	assert.Equal(t, totals[model.StrategyQueued], totals[model.StrategyEager])
}

func TestWalk_ClosingRefIsZero(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			ring := testutil.Ring(2)
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "ring", &ring), nil)

			head := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "ring"))
			next := valueOf(t, testutil.MustPath(t, head, "Next"))
			ref := testutil.MustPath(t, next, "Next").Children[0]
			require.Equal(t, model.KindCycleRef, ref.Kind)
			assert.Same(t, head, ref.Target())
			assert.Equal(t, int64(0), ref.Size)
			assert.Equal(t, int64(40), res.Stats.TotalSize)
		})
	}
}

func TestWalk_RefToSharedTargetWithPendingChildren(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			shared := &testutil.Link{Value: 1, Next: &testutil.Link{Value: 2}}
			a, b := shared, shared
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "a", &a, "b", &b), nil)

			first := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "a"))
			ref := testutil.MustPath(t, res.Root, GroupStatics, "World", "b").Children[0]
			require.Equal(t, model.KindCycleRef, ref.Kind)
			assert.Same(t, first, ref.Target())
			assert.Equal(t, int64(32), first.Size)
			assert.Equal(t, first.Size, ref.Size)
			assert.Equal(t, 2, res.Stats.Identities)
		})
	}
}

func TestWalk_RankTwoSequence(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			grid := testutil.NewGrid()
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "grid", &grid), nil)

			obj := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "grid"))
			cells := testutil.MustPath(t, obj, "Cells")
			arr := valueOf(t, cells)

			assert.Equal(t, model.KindArray, arr.Kind)
			assert.Equal(t, int64(12), arr.Length)
			assert.Equal(t, 2, arr.Rank)
			assert.Equal(t, int64(48), arr.Size)
			assert.Equal(t, int64(8), cells.Overhead)
			assert.Equal(t, int64(56), cells.Size)
		})
	}
}

func TestWalk_IgnoredHolders(t *testing.T) {
	reg := roots.NewRegistry()
	reg.Generic(testutil.Module, "Box[T]")
	reg.Enum(testutil.Module, "Color")
	v := int64(3)
	require.NoError(t, reg.Var(testutil.Module, "World", "count", &v))

	res := walk(t, testOptions(model.StrategyQueued), reg, nil)

	box := testutil.MustPath(t, res.Root, GroupStatics, "Box[T]")
	require.Len(t, box.Children, 1)
	assert.Equal(t, model.KindIgnored, box.Children[0].Kind)
	assert.Equal(t, model.ReasonGeneric, box.Children[0].Reason)
	assert.Equal(t, int64(0), box.Size)

	color := testutil.MustPath(t, res.Root, GroupStatics, "Color")
	assert.Equal(t, model.ReasonEnum, color.Children[0].Reason)

	assert.Equal(t, int64(8), res.Stats.TotalSize)
	assert.Equal(t, 2, res.Stats.Ignored)
	assert.Equal(t, 1, res.Stats.StaticTypes)

	opts := testOptions(model.StrategyQueued)
	opts.SkipEmptyTypes = true
	res = walk(t, opts, reg, nil)
	statics := testutil.MustPath(t, res.Root, GroupStatics)
	require.Len(t, statics.Children, 1)
	assert.Equal(t, "World", statics.Children[0].Name)
}

func TestWalk_StringIdentity(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			equal := testutil.EqualTexts("hello")
			same := testutil.SameText("world")
			res := walk(t, testOptions(s), testutil.Statics(t, "Texts", "equal", &equal, "same", &same), nil)

			eq := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "Texts", "equal"))
			first := valueOf(t, testutil.MustPath(t, eq, "First"))
			second := valueOf(t, testutil.MustPath(t, eq, "Second"))
			assert.Equal(t, model.KindString, first.Kind)
			assert.Equal(t, model.KindString, second.Kind)
			assert.Equal(t, int64(13), first.Size)
			assert.Equal(t, int64(5), first.Length)
			assert.Equal(t, int64(42), eq.Size)

			sm := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "Texts", "same"))
			ref := valueOf(t, testutil.MustPath(t, sm, "Second"))
			assert.Equal(t, model.KindCycleRef, ref.Kind)
			assert.Equal(t, int64(13), ref.Size)
			assert.Equal(t, int64(29), sm.Size)

			assert.Equal(t, int64(87), res.Stats.TotalSize)
			assert.Equal(t, 5, res.Stats.Identities)

			// sorted largest first
			holder := testutil.MustPath(t, res.Root, GroupStatics, "Texts")
			assert.Equal(t, "equal", holder.Children[0].Name)
		})
	}
}

func TestWalk_EmptyAndNilValues(t *testing.T) {
	var (
		empty  = ""
		nilPtr *testutil.Link
		nilMap map[string]int
		none   []int
	)
	res := walk(t, testOptions(model.StrategyQueued),
		testutil.Statics(t, "World", "empty", &empty, "ptr", &nilPtr, "map", &nilMap, "slice", &none), nil)

	holder := testutil.MustPath(t, res.Root, GroupStatics, "World")
	for _, name := range []string{"ptr", "map", "slice"} {
		f := testutil.MustPath(t, holder, name)
		assert.Equal(t, int64(8), f.Size, name)
		assert.Equal(t, "-null-", f.RuntimeType, name)
		assert.Equal(t, model.KindNull, valueOf(t, f).Kind, name)
	}
	str := testutil.MustPath(t, holder, "empty")
	assert.Equal(t, int64(8), str.Size)
	assert.Equal(t, 0, res.Stats.Identities)
}

func TestWalk_Maps(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			shared := &testutil.Shared{}
			index := map[string]*testutil.Shared{"b": shared, "a": shared}
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "index", &index), nil)

			field := testutil.MustPath(t, res.Root, GroupStatics, "World", "index")
			m := valueOf(t, field)
			assert.Equal(t, model.KindMap, m.Kind)
			assert.Equal(t, int64(2), m.Length)
			assert.Equal(t, int64(32), m.Overhead)
			assert.Equal(t, int64(82), m.Size)
			assert.Equal(t, int64(90), field.Size)

			a := testutil.MustPath(t, m, "[a]")
			b := testutil.MustPath(t, m, "[b]")
			assert.Equal(t, model.KindInstance, a.Kind)
			assert.Equal(t, model.KindCycleRef, b.Kind)
			assert.Equal(t, int64(9), testutil.MustPath(t, m, "key[a]").Size)
			assert.Equal(t, 4, res.Stats.Identities)
		})
	}
}

func TestWalk_ScalarMapHasNoChildren(t *testing.T) {
	counts := map[int32]int64{1: 10, 2: 20, 3: 30}
	res := walk(t, testOptions(model.StrategyQueued), testutil.Statics(t, "World", "counts", &counts), nil)

	m := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "counts"))
	assert.Empty(t, m.Children)
	assert.Equal(t, int64(36), m.Size)
}

func TestWalk_PointerArrayElements(t *testing.T) {
	shared := &testutil.Shared{}
	list := []*testutil.Shared{shared, nil, shared, {}}
	res := walk(t, testOptions(model.StrategyQueued), testutil.Statics(t, "World", "list", &list), nil)

	arr := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "list"))
	assert.Equal(t, int64(32), arr.Overhead)
	assert.Equal(t, int64(32+32+32), arr.Size)
	require.Len(t, arr.Children, 3)
	assert.Nil(t, arr.Find("[1]"))
	assert.Equal(t, model.KindCycleRef, arr.Find("[2]").Kind)
}

type tagged struct {
	Name string
	N    int
}

type payload struct{ V int64 }

type leaf struct{ P *payload }

type leftHalf struct{ leaf }

type rightHalf struct{ leaf }

type twoLeaves struct {
	leftHalf
	rightHalf
}

func TestWalk_EmbeddedTwice(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			d := &twoLeaves{}
			d.leftHalf.P = &payload{V: 1}
			d.rightHalf.P = &payload{V: 2}
			res := walk(t, testOptions(s), testutil.Statics(t, "World", "d", &d), nil)

			obj := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "d"))
			left := valueOf(t, testutil.MustPath(t, obj, "leftHalf.leaf.P"))
			right := valueOf(t, testutil.MustPath(t, obj, "rightHalf.leaf.P"))
			assert.Equal(t, model.KindInstance, left.Kind)
			assert.Equal(t, model.KindInstance, right.Kind)
			assert.Equal(t, 3, res.Stats.Identities)
			assert.Equal(t, int64(40), res.Stats.TotalSize)
		})
	}
}

func TestWalk_StructWithReferences(t *testing.T) {
	first := tagged{Name: "abc", N: 1}
	second := tagged{Name: "abc", N: 2}
	statics := testutil.Statics(t, "World", "first", &first, "second", &second)

	t.Run("sized as zero", func(t *testing.T) {
		logger := utils.NewRecordingLogger()
		res, err := New(testOptions(model.StrategyQueued), nil, logger).Walk(context.Background(), statics, nil)
		require.NoError(t, err)

		s := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "first"))
		assert.Equal(t, model.KindStruct, s.Kind)
		assert.Equal(t, int64(0), s.Size)
		assert.Equal(t, int64(0), res.Stats.TotalSize)

		assert.Equal(t, 2, res.Stats.Warnings)
		require.Len(t, res.Diagnostics, 2)
		assert.Equal(t, apperrors.CodeLayout, res.Diagnostics[0].Code)
		assert.Len(t, logger.Entries(utils.LevelWarn), 1)
	})

	t.Run("inline", func(t *testing.T) {
		opts := testOptions(model.StrategyQueued)
		opts.InlineStructs = true
		res := walk(t, opts, testutil.Statics(t, "World", "first", &first), nil)

		s := valueOf(t, testutil.MustPath(t, res.Root, GroupStatics, "World", "first"))
		assert.Equal(t, int64(8+11), testutil.MustPath(t, s, "Name").Size)
		assert.Equal(t, int64(8), testutil.MustPath(t, s, "N").Size)
		assert.Equal(t, int64(27), s.Size)
		assert.Zero(t, res.Stats.Warnings)
	})
}

func TestWalk_ValuesAreRendered(t *testing.T) {
	type level uint8
	lvl := level(3)
	pi := 3.5
	long := int64(1234567890)

	opts := testOptions(model.StrategyQueued)
	opts.MaxValueLen = 4
	res := walk(t, opts, testutil.Statics(t, "World", "level", &lvl, "pi", &pi, "long", &long), nil)

	holder := testutil.MustPath(t, res.Root, GroupStatics, "World")
	lv := valueOf(t, testutil.MustPath(t, holder, "level"))
	assert.Equal(t, model.KindValue, lv.Kind)
	assert.Equal(t, "3", lv.Value)
	assert.Equal(t, int64(1), lv.Size)
	assert.Equal(t, "3.5", valueOf(t, testutil.MustPath(t, holder, "pi")).Value)
	assert.Equal(t, "1234...", valueOf(t, testutil.MustPath(t, holder, "long")).Value)
}

// brokenEnumerator adds an unreadable field to one type.
type brokenEnumerator struct {
	fields.Enumerator
	on reflect.Type
}

func (e brokenEnumerator) FieldsOf(t reflect.Type) []fields.Descriptor {
	out := append([]fields.Descriptor(nil), e.Enumerator.FieldsOf(t)...)
	if t == e.on {
		out = append(out, fields.NewDescriptor("broken", t.Elem(), reflect.TypeOf(int64(0)),
			func(reflect.Value) (reflect.Value, error) {
				return reflect.Value{}, errors.New("unreadable")
			}))
	}
	return out
}

func TestWalk_FieldAccessFailure(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			loop := testutil.SelfLoop()
			logger := utils.NewRecordingLogger()
			enum := brokenEnumerator{Enumerator: fields.NewReflectEnumerator(), on: reflect.TypeOf(loop)}

			res, err := New(testOptions(s), enum, logger).
				Walk(context.Background(), testutil.Statics(t, "World", "loop", &loop), nil)
			require.NoError(t, err)
			require.NoError(t, report.Verify(res.Root))

			assert.Equal(t, int64(24), res.Stats.TotalSize)
			assert.Equal(t, 1, res.Stats.Warnings)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, apperrors.CodeFieldAccess, res.Diagnostics[0].Code)
			assert.Equal(t, "int64", res.Diagnostics[0].Type)
			assert.True(t, strings.HasSuffix(res.Diagnostics[0].Path, ".broken"))

			warnings := logger.Entries(utils.LevelWarn)
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0].Message, "unreadable")
		})
	}
}

type prefixFilter string

func (f prefixFilter) Match(module, _ string) bool {
	return strings.HasPrefix(module, string(f))
}

func TestWalk_FilterMatchingNothingIsFatal(t *testing.T) {
	v := int64(1)
	opts := testOptions(model.StrategyQueued)
	opts.Filter = prefixFilter("missing")

	_, err := New(opts, nil, nil).Walk(context.Background(), testutil.Statics(t, "World", "v", &v), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsFatal(err))
	assert.Equal(t, apperrors.CodeRootEnumeration, apperrors.GetErrorCode(err))

	opts.Filter = prefixFilter(testutil.Module)
	res, err := New(opts, nil, nil).Walk(context.Background(), testutil.Statics(t, "World", "v", &v), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.Stats.TotalSize)
}

func TestWalk_AccessFilter(t *testing.T) {
	public, private := int64(1), int32(2)
	statics := testutil.Statics(t, "World", "Public", &public, "private", &private)

	opts := testOptions(model.StrategyQueued)
	opts.Access = roots.AccessPublic
	res := walk(t, opts, statics, nil)
	assert.Equal(t, int64(8), res.Stats.TotalSize)

	opts.Access = roots.AccessNonPublic
	res = walk(t, opts, statics, nil)
	assert.Equal(t, int64(4), res.Stats.TotalSize)
}

func TestWalk_Canceled(t *testing.T) {
	v := int64(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testOptions(model.StrategyQueued), nil, nil).Walk(ctx, testutil.Statics(t, "World", "v", &v), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type health struct {
	HP  int32
	Max int32
}

type score int32

func TestWalk_Scene(t *testing.T) {
	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			h := &health{HP: 10, Max: 100}
			player := roots.NewNode("Player").AddComponent(h).AddComponent(score(5))
			player.AddChild(roots.NewNode("Weapon").AddComponent(h))
			scene := roots.NewSceneGraph("Level1")
			scene.Add(player)

			res := walk(t, testOptions(s), nil, scene)

			group := testutil.MustPath(t, res.Root, GroupScene)
			assert.Equal(t, "Level1", group.Type)
			p := testutil.MustPath(t, group, "Player")
			assert.Equal(t, model.KindContainer, p.Kind)
			assert.Equal(t, "*roots.Node", p.Type)

			weapon := testutil.MustPath(t, p, "Weapon")
			comp := testutil.MustPath(t, weapon, "*walker.health")
			assert.Equal(t, model.KindInstance, comp.Kind)
			assert.Equal(t, int64(8), comp.Size)
			assert.Equal(t, model.KindCycleRef, testutil.MustPath(t, p, "*walker.health").Kind)
			assert.Equal(t, int64(4), testutil.MustPath(t, p, "walker.score").Size)

			assert.Equal(t, int64(12), res.Stats.TotalSize)
			assert.Equal(t, int64(12), res.Stats.SceneSize)
			assert.Equal(t, 2, res.Stats.Containers)
			assert.Equal(t, 3, res.Stats.Components)
			assert.Equal(t, 3, res.Stats.Identities)
			assert.Equal(t, 0, testutil.CountKind(res.Root, model.KindStaticType))
		})
	}
}

func TestWalk_SceneDedupesAcrossStatics(t *testing.T) {
	h := &health{HP: 1}
	scene := roots.NewSceneGraph("Level1")
	scene.Add(roots.NewNode("Enemy").AddComponent(h))

	res := walk(t, testOptions(model.StrategyQueued), testutil.Statics(t, "World", "boss", &h), scene)

	assert.Equal(t, int64(16), res.Stats.StaticsSize)
	assert.Equal(t, int64(0), res.Stats.SceneSize)
	enemy := testutil.MustPath(t, res.Root, GroupScene, "Enemy")
	assert.Equal(t, model.KindCycleRef, enemy.Children[0].Kind)
	assert.Equal(t, int64(8), enemy.Children[0].Size)
}

func TestWalk_Idempotent(t *testing.T) {
	pair := testutil.SharedPair()
	ring := testutil.Ring(4)
	texts := testutil.EqualTexts("abc")
	statics := testutil.Statics(t, "World", "pair", &pair, "ring", &ring, "texts", &texts)

	for _, s := range strategies {
		w := New(testOptions(s), nil, nil)
		first, err := w.Walk(context.Background(), statics, nil)
		require.NoError(t, err)
		second, err := w.Walk(context.Background(), statics, nil)
		require.NoError(t, err)

		assert.Equal(t, testutil.Outline(first.Root), testutil.Outline(second.Root))
		assert.Equal(t, first.Stats, second.Stats)
	}
}

func TestWalk_StrategiesAgree(t *testing.T) {
	pair := testutil.SharedPair()
	ring := testutil.Ring(6)
	grid := testutil.NewGrid()
	index := map[string]*testutil.Link{"x": ring, "y": testutil.SelfLoop()}
	statics := testutil.Statics(t, "World", "pair", &pair, "ring", &ring, "grid", &grid, "index", &index)

	queued := walk(t, testOptions(model.StrategyQueued), statics, nil)
	eager := walk(t, testOptions(model.StrategyEager), statics, nil)

	assert.Equal(t, queued.Stats.TotalSize, eager.Stats.TotalSize)
	assert.Equal(t, queued.Stats.Identities, eager.Stats.Identities)
	assert.Equal(t, queued.Registry.Len(), eager.Registry.Len())
	assert.Equal(t, testutil.Outline(eager.Root), testutil.Outline(queued.Root))
	testutil.AssertRollup(t, queued.Root)
	testutil.AssertSorted(t, eager.Root)
}

func TestWalk_RegistryEntriesAreFinal(t *testing.T) {
	ring := testutil.Ring(5)
	res := walk(t, testOptions(model.StrategyQueued), testutil.Statics(t, "World", "ring", &ring), nil)

	res.Registry.Each(func(_ registry.Identity, e *registry.Entry) {
		assert.GreaterOrEqual(t, e.Size, int64(0))
		assert.Equal(t, e.Node.Size, e.Size)
	})
}
