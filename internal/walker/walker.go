// Package walker traverses a live Go object graph from its roots and builds
// a size-annotated report tree.
//
// Each value met along the way is classified, sized and, when it is a heap
// object, recorded in a per-run registry so shared objects are charged once
// and cycles end in a reference node. Pointer-slot costs are charged at the
// owning site: a field node carries the slot of the value it holds, an array
// or map node carries the slots of its elements, and the value nodes below
// them carry payload only.
package walker

import (
	"context"
	"fmt"
	"reflect"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emirpasic/gods/queues/linkedlistqueue"

	"github.com/heap-dump/internal/fields"
	"github.com/heap-dump/internal/registry"
	"github.com/heap-dump/internal/report"
	"github.com/heap-dump/internal/sizing"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/roots"
	"github.com/heap-dump/pkg/utils"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Group names under the dump node.
const (
	GroupStatics = "statics"
	GroupScene   = "scene"
)

// Options configures a Walker.
type Options struct {
	Strategy model.Strategy
	Platform sizing.Platform
	// Access selects static fields by visibility.
	Access roots.Access
	// SkipEmptyTypes leaves ignored holders and holders without static
	// fields out of the report.
	SkipEmptyTypes bool
	// InlineStructs expands struct values that embed references field by
	// field instead of reporting them as zero-sized with a diagnostic.
	InlineStructs bool
	// Filter selects static holders; nil selects all.
	Filter roots.Filter
	// MaxValueLen truncates rendered scalar values.
	MaxValueLen int
}

// DefaultOptions returns queued expansion on the host platform.
func DefaultOptions() Options {
	return Options{
		Strategy:    model.StrategyQueued,
		Platform:    sizing.HostPlatform(),
		Access:      roots.AccessAll,
		MaxValueLen: 64,
	}
}

// Walker runs dumps. A Walker is stateless between runs and may be reused;
// each Walk owns its registry and queue.
type Walker struct {
	opts   Options
	fields fields.Enumerator
	logger utils.Logger
}

// New creates a Walker.
func New(opts Options, enum fields.Enumerator, logger utils.Logger) *Walker {
	if enum == nil {
		enum = fields.NewReflectEnumerator()
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	if opts.Strategy == "" {
		opts.Strategy = model.StrategyQueued
	}
	if opts.Platform == (sizing.Platform{}) {
		opts.Platform = sizing.HostPlatform()
	}
	if opts.Access == 0 {
		opts.Access = roots.AccessAll
	}
	return &Walker{opts: opts, fields: enum, logger: logger}
}

// Options returns the effective options.
func (w *Walker) Options() Options {
	return w.opts
}

// Result is the outcome of one Walk.
type Result struct {
	Root        *model.ReportNode
	Stats       model.DumpStats
	Diagnostics []model.Diagnostic
	Registry    *registry.Registry
	Duration    time.Duration
}

// work is a queued instance waiting for expansion into node.
type work struct {
	value reflect.Value
	id    registry.Identity
	node  *model.ReportNode
}

// run is the state of a single traversal.
type run struct {
	*Walker
	ctx      context.Context
	reg      *registry.Registry
	queue    *linkedlistqueue.Queue
	deferred map[*model.ReportNode]registry.Identity
	stats    model.DumpStats
	diags    []model.Diagnostic
	badTypes mapset.Set[reflect.Type]
}

// Walk dumps statics and scene; either may be nil. Fatal errors abort the
// run and no tree is returned.
func (w *Walker) Walk(ctx context.Context, statics roots.StaticSource, scene roots.Scene) (*Result, error) {
	start := time.Now()
	r := &run{
		Walker:   w,
		ctx:      ctx,
		reg:      registry.New(),
		queue:    linkedlistqueue.New(),
		deferred: make(map[*model.ReportNode]registry.Identity),
		badTypes: mapset.NewThreadUnsafeSet[reflect.Type](),
	}

	root := model.NewNode(model.KindDump, "", "")
	if statics != nil {
		group, err := r.reportStatics(statics)
		if err != nil {
			return nil, err
		}
		root.AddChild(group)
		r.stats.StaticsSize = group.Size
	}
	if scene != nil {
		group, err := r.reportScene(scene)
		if err != nil {
			return nil, err
		}
		root.AddChild(group)
		r.stats.SceneSize = group.Size
	}
	if !report.Seal(root) {
		return nil, apperrors.New(apperrors.CodeRegistry, "dump root left unsettled")
	}
	if n := r.reg.Unsettled(); n > 0 {
		return nil, apperrors.Newf(apperrors.CodeRegistry, "%d registry entries left unsettled", n)
	}
	report.SortBySize(root)

	r.stats.TotalSize = root.Size
	r.stats.Nodes = root.Count()
	r.stats.Identities = r.reg.Len()

	return &Result{
		Root:        root,
		Stats:       r.stats,
		Diagnostics: r.diags,
		Registry:    r.reg,
		Duration:    time.Since(start),
	}, nil
}

func (r *run) reportStatics(src roots.StaticSource) (*model.ReportNode, error) {
	types, err := src.Types(r.opts.Filter)
	if err != nil {
		if apperrors.IsFatal(err) {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeRootEnumeration, "list static holders", err)
	}

	group := model.NewNode(model.KindGroup, GroupStatics, "")
	for _, st := range types {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		node, err := r.reportStaticType(st)
		if err != nil {
			return nil, err
		}
		if node != nil {
			group.AddChild(node)
		}
	}
	report.Seal(group)
	return group, nil
}

func (r *run) reportStaticType(st *roots.StaticType) (*model.ReportNode, error) {
	if st.Enum || st.Generic {
		r.stats.Ignored++
		if r.opts.SkipEmptyTypes {
			return nil, nil
		}
		node := model.NewNode(model.KindStaticType, st.Name, st.Module)
		marker := model.NewNode(model.KindIgnored, "", "")
		marker.Reason = model.ReasonEnum
		if !st.Enum {
			marker.Reason = model.ReasonGeneric
		}
		node.AddChild(marker)
		report.Seal(node)
		return node, nil
	}

	statics := st.Fields(r.opts.Access)
	if len(statics) == 0 && r.opts.SkipEmptyTypes {
		return nil, nil
	}

	r.stats.StaticTypes++
	node := model.NewNode(model.KindStaticType, st.Name, st.Module)
	for _, f := range statics {
		v, err := f.Value()
		if err != nil {
			r.fieldFailed(node, f.Name, f.Type, err)
			continue
		}
		if err := r.reportField(node, f.Name, f.Type, v); err != nil {
			return nil, err
		}
	}
	if err := r.finishRoot(node); err != nil {
		return nil, err
	}
	return node, nil
}

func (r *run) reportScene(scene roots.Scene) (*model.ReportNode, error) {
	group := model.NewNode(model.KindGroup, GroupScene, scene.Name())
	for _, c := range scene.TopLevel() {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		node, err := r.reportContainer(group, c)
		if err != nil {
			return nil, err
		}
		if err := r.finishRoot(node); err != nil {
			return nil, err
		}
	}
	report.Seal(group)
	return group, nil
}

// finishRoot expands everything queued under a root and settles its
// subtree, so each root is complete before the next one starts.
func (r *run) finishRoot(node *model.ReportNode) error {
	if err := r.drain(); err != nil {
		return err
	}
	if node.Kind == model.KindCycleRef {
		return nil
	}
	node.Size = model.PendingSize
	return report.Settle(node, r.onSettled)
}

func (r *run) onSettled(n *model.ReportNode) error {
	id, ok := r.deferred[n]
	if !ok {
		return nil
	}
	delete(r.deferred, n)
	return r.reg.Finalize(id, n.Size)
}

// drain pops queued instances until the queue is empty. An instance can be
// queued more than once before its first expansion; later copies become
// references.
func (r *run) drain() error {
	for !r.queue.Empty() {
		item, _ := r.queue.Dequeue()
		w := item.(*work)
		if e, seen := r.reg.TryGet(w.id); seen {
			r.resolveRef(w.node, e)
			continue
		}
		if err := r.expand(w.node, w.value, w.id); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) reportContainer(parent *model.ReportNode, c roots.Container) (*model.ReportNode, error) {
	v := reflect.ValueOf(c)
	id, hasID := registry.IdentityOf(v)
	if hasID {
		if e, seen := r.reg.TryGet(id); seen {
			return r.addRef(parent, c.Name(), e), nil
		}
	}

	node := model.NewNode(model.KindContainer, c.Name(), sizing.TypeName(v.Type()))
	parent.AddChild(node)
	if hasID {
		if err := r.reg.Reserve(id, node); err != nil {
			return nil, err
		}
	}
	r.stats.Containers++

	for _, child := range c.Children() {
		if _, err := r.reportContainer(node, child); err != nil {
			return nil, err
		}
	}
	for _, comp := range c.Components() {
		if s, ok := comp.(roots.Structural); ok && s.Structural() {
			continue
		}
		if err := r.reportComponent(node, comp); err != nil {
			return nil, err
		}
	}
	return node, r.complete(node, id, hasID)
}

func (r *run) reportComponent(parent *model.ReportNode, comp interface{}) error {
	r.stats.Components++
	v := reflect.ValueOf(comp)
	c := r.opts.Platform.Classify(v, nil)
	name := sizing.TypeName(c.Type)
	if c.Kind != sizing.Instance {
		return r.reportValue(parent, name, c)
	}

	id, _ := registry.IdentityOf(c.Value)
	if e, seen := r.reg.TryGet(id); seen {
		r.addRef(parent, name, e)
		return nil
	}
	node := model.NewNode(model.KindInstance, name, name)
	node.Size = model.PendingSize
	parent.AddChild(node)
	return r.expand(node, c.Value, id)
}

// reportField emits a field node charged with the slot of its value and the
// value below it.
func (r *run) reportField(parent *model.ReportNode, name string, declared reflect.Type, v reflect.Value) error {
	c := r.opts.Platform.Classify(v, declared)

	field := model.NewNode(model.KindField, name, sizing.TypeName(declared))
	field.RuntimeType = sizing.TypeName(c.Type)
	if c.Kind == sizing.Absent {
		field.RuntimeType = sizing.TypeName(nil)
	}
	field.Overhead = r.opts.Platform.SlotSize(c)
	parent.AddChild(field)

	if err := r.reportValue(field, "", c); err != nil {
		return err
	}
	report.Seal(field)
	return nil
}

// reportValue emits the node for an already classified value. The slot
// holding it has been charged by the caller.
func (r *run) reportValue(parent *model.ReportNode, name string, c sizing.Classification) error {
	switch c.Kind {
	case sizing.Absent:
		parent.AddChild(leaf(model.KindNull, name, "", 0))
	case sizing.Primitive, sizing.Enumerated:
		n := parent.AddChild(leaf(model.KindValue, name, sizing.TypeName(c.Type), c.Width))
		n.Value = r.render(c.Value)
	case sizing.Aggregate:
		return r.reportStruct(parent, name, c)
	case sizing.Text:
		return r.reportString(parent, name, c)
	case sizing.Sequence:
		return r.reportArray(parent, name, c)
	case sizing.Table:
		return r.reportMap(parent, name, c)
	case sizing.Instance:
		return r.reportInstance(parent, name, c)
	default:
		return fmt.Errorf("unhandled classification %s", c.Kind)
	}
	return nil
}

func (r *run) reportStruct(parent *model.ReportNode, name string, c sizing.Classification) error {
	node := parent.AddChild(model.NewNode(model.KindStruct, name, sizing.TypeName(c.Type)))
	if c.Err == nil {
		node.Overhead = c.DeclaredSize
		node.Size = c.DeclaredSize
		return nil
	}
	if !r.opts.InlineStructs {
		r.layoutFailed(parent, name, c.Type, c.Err)
		node.Size = 0
		return nil
	}

	for _, f := range r.fields.FieldsOf(c.Type) {
		fv, err := f.Get(c.Value)
		if err != nil {
			r.fieldFailed(node, f.Name, f.Type, err)
			continue
		}
		if err := r.reportField(node, f.Name, f.Type, fv); err != nil {
			return err
		}
	}
	report.Seal(node)
	return nil
}

func (r *run) reportString(parent *model.ReportNode, name string, c sizing.Classification) error {
	id, hasID := registry.IdentityOf(c.Value)
	if hasID {
		if e, seen := r.reg.TryGet(id); seen {
			r.addRef(parent, name, e)
			return nil
		}
	}

	payload := r.opts.Platform.TextPayload(c.Length)
	node := parent.AddChild(leaf(model.KindString, name, sizing.TypeName(c.Type), payload))
	node.Length = c.Length
	if !hasID {
		return nil
	}
	if err := r.reg.Reserve(id, node); err != nil {
		return err
	}
	return r.reg.Finalize(id, payload)
}

func (r *run) reportArray(parent *model.ReportNode, name string, c sizing.Classification) error {
	var id registry.Identity
	registered := false
	if !c.Inline {
		var ok bool
		if id, ok = registry.IdentityOf(c.Value); ok {
			if e, seen := r.reg.TryGet(id); seen {
				r.addRef(parent, name, e)
				return nil
			}
			registered = true
		}
	}

	node := parent.AddChild(model.NewNode(model.KindArray, name, sizing.TypeName(c.Type)))
	node.Length = c.Length
	node.Rank = c.Rank
	if registered {
		if err := r.reg.Reserve(id, node); err != nil {
			return err
		}
	}

	width, ref, err := r.opts.Platform.ElementSlot(c.Elem)
	expandStructs := err != nil && r.inlines(c.Elem)
	if err != nil && !expandStructs {
		r.layoutFailed(node, "[]", c.Elem, err)
	}
	node.Overhead = width * c.Length

	if ref || expandStructs {
		values := c.Value
		if values.Kind() == reflect.Ptr {
			values = values.Elem()
		}
		i := 0
		err := eachElem(values, c.Rank, func(ev reflect.Value) error {
			label := fmt.Sprintf("[%d]", i)
			i++
			ec := r.opts.Platform.Classify(ev, c.Elem)
			if ec.Kind == sizing.Absent {
				return nil
			}
			return r.reportValue(node, label, ec)
		})
		if err != nil {
			return err
		}
	}
	return r.complete(node, id, registered)
}

func (r *run) reportMap(parent *model.ReportNode, name string, c sizing.Classification) error {
	id, registered := registry.IdentityOf(c.Value)
	if registered {
		if e, seen := r.reg.TryGet(id); seen {
			r.addRef(parent, name, e)
			return nil
		}
	}

	node := parent.AddChild(model.NewNode(model.KindMap, name, sizing.TypeName(c.Type)))
	node.Length = c.Length
	if registered {
		if err := r.reg.Reserve(id, node); err != nil {
			return err
		}
	}

	keyWidth, keyRef, err := r.opts.Platform.ElementSlot(c.Key)
	if err != nil {
		r.layoutFailed(node, "key", c.Key, err)
	}
	valWidth, valRef, err := r.opts.Platform.ElementSlot(c.Elem)
	expandStructs := err != nil && r.inlines(c.Elem)
	if err != nil && !expandStructs {
		r.layoutFailed(node, "value", c.Elem, err)
	}
	node.Overhead = (keyWidth + valWidth) * c.Length

	if keyRef || valRef || expandStructs {
		for _, k := range sortedKeys(c.Value, r.render) {
			label := "[" + r.render(k) + "]"
			if keyRef {
				if kc := r.opts.Platform.Classify(k, c.Key); kc.Kind != sizing.Absent {
					if err := r.reportValue(node, "key"+label, kc); err != nil {
						return err
					}
				}
			}
			if valRef || expandStructs {
				vc := r.opts.Platform.Classify(c.Value.MapIndex(k), c.Elem)
				if vc.Kind == sizing.Absent {
					continue
				}
				if err := r.reportValue(node, label, vc); err != nil {
					return err
				}
			}
		}
	}
	return r.complete(node, id, registered)
}

// reportInstance emits a reference-type instance. On first sight the eager
// strategy expands it right away; the queued strategy leaves a pending
// placeholder and expands it when the queue drains.
func (r *run) reportInstance(parent *model.ReportNode, name string, c sizing.Classification) error {
	id, _ := registry.IdentityOf(c.Value)
	if e, seen := r.reg.TryGet(id); seen {
		r.addRef(parent, name, e)
		return nil
	}

	node := model.NewNode(model.KindInstance, name, sizing.TypeName(c.Type))
	node.Size = model.PendingSize
	parent.AddChild(node)

	if r.opts.Strategy == model.StrategyEager {
		return r.expand(node, c.Value, id)
	}
	r.queue.Enqueue(&work{value: c.Value, id: id, node: node})
	return nil
}

// expand reserves an instance, reports each of its fields and finalizes it
// once nothing below is pending.
func (r *run) expand(node *model.ReportNode, v reflect.Value, id registry.Identity) error {
	if err := r.reg.Reserve(id, node); err != nil {
		return err
	}
	for _, f := range r.fields.FieldsOf(v.Type()) {
		fv, err := f.Get(v)
		if err != nil {
			r.fieldFailed(node, f.Name, f.Type, err)
			continue
		}
		if err := r.reportField(node, f.Name, f.Type, fv); err != nil {
			return err
		}
	}
	return r.complete(node, id, true)
}

// complete seals node and moves its registry entry on: final when its size
// is known, deferred while queued descendants are outstanding.
func (r *run) complete(node *model.ReportNode, id registry.Identity, registered bool) error {
	sealed := report.Seal(node)
	if !registered {
		return nil
	}
	if sealed {
		return r.reg.Finalize(id, node.Size)
	}
	r.deferred[node] = id
	return r.reg.Defer(id)
}

func (r *run) addRef(parent *model.ReportNode, name string, e *registry.Entry) *model.ReportNode {
	ref := model.NewNode(model.KindCycleRef, name, "")
	parent.AddChild(ref)
	r.resolveRef(ref, e)
	return ref
}

// resolveRef points node at an already registered object. A final target
// lends its size and a target still being expanded is a true cycle worth 0.
// A deferred target is resolved when the tree settles: 0 if it is an
// ancestor of node, its settled size otherwise.
func (r *run) resolveRef(node *model.ReportNode, e *registry.Entry) {
	r.stats.CycleRefs++
	node.PointTo(e.Node)
	if e.Node != nil {
		node.Type = e.Node.Type
	} else {
		node.Type = sizing.TypeName(e.Type)
	}
	switch e.State {
	case registry.Final:
		node.Size = e.Size
	case registry.Reserved:
		node.Size = 0
	case registry.Deferred:
		node.Size = model.PendingSize
	}
}

func (r *run) fieldFailed(owner *model.ReportNode, name string, typ reflect.Type, err error) {
	r.stats.Warnings++
	path := owner.Label() + "." + name
	r.diags = append(r.diags, model.Diagnostic{
		Code:    apperrors.CodeFieldAccess,
		Path:    path,
		Type:    sizing.TypeName(typ),
		Message: err.Error(),
	})
	r.logger.WithFields(map[string]interface{}{
		"field": path,
		"type":  sizing.TypeName(typ),
	}).Warn("skipping unreadable field: %v", err)
}

func (r *run) layoutFailed(owner *model.ReportNode, name string, typ reflect.Type, err error) {
	r.stats.Warnings++
	path := owner.Label()
	if name != "" {
		path += "." + name
	}
	r.diags = append(r.diags, model.Diagnostic{
		Code:    apperrors.CodeLayout,
		Path:    path,
		Type:    sizing.TypeName(typ),
		Message: err.Error(),
	})
	if r.badTypes.Contains(typ) {
		return
	}
	r.badTypes.Add(typ)
	r.logger.WithField("type", sizing.TypeName(typ)).Warn("no fixed layout, sized as 0: %v", err)
}

func (r *run) inlines(t reflect.Type) bool {
	return r.opts.InlineStructs && t != nil && t.Kind() == reflect.Struct
}

func (r *run) render(v reflect.Value) string {
	s := fmt.Sprint(v)
	if r.opts.MaxValueLen > 0 && len(s) > r.opts.MaxValueLen {
		s = s[:r.opts.MaxValueLen] + "..."
	}
	return s
}

func leaf(kind model.NodeKind, name, typeName string, size int64) *model.ReportNode {
	n := model.NewNode(kind, name, typeName)
	n.Overhead = size
	n.Size = size
	return n
}
