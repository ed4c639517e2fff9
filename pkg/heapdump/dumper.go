// Package heapdump is the entry point for embedding the dumper in a Go
// process: register roots with package roots, build a Dumper from
// configuration and call DumpToStorage, or mount Handler to trigger dumps
// over HTTP.
package heapdump

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heap-dump/internal/fields"
	"github.com/heap-dump/internal/flamegraph"
	"github.com/heap-dump/internal/report"
	"github.com/heap-dump/internal/repository"
	"github.com/heap-dump/internal/storage"
	"github.com/heap-dump/internal/walker"
	"github.com/heap-dump/pkg/compression"
	"github.com/heap-dump/pkg/config"
	"github.com/heap-dump/pkg/filter"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/roots"
	"github.com/heap-dump/pkg/telemetry"
	"github.com/heap-dump/pkg/utils"

	apperrors "github.com/heap-dump/pkg/errors"
)

// Report formats.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
)

// TimestampLayout is the ISO 8601 basic UTC form used in object keys.
const TimestampLayout = "20060102T150405Z"

// Options wires a Dumper. Only Config is required.
type Options struct {
	Config *config.Config

	// Statics defaults to the process-wide roots registry.
	Statics roots.StaticSource
	// Scene is the container forest to dump; nil dumps statics only.
	Scene roots.Scene

	// Storage defaults to the backend named in Config.Storage.
	Storage storage.Storage
	// History records every triggered dump; nil disables it.
	History repository.DumpRepository

	Fields fields.Enumerator
	Logger utils.Logger
	Clock  utils.Clock
}

// Dumper runs dumps. Runs never overlap: a second call while one is in
// progress fails with CodeDumpInProgress.
type Dumper struct {
	cfg     *config.Config
	walker  *walker.Walker
	types   *filter.TypeFilter
	statics roots.StaticSource
	store   storage.Storage
	history repository.DumpRepository
	logger  utils.Logger
	clock   utils.Clock

	mu      sync.Mutex
	sceneMu sync.RWMutex
	scene   roots.Scene
}

// New creates a Dumper.
func New(opts Options) (*Dumper, error) {
	if opts.Config == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is required")
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = utils.NewRealClock()
	}
	statics := opts.Statics
	if statics == nil {
		statics = roots.Default()
	}

	store := opts.Storage
	if store == nil {
		var err error
		if store, err = storage.NewStorage(&cfg.Storage); err != nil {
			return nil, err
		}
	}

	types := filter.NewTypeFilter(cfg.Dump.Include, cfg.Dump.Exclude)
	wopts := walker.Options{
		Strategy:       cfg.Strategy(),
		Platform:       cfg.Platform,
		Access:         cfg.Access(),
		SkipEmptyTypes: cfg.Dump.SkipEmptyTypes,
		InlineStructs:  cfg.Dump.InlineStructs,
		MaxValueLen:    cfg.Dump.MaxValueLen,
	}
	if len(cfg.Dump.Include) > 0 || len(cfg.Dump.Exclude) > 0 {
		wopts.Filter = types
	}

	return &Dumper{
		cfg:     cfg,
		walker:  walker.New(wopts, opts.Fields, logger),
		types:   types,
		statics: statics,
		scene:   opts.Scene,
		store:   store,
		history: opts.History,
		logger:  logger,
		clock:   clock,
	}, nil
}

// SetScene replaces the scene dumped by later runs.
func (d *Dumper) SetScene(scene roots.Scene) {
	d.sceneMu.Lock()
	defer d.sceneMu.Unlock()
	d.scene = scene
}

// TypeFilter returns the filter built from the include and exclude lists.
// It also categorizes type names for summaries.
func (d *Dumper) TypeFilter() *filter.TypeFilter {
	return d.types
}

// Storage returns the report storage.
func (d *Dumper) Storage() storage.Storage {
	return d.store
}

func (d *Dumper) currentScene() roots.Scene {
	d.sceneMu.RLock()
	defer d.sceneMu.RUnlock()
	return d.scene
}

// SceneName is the scene label used in reports and object keys.
func SceneName(scene roots.Scene) string {
	if scene == nil {
		return roots.EmptyScene{}.Name()
	}
	return scene.Name()
}

// Dump traverses the roots and returns the settled report without
// writing anything.
func (d *Dumper) Dump(ctx context.Context) (*model.DumpResult, error) {
	if !d.mu.TryLock() {
		return nil, apperrors.ErrDumpInProgress
	}
	defer d.mu.Unlock()
	return d.dump(ctx)
}

func (d *Dumper) dump(ctx context.Context) (res *model.DumpResult, err error) {
	scene := d.currentScene()
	name := SceneName(scene)
	strategy := d.walker.Options().Strategy

	ctx, span := telemetry.StartSpan(ctx, "heapdump.traverse",
		telemetry.AttrScene.String(name),
		telemetry.AttrStrategy.String(string(strategy)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	created := d.clock.Now()
	d.logger.Info("Starting heap dump (scene=%s, %s)", name, d.cfg.Dump)

	out, err := d.walker.Walk(ctx, d.statics, scene)
	if err != nil {
		d.logger.Error("Heap dump failed: %v", err)
		return nil, err
	}

	res = &model.DumpResult{
		ID:          uuid.NewString(),
		Scene:       name,
		Strategy:    strategy,
		CreatedAt:   created,
		Duration:    d.clock.Since(created),
		Root:        out.Root,
		Stats:       out.Stats,
		Diagnostics: out.Diagnostics,
	}
	span.SetAttributes(
		telemetry.AttrDumpID.String(res.ID),
		telemetry.AttrTotalSize.Int64(res.Stats.TotalSize),
		telemetry.AttrNodes.Int(res.Stats.Nodes),
		telemetry.AttrWarnings.Int(res.Stats.Warnings),
	)
	d.logger.Info("Heap dump %s: %d bytes in %d nodes, %d warnings",
		res.ID, res.Stats.TotalSize, res.Stats.Nodes, res.Stats.Warnings)
	return res, nil
}

// DumpToStorage runs a dump, writes the report to storage and records it
// in dump history. A failed traversal writes nothing; failed runs are
// recorded with their error.
func (d *Dumper) DumpToStorage(ctx context.Context) (rec *model.DumpRecord, err error) {
	if !d.mu.TryLock() {
		return nil, apperrors.ErrDumpInProgress
	}
	defer d.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "heapdump.dump")
	defer func() { telemetry.EndSpan(span, err) }()

	started := d.clock.Now()
	res, err := d.dump(ctx)
	if err != nil {
		d.record(ctx, &model.DumpRecord{
			ID:        uuid.NewString(),
			Scene:     SceneName(d.currentScene()),
			Strategy:  d.walker.Options().Strategy,
			Status:    model.DumpStatusFailed,
			Error:     err.Error(),
			CreatedAt: started,
			Duration:  d.clock.Since(started),
		})
		return nil, err
	}

	rec = res.Record()
	rec.Format = d.format()
	rec.Compression = string(d.compression())
	rec.StorageKey = ObjectKey(res.Scene, res.CreatedAt, rec.Format, d.compression())

	if err := d.upload(ctx, rec.StorageKey, func(w io.Writer) error { return d.Encode(w, res) }); err != nil {
		rec.Status = model.DumpStatusFailed
		rec.Error = err.Error()
		rec.StorageKey = ""
		d.record(ctx, rec)
		return nil, err
	}
	rec.URL = d.store.GetURL(rec.StorageKey)
	span.SetAttributes(telemetry.AttrStorageKey.String(rec.StorageKey))
	d.logger.Info("Written heap dump to %s", rec.StorageKey)

	if d.cfg.Output.FlameGraph {
		key := FlameGraphKey(rec.StorageKey)
		if err := d.uploadFlameGraph(ctx, key, res); err != nil {
			d.logger.Warn("Failed to write flame graph %s: %v", key, err)
		}
	}

	d.record(ctx, rec)
	return rec, nil
}

// Encode writes res in the configured format and compression.
func (d *Dumper) Encode(w io.Writer, res *model.DumpResult) (err error) {
	cw, err := compression.NewWriter(w, d.compression(), compression.LevelDefault)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSerialize, "open compressor", err)
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = apperrors.Wrap(apperrors.CodeSerialize, "close compressor", cerr)
		}
	}()

	doc := DocumentOf(res)
	if d.format() == FormatJSON {
		return report.EncodeJSON(cw, doc)
	}
	return report.EncodeXML(cw, doc)
}

// DocumentOf converts a result into its serialized form.
func DocumentOf(res *model.DumpResult) report.Document {
	return report.Document{
		Meta: report.Meta{
			ID:       res.ID,
			Scene:    res.Scene,
			Strategy: string(res.Strategy),
			Created:  res.CreatedAt,
		},
		Root: res.Root,
	}
}

func (d *Dumper) uploadFlameGraph(ctx context.Context, key string, res *model.DumpResult) error {
	fg, err := flamegraph.NewGenerator(nil).Generate(ctx, res.Root)
	if err != nil {
		return err
	}
	return d.upload(ctx, key, func(w io.Writer) error {
		return flamegraph.NewJSONWriter().Write(fg, w)
	})
}

func (d *Dumper) upload(ctx context.Context, key string, encode func(io.Writer) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "heapdump.upload", telemetry.AttrStorageKey.String(key))
	defer func() { telemetry.EndSpan(span, err) }()

	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	if err := d.store.Upload(ctx, key, &buf); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "upload "+key, err)
	}
	return nil
}

// record saves rec in dump history. History is best effort: the report is
// already written when this runs.
func (d *Dumper) record(ctx context.Context, rec *model.DumpRecord) {
	if d.history == nil {
		return
	}
	ctx, span := telemetry.StartSpan(ctx, "heapdump.record", telemetry.AttrDumpID.String(rec.ID))
	err := d.history.SaveDump(ctx, rec)
	telemetry.EndSpan(span, err)
	if err != nil {
		d.logger.Warn("Failed to record dump %s: %v", rec.ID, err)
	}
}

func (d *Dumper) format() string {
	if strings.EqualFold(d.cfg.Output.Format, FormatJSON) {
		return FormatJSON
	}
	return FormatXML
}

func (d *Dumper) compression() compression.Type {
	t, err := compression.ParseType(d.cfg.Output.Compression)
	if err != nil {
		return compression.TypeNone
	}
	return t
}

// ObjectKey names a report: <scene>/heapdump-<scene>-<timestamp>.<format>
// plus the compression extension.
func ObjectKey(scene string, created time.Time, format string, comp compression.Type) string {
	s := sanitize(scene)
	return s + "/heapdump-" + s + "-" + created.UTC().Format(TimestampLayout) + "." + format + comp.Extension()
}

// FlameGraphKey names the flame graph stored next to a report.
func FlameGraphKey(reportKey string) string {
	base := reportKey
	for _, ext := range []string{".gz", ".zst"} {
		base = strings.TrimSuffix(base, ext)
	}
	for _, ext := range []string{"." + FormatXML, "." + FormatJSON} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".flame.json"
}

func sanitize(name string) string {
	if name == "" {
		return "none"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if s := b.String(); s != "." && s != ".." {
		return s
	}
	return "_"
}
