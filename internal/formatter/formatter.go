// Package formatter renders dump results for people: log summaries and
// terminal tables.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/heap-dump/internal/storage"
	"github.com/heap-dump/pkg/filter"
	"github.com/heap-dump/pkg/model"
	"github.com/heap-dump/pkg/utils"
)

// Options controls what the formatter shows.
type Options struct {
	// Top is the number of largest contributors listed.
	Top int
	// Depth selects the tree level the contributors are taken from.
	// Depth 3 lists fields of static holders and scene containers.
	Depth int
	// Categories groups type names; nil skips the category table.
	Categories *filter.TypeFilter
}

// DumpFormatter formats dump results.
type DumpFormatter struct {
	opts Options
}

// NewDumpFormatter creates a formatter, defaulting Top to 10 and Depth to 3.
func NewDumpFormatter(opts Options) *DumpFormatter {
	if opts.Top <= 0 {
		opts.Top = 10
	}
	if opts.Depth <= 0 {
		opts.Depth = 3
	}
	return &DumpFormatter{opts: opts}
}

// Format outputs the dump summary to the logger.
func (f *DumpFormatter) Format(res *model.DumpResult, log utils.Logger) {
	log.Info("=== Heap Dump ===")
	log.Info("ID:         %s", res.ID)
	log.Info("Scene:      %s", res.Scene)
	log.Info("Strategy:   %s", res.Strategy)
	log.Info("Duration:   %s", res.Duration)
	log.Info("")

	s := res.Stats
	log.Info("=== Summary ===")
	log.Info("  Total Size:    %s (%d bytes)", FormatBytes(s.TotalSize), s.TotalSize)
	log.Info("  Statics:       %s", FormatBytes(s.StaticsSize))
	log.Info("  Scene:         %s", FormatBytes(s.SceneSize))
	log.Info("  Static Types:  %d (%d ignored)", s.StaticTypes, s.Ignored)
	log.Info("  Containers:    %d, Components: %d", s.Containers, s.Components)
	log.Info("  Objects:       %d, Cycle Refs: %d", s.Identities, s.CycleRefs)
	log.Info("")

	top := model.TopContributors(res.Root, f.opts.Depth, f.opts.Top)
	if len(top) > 0 {
		log.Info("=== Top Contributors ===")
		for i, c := range top {
			log.Info("  %2d. %6.2f%%  %-10s %s", i+1, c.Share, FormatBytes(c.Size), TruncateString(c.Path, 80))
		}
		log.Info("")
	}

	if len(res.Diagnostics) > 0 {
		log.Warn("=== Diagnostics (%d) ===", len(res.Diagnostics))
		for i, d := range res.Diagnostics {
			if i >= 10 {
				log.Warn("  ... and %d more", len(res.Diagnostics)-10)
				break
			}
			log.Warn("  [%s] %s: %s", d.Code, TruncateString(d.Path, 60), d.Message)
		}
	}
}

// FormatSummary returns a summary map for serialization.
func (f *DumpFormatter) FormatSummary(res *model.DumpResult) map[string]interface{} {
	top := model.TopContributors(res.Root, f.opts.Depth, f.opts.Top)
	entries := make([]map[string]interface{}, 0, len(top))
	for _, c := range top {
		entries = append(entries, map[string]interface{}{
			"path":  c.Path,
			"kind":  c.Kind,
			"size":  c.Size,
			"share": c.Share,
		})
	}

	summary := map[string]interface{}{
		"id":          res.ID,
		"scene":       res.Scene,
		"strategy":    res.Strategy,
		"total_size":  res.Stats.TotalSize,
		"stats":       res.Stats,
		"top":         entries,
		"diagnostics": len(res.Diagnostics),
	}
	if f.opts.Categories != nil {
		summary["categories"] = f.Categories(res.Root)
	}
	return summary
}

// CategoryShare is the number of bytes attributed to one type category.
type CategoryShare struct {
	Category string
	Bytes    int64
}

// Categories attributes every node's own bytes to the category of its
// type, largest first.
func (f *DumpFormatter) Categories(root *model.ReportNode) []CategoryShare {
	if f.opts.Categories == nil || root == nil {
		return nil
	}
	totals := map[string]int64{}
	root.Walk(func(n *model.ReportNode, _ int) bool {
		if n.Kind == model.KindCycleRef {
			return false
		}
		self := n.Size - n.ChildSum()
		if self > 0 {
			name := n.RuntimeType
			if name == "" {
				name = n.Type
			}
			totals[f.opts.Categories.Categorize(name).String()] += self
		}
		return true
	})

	out := make([]CategoryShare, 0, len(totals))
	for c, b := range totals {
		out = append(out, CategoryShare{Category: c, Bytes: b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// WriteTable renders the top contributors and category breakdown.
func (f *DumpFormatter) WriteTable(w io.Writer, res *model.DumpResult) error {
	if _, err := fmt.Fprintf(w, "Dump %s  scene=%s  strategy=%s  total=%s\n\n",
		res.ID, res.Scene, res.Strategy, FormatBytes(res.Stats.TotalSize)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Share", "Size", "Kind", "Path"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColWidth(100)
	for i, c := range model.TopContributors(res.Root, f.opts.Depth, f.opts.Top) {
		table.Append([]string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f%%", c.Share),
			FormatBytes(c.Size),
			string(c.Kind),
			c.Path,
		})
	}
	table.Render()

	if shares := f.Categories(res.Root); len(shares) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		cats := tablewriter.NewWriter(w)
		cats.SetHeader([]string{"Category", "Size"})
		cats.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, s := range shares {
			cats.Append([]string{s.Category, FormatBytes(s.Bytes)})
		}
		cats.Render()
	}
	return nil
}

// WriteHistory renders dump history records.
func WriteHistory(w io.Writer, recs []*model.DumpRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Scene", "Created", "Status", "Strategy", "Size", "Warnings", "Location"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColWidth(80)
	for _, r := range recs {
		location := r.URL
		if location == "" {
			location = r.StorageKey
		}
		if r.Error != "" {
			location = r.Error
		}
		table.Append([]string{
			r.ID,
			r.Scene,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(r.Status),
			string(r.Strategy),
			FormatBytes(r.Stats.TotalSize),
			strconv.Itoa(r.Stats.Warnings),
			location,
		})
	}
	table.Render()
}

// WriteObjects renders stored reports, for when no history database is
// configured.
func WriteObjects(w io.Writer, objs []storage.ObjectInfo) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Size", "Modified"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColWidth(100)
	for _, o := range objs {
		table.Append([]string{o.Key, FormatBytes(o.Size), o.Modified.UTC().Format("2006-01-02 15:04:05")})
	}
	table.Render()
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// TruncateString shortens s to maxLen bytes with a "..." suffix.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
