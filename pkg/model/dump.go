package model

import (
	"sort"
	"time"
)

// Strategy names how reference-type instances are expanded.
type Strategy string

const (
	// StrategyQueued expands instances breadth-first from a work queue.
	StrategyQueued Strategy = "queued"
	// StrategyEager expands instances depth-first on first sight.
	StrategyEager Strategy = "eager"
)

// ParseStrategy parses a strategy name, defaulting to queued.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case "", StrategyQueued, "bfs":
		return StrategyQueued, true
	case StrategyEager, "dfs":
		return StrategyEager, true
	}
	return "", false
}

// Diagnostic is a recovered, non-fatal problem met during a dump.
type Diagnostic struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// DumpStats counts what a dump visited.
type DumpStats struct {
	TotalSize   int64 `json:"total_size"`
	StaticsSize int64 `json:"statics_size"`
	SceneSize   int64 `json:"scene_size"`
	Nodes       int   `json:"nodes"`
	Identities  int   `json:"identities"`
	StaticTypes int   `json:"static_types"`
	Ignored     int   `json:"ignored"`
	Containers  int   `json:"containers"`
	Components  int   `json:"components"`
	CycleRefs   int   `json:"cycle_refs"`
	Warnings    int   `json:"warnings"`
}

// DumpResult is the outcome of one dump run.
type DumpResult struct {
	ID          string        `json:"id"`
	Scene       string        `json:"scene"`
	Strategy    Strategy      `json:"strategy"`
	CreatedAt   time.Time     `json:"created_at"`
	Duration    time.Duration `json:"duration"`
	Root        *ReportNode   `json:"root"`
	Stats       DumpStats     `json:"stats"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
}

// Contributor is one entry of a largest-first listing.
type Contributor struct {
	Path  string
	Kind  NodeKind
	Type  string
	Size  int64
	Share float64
}

// TopContributors lists the n largest nodes at exactly the given depth
// below root, largest first. Cycle references are left out since they
// add nothing.
func TopContributors(root *ReportNode, depth, n int) []Contributor {
	var out []Contributor
	var visit func(node *ReportNode, path string, d int)
	visit = func(node *ReportNode, path string, d int) {
		if d == depth {
			if node.Kind == KindCycleRef {
				return
			}
			c := Contributor{Path: path, Kind: node.Kind, Type: node.Type, Size: node.Size}
			if root.Size > 0 {
				c.Share = float64(node.Size) / float64(root.Size) * 100
			}
			out = append(out, c)
			return
		}
		for _, child := range node.Children {
			p := child.Label()
			if path != "" {
				p = path + "/" + p
			}
			visit(child, p, d+1)
		}
	}
	visit(root, "", 0)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Size > out[j].Size })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DumpStatus is the outcome recorded in dump history.
type DumpStatus string

const (
	DumpStatusSucceeded DumpStatus = "succeeded"
	DumpStatusFailed    DumpStatus = "failed"
)

// DumpRecord is one entry of dump history.
type DumpRecord struct {
	ID          string        `json:"id"`
	Scene       string        `json:"scene"`
	Strategy    Strategy      `json:"strategy"`
	Status      DumpStatus    `json:"status"`
	StorageKey  string        `json:"storage_key,omitempty"`
	URL         string        `json:"url,omitempty"`
	Format      string        `json:"format"`
	Compression string        `json:"compression,omitempty"`
	Stats       DumpStats     `json:"stats"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Duration    time.Duration `json:"duration"`
}

// Record summarizes a result for dump history.
func (r *DumpResult) Record() *DumpRecord {
	return &DumpRecord{
		ID:        r.ID,
		Scene:     r.Scene,
		Strategy:  r.Strategy,
		Status:    DumpStatusSucceeded,
		Stats:     r.Stats,
		CreatedAt: r.CreatedAt,
		Duration:  r.Duration,
	}
}
