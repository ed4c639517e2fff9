// Package filter selects static holders by module path and groups report
// type names into coarse categories.
package filter

import (
	"fmt"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// TypeCategory represents the category of a reported type.
type TypeCategory int

const (
	// CategoryUnknown indicates the type category is unknown.
	CategoryUnknown TypeCategory = iota
	// CategoryBuiltin covers unqualified types: scalars, string, and
	// composites of them.
	CategoryBuiltin
	// CategoryRuntime covers standard library packages.
	CategoryRuntime
	// CategoryLibrary covers qualified types outside the application.
	CategoryLibrary
	// CategoryApplication covers packages registered as application code.
	CategoryApplication
)

// String returns the string representation of the category.
func (c TypeCategory) String() string {
	switch c {
	case CategoryBuiltin:
		return "builtin"
	case CategoryRuntime:
		return "runtime"
	case CategoryLibrary:
		return "library"
	case CategoryApplication:
		return "application"
	default:
		return "unknown"
	}
}

// TypeFilter matches holders against include and exclude module prefixes.
// Exclusion wins; an empty include list selects everything not excluded.
// It is safe for concurrent use.
type TypeFilter struct {
	mu sync.RWMutex

	include []string
	exclude []string

	runtimePackages mapset.Set[string]
	appPackages     mapset.Set[string]

	matchCache     map[string]bool
	categoryCache  map[string]TypeCategory
	cacheSizeLimit int
}

// NewTypeFilter creates a filter. Entries are module paths ("game",
// "engine/render"), qualified holder names ("game.World"), or raw prefixes
// ending in "*".
func NewTypeFilter(include, exclude []string) *TypeFilter {
	f := &TypeFilter{
		runtimePackages: mapset.NewSet(defaultRuntimePackages...),
		appPackages:     mapset.NewSet[string](),
		matchCache:      make(map[string]bool),
		categoryCache:   make(map[string]TypeCategory),
		cacheSizeLimit:  10000,
	}
	for _, p := range include {
		f.AddInclude(p)
	}
	for _, p := range exclude {
		f.AddExclude(p)
	}
	return f
}

var defaultRuntimePackages = []string{
	"atomic", "big", "bufio", "bytes", "context", "errors", "fmt", "heap",
	"http", "io", "json", "list", "log", "net", "os", "reflect", "regexp",
	"ring", "runtime", "slog", "sort", "strconv", "strings", "sync",
	"syscall", "template", "time", "unsafe", "url", "xml",
}

// AddInclude adds an include prefix. The last path element of an include
// entry also registers as an application package for Categorize.
func (f *TypeFilter) AddInclude(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.include = append(f.include, prefix)
	if pkg := packageOf(prefix); pkg != "" {
		f.appPackages.Add(pkg)
	}
	f.clearCacheLocked()
}

// AddExclude adds an exclude prefix.
func (f *TypeFilter) AddExclude(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exclude = append(f.exclude, prefix)
	f.clearCacheLocked()
}

// AddApplicationPackage marks a package name as application code.
func (f *TypeFilter) AddApplicationPackage(pkg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appPackages.Add(pkg)
	f.clearCacheLocked()
}

// Match reports whether the holder module.name is selected.
func (f *TypeFilter) Match(module, name string) bool {
	key := module + "." + name

	f.mu.RLock()
	if hit, ok := f.matchCache[key]; ok {
		f.mu.RUnlock()
		return hit
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	hit := f.matchLocked(module, key)
	if len(f.matchCache) < f.cacheSizeLimit {
		f.matchCache[key] = hit
	}
	return hit
}

func (f *TypeFilter) matchLocked(module, qualified string) bool {
	for _, p := range f.exclude {
		if matchesEntry(p, module, qualified) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, p := range f.include {
		if matchesEntry(p, module, qualified) {
			return true
		}
	}
	return false
}

func matchesEntry(entry, module, qualified string) bool {
	if raw, ok := strings.CutSuffix(entry, "*"); ok {
		return strings.HasPrefix(qualified, raw)
	}
	return module == entry ||
		strings.HasPrefix(module, entry+"/") ||
		qualified == entry
}

// Categorize classifies a type name as rendered in reports, such as
// "*game.Player" or "map[string]int".
func (f *TypeFilter) Categorize(typeName string) TypeCategory {
	if typeName == "" || typeName == "-null-" {
		return CategoryUnknown
	}

	f.mu.RLock()
	if c, ok := f.categoryCache[typeName]; ok {
		f.mu.RUnlock()
		return c
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.categorizeLocked(typeName)
	if len(f.categoryCache) < f.cacheSizeLimit {
		f.categoryCache[typeName] = c
	}
	return c
}

func (f *TypeFilter) categorizeLocked(typeName string) TypeCategory {
	pkg := leadingPackage(typeName)
	switch {
	case pkg == "":
		return CategoryBuiltin
	case f.appPackages.Contains(pkg):
		return CategoryApplication
	case f.runtimePackages.Contains(pkg):
		return CategoryRuntime
	default:
		return CategoryLibrary
	}
}

// leadingPackage strips pointer, slice, array and map key decorations and
// returns the package qualifier of the element type, or "".
func leadingPackage(typeName string) string {
	s := typeName
	for {
		switch {
		case strings.HasPrefix(s, "*"):
			s = s[1:]
		case strings.HasPrefix(s, "[]"):
			s = s[2:]
		case strings.HasPrefix(s, "["):
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return ""
			}
			s = s[end+1:]
		case strings.HasPrefix(s, "map["):
			end := strings.LastIndexByte(s, ']')
			if end < 0 {
				return ""
			}
			s = s[end+1:]
		default:
			dot := strings.IndexByte(s, '.')
			if dot <= 0 {
				return ""
			}
			return s[:dot]
		}
	}
}

func packageOf(entry string) string {
	entry = strings.TrimSuffix(entry, "*")
	if i := strings.LastIndexByte(entry, '/'); i >= 0 {
		entry = entry[i+1:]
	}
	if i := strings.IndexByte(entry, '.'); i >= 0 {
		entry = entry[:i]
	}
	return entry
}

// ClearCache clears the lookup caches.
func (f *TypeFilter) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCacheLocked()
}

func (f *TypeFilter) clearCacheLocked() {
	f.matchCache = make(map[string]bool)
	f.categoryCache = make(map[string]TypeCategory)
}

// CacheStats returns the number of cached match and category results.
func (f *TypeFilter) CacheStats() (matches, categories int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.matchCache), len(f.categoryCache)
}

// String describes the filter for error messages.
func (f *TypeFilter) String() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return fmt.Sprintf("include=%v exclude=%v", f.include, f.exclude)
}
