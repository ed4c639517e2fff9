// Package testutil provides utilities for testing.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heap-dump/pkg/roots"
)

// Module is the module name the graph fixtures register their holders under.
const Module = "fixtures"

// Shared is a pointer-free payload reachable from more than one owner.
type Shared struct {
	Payload [4]int64
}

// Pair holds two references that may alias.
type Pair struct {
	A *Shared
	B *Shared
}

// Link is a singly linked list node; Next may close a cycle.
type Link struct {
	Next  *Link
	Value int64
}

// Texts holds two strings that may or may not share storage.
type Texts struct {
	First  string
	Second string
}

// Grid holds a rank-2 sequence: 3 rows of 4 int32.
type Grid struct {
	Cells [][4]int32
}

// SharedPair builds a Pair whose fields point at the same Shared.
func SharedPair() *Pair {
	s := &Shared{Payload: [4]int64{1, 2, 3, 4}}
	return &Pair{A: s, B: s}
}

// SelfLoop builds a Link whose Next is itself.
func SelfLoop() *Link {
	l := &Link{Value: 7}
	l.Next = l
	return l
}

// Ring builds a cycle of n links.
func Ring(n int) *Link {
	head := &Link{Value: 0}
	cur := head
	for i := 1; i < n; i++ {
		cur.Next = &Link{Value: int64(i)}
		cur = cur.Next
	}
	cur.Next = head
	return head
}

// EqualTexts builds Texts with equal content in distinct allocations.
func EqualTexts(s string) *Texts {
	return &Texts{First: strings.Clone(s), Second: strings.Clone(s)}
}

// SameText builds Texts whose fields hold one string twice.
func SameText(s string) *Texts {
	c := strings.Clone(s)
	return &Texts{First: c, Second: c}
}

// NewGrid builds a 3x4 Grid.
func NewGrid() *Grid {
	return &Grid{Cells: make([][4]int32, 3)}
}

// Statics registers each value under its own holder field and returns the
// registry. values alternates field name and pointer to variable.
func Statics(t *testing.T, holder string, values ...interface{}) *roots.Registry {
	t.Helper()
	reg := roots.NewRegistry()
	for i := 0; i+1 < len(values); i += 2 {
		name, ok := values[i].(string)
		if !ok {
			t.Fatalf("field name at %d is %T, want string", i, values[i])
		}
		if err := reg.Var(Module, holder, name, values[i+1]); err != nil {
			t.Fatalf("register %s.%s: %v", holder, name, err)
		}
	}
	return reg
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
