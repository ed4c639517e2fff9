// Package writer provides typed JSON encoders and decoders for dump
// artifacts.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter encodes values of T as JSON.
type JSONWriter[T any] struct {
	// Indent is the per-level indentation; empty means compact output.
	Indent string
	// EscapeHTML controls escaping of <, > and & inside strings. Report
	// values often contain type names like map[string]*T, so it is off by
	// default.
	EscapeHTML bool
}

// NewJSONWriter creates a compact writer.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates an indenting writer.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write encodes data to w.
func (w *JSONWriter[T]) Write(data T, out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetEscapeHTML(w.EscapeHTML)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// Bytes encodes data into a new buffer.
func (w *JSONWriter[T]) Bytes(data T) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONReader decodes values of T.
type JSONReader[T any] struct {
	// Strict rejects unknown fields.
	Strict bool
}

// NewJSONReader creates a lenient reader.
func NewJSONReader[T any]() *JSONReader[T] {
	return &JSONReader[T]{}
}

// Read decodes one value from r.
func (r *JSONReader[T]) Read(in io.Reader) (T, error) {
	var data T
	decoder := json.NewDecoder(in)
	if r.Strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&data); err != nil {
		return data, fmt.Errorf("failed to decode json: %w", err)
	}
	return data, nil
}
