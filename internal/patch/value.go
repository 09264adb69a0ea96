// Package patch implements the stats document mutation engine: a dotted-path
// resolver over JSON values and the five update operations (set, inc, delete,
// merge, append) applied by the stats service.
//
// Documents use the dynamic representation produced by encoding/json: nil,
// bool, float64, string, []any (ordered) and map[string]any. The root is
// conventionally an object, but any value round-trips.
package patch

import (
	"bytes"
	"encoding/json"
)

// Document is one application's mutable stats document. It is owned by a
// single invocation; nothing here is safe for concurrent use.
type Document struct {
	root any
}

// NewDocument returns an empty document with an object root.
func NewDocument() *Document {
	return &Document{root: map[string]any{}}
}

// FromJSON decodes a stored document. Empty or whitespace-only input yields
// an empty object, matching what a freshly created stats file looks like.
func FromJSON(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Value returns the document's root value.
func (d *Document) Value() any { return d.root }

// MarshalJSON encodes the document compactly.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

// Bytes returns the serialized document as stored.
func (d *Document) Bytes() ([]byte, error) {
	return d.MarshalJSON()
}

// Lookup reads the value at a dotted path. The second return is false when
// the path is invalid or does not exist.
func (d *Document) Lookup(path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	s, err := d.resolve(segs, false)
	if err != nil {
		return nil, false
	}
	return s.get()
}

// deepMerge merges src into dst key by key. Nested objects merge
// recursively; any other collision is won by src.
func deepMerge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if dv, ok := dst[k].(map[string]any); ok {
			if sv, ok := v.(map[string]any); ok {
				dst[k] = deepMerge(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// asNumber reports whether v is a JSON number. Decoded documents carry
// float64; the int cases cover values constructed in code.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
