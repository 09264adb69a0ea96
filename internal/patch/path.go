package patch

import (
	"fmt"
	"strconv"
	"strings"
)

// PathErrorKind classifies a failed path resolution.
type PathErrorKind int

const (
	// PathNotFound means a segment addressed a missing key or an array
	// index out of bounds.
	PathNotFound PathErrorKind = iota
	// PathTypeMismatch means a segment was applied to a node of an
	// incompatible kind (a string key against an array, any segment
	// against a scalar).
	PathTypeMismatch
)

// PathError reports why a path could not be resolved against a document.
type PathError struct {
	Kind PathErrorKind
	Path string
}

func (e *PathError) Error() string {
	switch e.Kind {
	case PathNotFound:
		return fmt.Sprintf("path not found: %s", e.Path)
	default:
		return fmt.Sprintf("type mismatch at path %s", e.Path)
	}
}

// splitPath parses a dotted path into segments. Blank paths and paths
// consisting only of separators are invalid.
func splitPath(path string) ([]string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, validationErrorf("missing or invalid path")
	}
	var segs []string
	for _, seg := range strings.Split(trimmed, ".") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return nil, validationErrorf("missing or invalid path")
	}
	return segs, nil
}

// isIndex reports whether a segment is all digits and can index an array.
func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// slot addresses the final segment of a resolved path: the container that
// holds it, plus a write-back used when the container itself must be
// replaced (slices reallocate when elements are removed).
type slot struct {
	parent any    // map[string]any or []any
	key    string // final segment
	idx    int    // parsed key when parent is an array
	store  func(any)
}

// get reads the addressed value. The second return is false when the slot
// is empty (missing key or out-of-bounds index).
func (s *slot) get() (any, bool) {
	switch p := s.parent.(type) {
	case map[string]any:
		v, ok := p[s.key]
		return v, ok
	case []any:
		if s.idx >= 0 && s.idx < len(p) {
			return p[s.idx], true
		}
	}
	return nil, false
}

// set writes the addressed value. Arrays accept in-bounds indexes only;
// they are never extended by a write.
func (s *slot) set(path string, v any) error {
	switch p := s.parent.(type) {
	case map[string]any:
		p[s.key] = v
		return nil
	case []any:
		if s.idx < 0 || s.idx >= len(p) {
			return &PathError{Kind: PathNotFound, Path: path}
		}
		p[s.idx] = v
		return nil
	}
	return &PathError{Kind: PathTypeMismatch, Path: path}
}

// remove deletes the addressed value. Removing an array element shifts the
// elements after it and writes the shortened slice back into its parent.
func (s *slot) remove() {
	switch p := s.parent.(type) {
	case map[string]any:
		delete(p, s.key)
	case []any:
		if s.idx >= 0 && s.idx < len(p) {
			s.store(append(p[:s.idx], p[s.idx+1:]...))
		}
	}
}

// resolve walks the document to the container of the final segment.
//
// Missing intermediates are created as empty objects only when createMissing
// is set and only under object parents. Arrays are never auto-extended: a
// digits-only segment indexes an existing array and otherwise names an
// object key, so "dot path" semantics never infer array intent.
func (d *Document) resolve(segs []string, createMissing bool) (*slot, error) {
	path := strings.Join(segs, ".")
	curr := d.root
	store := func(c any) { d.root = c }

	for _, seg := range segs[:len(segs)-1] {
		switch node := curr.(type) {
		case map[string]any:
			child, ok := node[seg]
			if !ok || child == nil {
				if !createMissing {
					return nil, &PathError{Kind: PathNotFound, Path: path}
				}
				child = map[string]any{}
				node[seg] = child
			}
			key := seg
			store = func(c any) { node[key] = c }
			curr = child
		case []any:
			if !isIndex(seg) {
				return nil, &PathError{Kind: PathTypeMismatch, Path: path}
			}
			idx, _ := strconv.Atoi(seg)
			if idx >= len(node) {
				return nil, &PathError{Kind: PathNotFound, Path: path}
			}
			i := idx
			store = func(c any) { node[i] = c }
			curr = node[idx]
		default:
			return nil, &PathError{Kind: PathTypeMismatch, Path: path}
		}
	}

	last := segs[len(segs)-1]
	switch node := curr.(type) {
	case map[string]any:
		return &slot{parent: node, key: last}, nil
	case []any:
		if !isIndex(last) {
			return nil, &PathError{Kind: PathTypeMismatch, Path: path}
		}
		idx, _ := strconv.Atoi(last)
		return &slot{parent: node, key: last, idx: idx, store: store}, nil
	default:
		return nil, &PathError{Kind: PathTypeMismatch, Path: path}
	}
}
