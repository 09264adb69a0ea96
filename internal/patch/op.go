package patch

import (
	"encoding/json"
	"fmt"
)

// Operation kinds accepted on the wire.
const (
	OpSet    = "set"
	OpInc    = "inc"
	OpDelete = "delete"
	OpMerge  = "merge"
	OpAppend = "append"
)

// ValidationError reports a malformed operation. One of these aborts the
// whole batch; nothing before or after it is persisted.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Operation is one decoded, validated mutation instruction. Construct via
// DecodeOperation so kind-specific operand checks run before any document
// is touched.
type Operation struct {
	Kind  string
	Path  string
	Value any
	By    float64

	segments []string
}

// rawOperation is the wire form. Value and By stay raw so kind-specific
// decoding can produce precise error messages.
type rawOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
	By    json.RawMessage `json:"by"`
}

// DecodeOperation parses and validates one operation object.
func DecodeOperation(data json.RawMessage) (*Operation, error) {
	var raw rawOperation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, validationErrorf("each op must be an object")
	}

	segs, err := splitPath(raw.Path)
	if err != nil {
		return nil, err
	}
	op := &Operation{Kind: raw.Op, Path: raw.Path, segments: segs, By: 1}

	switch raw.Op {
	case OpSet:
		if raw.Value == nil {
			return nil, validationErrorf("set op requires 'value'")
		}
		if err := json.Unmarshal(raw.Value, &op.Value); err != nil {
			return nil, validationErrorf("set 'value' is not valid JSON")
		}
	case OpInc:
		if raw.By != nil {
			if err := json.Unmarshal(raw.By, &op.By); err != nil {
				return nil, validationErrorf("inc 'by' must be a number")
			}
		}
	case OpDelete:
		// no operand
	case OpMerge:
		var obj map[string]any
		if raw.Value == nil || json.Unmarshal(raw.Value, &obj) != nil || obj == nil {
			return nil, validationErrorf("merge 'value' must be an object")
		}
		op.Value = obj
	case OpAppend:
		if raw.Value != nil {
			if err := json.Unmarshal(raw.Value, &op.Value); err != nil {
				return nil, validationErrorf("append 'value' is not valid JSON")
			}
		}
	default:
		return nil, validationErrorf("unknown op: %s", raw.Op)
	}
	return op, nil
}

// DecodeOperations validates a whole batch up front, so a malformed
// operation is rejected before any earlier one has mutated a document.
func DecodeOperations(raw []json.RawMessage) ([]*Operation, error) {
	ops := make([]*Operation, 0, len(raw))
	for _, r := range raw {
		op, err := DecodeOperation(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
