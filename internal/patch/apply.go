package patch

import "errors"

// Apply executes one operation against the document, mutating it in place.
// The document is left unchanged when an error is returned: operand
// validation happened at decode time, and intermediate containers are only
// created along paths the operation then successfully writes.
func (d *Document) Apply(op *Operation) error {
	switch op.Kind {
	case OpSet:
		s, err := d.resolve(op.segments, true)
		if err != nil {
			return err
		}
		return s.set(op.Path, op.Value)

	case OpInc:
		s, err := d.resolve(op.segments, true)
		if err != nil {
			return err
		}
		curr := 0.0
		if v, ok := s.get(); ok && v != nil {
			n, numeric := asNumber(v)
			if !numeric {
				return &PathError{Kind: PathTypeMismatch, Path: op.Path}
			}
			curr = n
		}
		return s.set(op.Path, curr+op.By)

	case OpDelete:
		s, err := d.resolve(op.segments, false)
		if err != nil {
			var perr *PathError
			if errors.As(err, &perr) && perr.Kind == PathNotFound {
				return nil
			}
			return err
		}
		s.remove()
		return nil

	case OpMerge:
		s, err := d.resolve(op.segments, true)
		if err != nil {
			return err
		}
		operand := op.Value.(map[string]any)
		if curr, ok := s.get(); ok {
			if target, isObj := curr.(map[string]any); isObj {
				return s.set(op.Path, deepMerge(target, operand))
			}
		}
		// Non-object target (including absent): replaced wholesale.
		return s.set(op.Path, operand)

	case OpAppend:
		s, err := d.resolve(op.segments, true)
		if err != nil {
			return err
		}
		curr, ok := s.get()
		switch {
		case !ok || curr == nil:
			return s.set(op.Path, []any{op.Value})
		default:
			if arr, isArr := curr.([]any); isArr {
				return s.set(op.Path, append(arr, op.Value))
			}
			// Scalar target becomes a two-element array, old value first.
			return s.set(op.Path, []any{curr, op.Value})
		}
	}
	return validationErrorf("unknown op: %s", op.Kind)
}

// ApplyAll runs a batch strictly in order; each operation observes the
// effects of all prior ones. The first error aborts the batch.
func (d *Document) ApplyAll(ops []*Operation) error {
	for _, op := range ops {
		if err := d.Apply(op); err != nil {
			return err
		}
	}
	return nil
}
