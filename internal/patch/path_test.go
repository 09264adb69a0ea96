package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	segs, err := splitPath(" a.b.0 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "0"}, segs)

	// Stray separators collapse.
	segs, err = splitPath("a..b.")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, segs)

	for _, bad := range []string{"", "   ", "..."} {
		_, err := splitPath(bad)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "path %q", bad)
	}
}

func TestNumericSegmentNamesObjectKey(t *testing.T) {
	// A digits-only segment must not conjure an array out of nothing.
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"set","path":"buckets.2024.count","value":7}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"buckets":{"2024":{"count":7}}}`, string(out))
}

func TestNumericSegmentIndexesExistingArray(t *testing.T) {
	doc := docFromJSON(t, `{"arr":[{"n":1},{"n":2}]}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"set","path":"arr.1.n","value":5}`)))

	v, _ := doc.Lookup("arr.1.n")
	assert.Equal(t, float64(5), v)
}

func TestArraysAreNeverExtended(t *testing.T) {
	doc := docFromJSON(t, `{"arr":[1]}`)
	err := doc.Apply(mustOp(t, `{"op":"set","path":"arr.5","value":0}`))

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PathNotFound, perr.Kind)
}

func TestStringKeyAgainstArrayIsTypeMismatch(t *testing.T) {
	doc := docFromJSON(t, `{"arr":[1,2]}`)
	err := doc.Apply(mustOp(t, `{"op":"set","path":"arr.first","value":0}`))

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PathTypeMismatch, perr.Kind)
}

func TestWalkThroughScalarIsTypeMismatch(t *testing.T) {
	doc := docFromJSON(t, `{"a":5}`)
	err := doc.Apply(mustOp(t, `{"op":"set","path":"a.b","value":1}`))

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PathTypeMismatch, perr.Kind)

	// The scalar survives untouched.
	out, merr := doc.Bytes()
	require.NoError(t, merr)
	assert.JSONEq(t, `{"a":5}`, string(out))
}

func TestResolveWithoutCreationDoesNotMutate(t *testing.T) {
	doc := docFromJSON(t, `{"a":{}}`)
	_, ok := doc.Lookup("a.missing.deep")
	assert.False(t, ok)

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{}}`, string(out))
}

func TestDecodeOperationValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown kind", `{"op":"zap","path":"a"}`},
		{"missing path", `{"op":"set","value":1}`},
		{"blank path", `{"op":"set","path":"  ","value":1}`},
		{"set without value", `{"op":"set","path":"a"}`},
		{"inc by not a number", `{"op":"inc","path":"a","by":"two"}`},
		{"merge value not an object", `{"op":"merge","path":"a","value":[1,2]}`},
		{"merge value null", `{"op":"merge","path":"a","value":null}`},
		{"merge without value", `{"op":"merge","path":"a"}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeOperation(json.RawMessage(tc.raw))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestDecodeOperationsRejectsWholeBatch(t *testing.T) {
	_, err := DecodeOperations([]json.RawMessage{
		json.RawMessage(`{"op":"set","path":"a","value":1}`),
		json.RawMessage(`{"op":"zap","path":"b"}`),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFromJSONEmptyInput(t *testing.T) {
	doc, err := FromJSON([]byte("  \n"))
	require.NoError(t, err)

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestFromJSONNonObjectRoot(t *testing.T) {
	doc, err := FromJSON([]byte(`[1,2,3]`))
	require.NoError(t, err)

	v, ok := doc.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)
}
