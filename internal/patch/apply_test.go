package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOp(t *testing.T, raw string) *Operation {
	t.Helper()
	op, err := DecodeOperation(json.RawMessage(raw))
	require.NoError(t, err)
	return op
}

func docFromJSON(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := FromJSON([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestSetCreatesParents(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"set","path":"a.b.c","value":123}`)))

	v, ok := doc.Lookup("a.b.c")
	require.True(t, ok)
	assert.Equal(t, float64(123), v)
}

func TestSetRoundTrips(t *testing.T) {
	doc := docFromJSON(t, `{"a":{"b":1},"l":[1,2]}`)
	cases := []struct {
		path  string
		value string
	}{
		{"a.b", `"text"`},
		{"a.c", `null`},
		{"l.1", `{"nested":true}`},
		{"fresh.child", `[1,2,3]`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(map[string]any{"op": "set", "path": tc.path, "value": json.RawMessage(tc.value)})
		require.NoError(t, err)
		require.NoError(t, doc.Apply(mustOp(t, string(raw))))

		var want any
		require.NoError(t, json.Unmarshal([]byte(tc.value), &want))
		got, ok := doc.Lookup(tc.path)
		require.True(t, ok, "path %s", tc.path)
		assert.Equal(t, want, got, "path %s", tc.path)
	}
}

func TestSetNullIsAValue(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"set","path":"x","value":null}`)))

	v, ok := doc.Lookup("x")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestIncDefaultAndBy(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"inc","path":"totals.visits"}`)))
	v, _ := doc.Lookup("totals.visits")
	assert.Equal(t, float64(1), v)

	require.NoError(t, doc.Apply(mustOp(t, `{"op":"inc","path":"totals.visits","by":3}`)))
	v, _ = doc.Lookup("totals.visits")
	assert.Equal(t, float64(4), v)
}

func TestIncTwiceFromAbsent(t *testing.T) {
	doc := NewDocument()
	op := mustOp(t, `{"op":"inc","path":"n"}`)
	require.NoError(t, doc.Apply(op))
	require.NoError(t, doc.Apply(op))

	v, _ := doc.Lookup("n")
	assert.Equal(t, float64(2), v)
}

func TestIncNullTargetReadsAsZero(t *testing.T) {
	doc := docFromJSON(t, `{"x":null}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"inc","path":"x","by":2}`)))

	v, _ := doc.Lookup("x")
	assert.Equal(t, float64(2), v)
}

func TestIncNonNumericTargetFails(t *testing.T) {
	doc := docFromJSON(t, `{"x":"not-a-number"}`)
	err := doc.Apply(mustOp(t, `{"op":"inc","path":"x"}`))

	var perr *PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PathTypeMismatch, perr.Kind)

	// Failed op leaves the document unchanged.
	v, _ := doc.Lookup("x")
	assert.Equal(t, "not-a-number", v)
}

func TestDeleteKeyAndIndex(t *testing.T) {
	doc := docFromJSON(t, `{"k1":1,"arr":[10,20]}`)

	require.NoError(t, doc.Apply(mustOp(t, `{"op":"delete","path":"k1"}`)))
	_, ok := doc.Lookup("k1")
	assert.False(t, ok)

	require.NoError(t, doc.Apply(mustOp(t, `{"op":"delete","path":"arr.0"}`)))
	v, _ := doc.Lookup("arr")
	assert.Equal(t, []any{float64(20)}, v)
}

func TestDeleteMissingPathIsIdempotent(t *testing.T) {
	doc := docFromJSON(t, `{"a":1}`)
	op := mustOp(t, `{"op":"delete","path":"nope.deep"}`)

	require.NoError(t, doc.Apply(op))
	require.NoError(t, doc.Apply(op))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}

func TestDeleteNestedKeyKeepsParent(t *testing.T) {
	doc := docFromJSON(t, `{"a":{"b":1}}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"delete","path":"a.b"}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{}}`, string(out))
}

func TestMergeDeep(t *testing.T) {
	doc := docFromJSON(t, `{"obj":{"a":{"x":1}}}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"merge","path":"obj","value":{"a":{"y":2},"b":3}}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"obj":{"a":{"x":1,"y":2},"b":3}}`, string(out))
}

func TestMergeOverwritesLeaves(t *testing.T) {
	doc := docFromJSON(t, `{"countries":{"MX":5}}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"merge","path":"countries","value":{"MX":10,"US":3}}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"countries":{"MX":10,"US":3}}`, string(out))
}

func TestMergeReplacesScalarTarget(t *testing.T) {
	doc := docFromJSON(t, `{"x":42}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"merge","path":"x","value":{"a":1}}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":{"a":1}}`, string(out))
}

func TestMergeIntoAbsentPath(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"merge","path":"deep.down","value":{"a":1}}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"deep":{"down":{"a":1}}}`, string(out))
}

func TestAppendToAbsentPath(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"append","path":"events","value":"a"}`)))

	v, _ := doc.Lookup("events")
	assert.Equal(t, []any{"a"}, v)
}

func TestAppendToScalarWrapsBoth(t *testing.T) {
	doc := docFromJSON(t, `{"x":"old"}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"append","path":"x","value":"new"}`)))

	v, _ := doc.Lookup("x")
	assert.Equal(t, []any{"old", "new"}, v)
}

func TestAppendPreservesOrder(t *testing.T) {
	doc := docFromJSON(t, `{"recentEvents":["a"]}`)
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"append","path":"recentEvents","value":"b"}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"recentEvents":["a","b"]}`, string(out))
}

func TestBatchAppliesInOrder(t *testing.T) {
	doc := NewDocument()
	ops, err := DecodeOperations([]json.RawMessage{
		json.RawMessage(`{"op":"set","path":"a","value":1}`),
		json.RawMessage(`{"op":"inc","path":"a","by":2}`),
		json.RawMessage(`{"op":"append","path":"a","value":"tail"}`),
	})
	require.NoError(t, err)
	require.NoError(t, doc.ApplyAll(ops))

	v, _ := doc.Lookup("a")
	assert.Equal(t, []any{float64(3), "tail"}, v)
}

func TestIncScenarioPageViews(t *testing.T) {
	doc := NewDocument()
	require.NoError(t, doc.Apply(mustOp(t, `{"op":"inc","path":"totals.pageViews"}`)))

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"totals":{"pageViews":1}}`, string(out))
}
