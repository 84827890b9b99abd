package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_UnmarshalMixedValues(t *testing.T) {
	var p Params
	err := json.Unmarshal([]byte(`{
		"text": "hello",
		"temperature": 0.7,
		"stream": true,
		"missing": null,
		"tags": ["a", 1],
		"headers": {"X-Key": "v"}
	}`), &p)
	require.NoError(t, err)

	s, ok := p.String("text")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	n, ok := p.Number("temperature")
	assert.True(t, ok)
	assert.InDelta(t, 0.7, n, 1e-9)

	b, ok := p["stream"].Bool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, p["missing"].IsNull())

	items, ok := p["tags"].Items()
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, KindString, items[0].Kind())
	assert.Equal(t, KindNumber, items[1].Kind())

	fields, ok := p["headers"].Fields()
	require.True(t, ok)
	v, _ := fields.String("X-Key")
	assert.Equal(t, "v", v)
}

func TestValue_AccessorsRejectOtherKinds(t *testing.T) {
	_, ok := Number(1).Str()
	assert.False(t, ok)
	_, ok = String("1").Num()
	assert.False(t, ok)
	_, ok = Null().Bool()
	assert.False(t, ok)
	_, ok = String("x").Items()
	assert.False(t, ok)
	_, ok = Array().Fields()
	assert.False(t, ok)
}

func TestValue_MarshalJSON(t *testing.T) {
	p := Params{
		"a": Array(),
		"o": Object(nil),
		"n": Null(),
		"x": Number(2),
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[],"o":{},"n":null,"x":2}`, string(data))
}

func TestValue_CloneIsDeep(t *testing.T) {
	inner := Params{"k": String("v")}
	orig := Object(Params{"inner": Object(inner), "list": Array(String("a"))})

	cp := orig.Clone()
	inner["k"] = String("changed")

	fields, _ := cp.Fields()
	nested, _ := fields["inner"].Fields()
	s, _ := nested.String("k")
	assert.Equal(t, "v", s)
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind ValueKind
	}{
		{"nil", nil, KindNull},
		{"string", "s", KindString},
		{"int", 3, KindNumber},
		{"float32", float32(1.5), KindNumber},
		{"bool", false, KindBool},
		{"slice", []any{"a", 2}, KindArray},
		{"strings", []string{"a"}, KindArray},
		{"map", map[string]any{"a": 1}, KindObject},
		{"unsupported", struct{ A int }{1}, KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ValueOf(tt.in).Kind())
		})
	}
}

func TestParams_WithoutAndMerge(t *testing.T) {
	p := Params{"model": String("gpt-4o"), "text": String("hi"), "extra": Number(1)}

	rest := p.Without("model", "text")
	assert.Equal(t, []string{"extra"}, rest.Keys())
	assert.Len(t, p, 3, "Without must not mutate the receiver")

	var nilParams Params
	assert.NotNil(t, nilParams.Without("x"))

	merged := Params{"extra": Number(0), "kind": String("manual")}.Merge(rest)
	n, _ := merged.Number("extra")
	assert.Equal(t, float64(1), n)
	assert.Equal(t, []string{"extra", "kind"}, merged.Keys())
}

func TestParams_Interface(t *testing.T) {
	p := ParamsOf(map[string]any{"a": "x", "b": []any{true}})
	assert.Equal(t, map[string]any{"a": "x", "b": []any{true}}, p.Interface())
}
