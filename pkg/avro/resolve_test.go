package avro

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/json2avro/internal/testutil"
)

func interopValue() Map {
	return Map{
		"intField":    Long(1),
		"longField":   Long(2),
		"stringField": String("x"),
		"boolField":   Boolean(true),
		"floatField":  Double(1.5),
		"doubleField": Double(2.5),
		"bytesField":  String("AA=="),
		"nullField":   Null{},
		"arrayField":  Array{Double(1), Double(2)},
		"mapField":    Map{"a": Map{"label": String("x")}},
		"unionField":  Boolean(true),
		"enumField":   String("A"),
		"fixedField":  String(strings.Repeat("0", 32)),
		"recordField": Map{"label": String("root"), "children": Array{}},
	}
}

func TestResolveInterop(t *testing.T) {
	s, err := ParseSchema(testutil.InteropSchema())
	require.NoError(t, err)

	got, err := Resolve(s, interopValue())
	require.NoError(t, err)

	want := map[string]any{
		"intField":    int32(1),
		"longField":   int64(2),
		"stringField": "x",
		"boolField":   true,
		"floatField":  float32(1.5),
		"doubleField": 2.5,
		"bytesField":  []byte("AA=="),
		"nullField":   nil,
		"arrayField":  []any{1.0, 2.0},
		"mapField":    map[string]any{"a": map[string]any{"label": "x"}},
		"unionField":  map[string]any{"boolean": true},
		"enumField":   "A",
		"fixedField":  make([]byte, 16),
		"recordField": map[string]any{"label": "root", "children": []any{}},
	}
	assert.Equal(t, want, got)
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		value  Value
		want   any
		name   string
		schema string
	}{
		{name: "long widens to double", schema: `"double"`, value: Long(3), want: 3.0},
		{name: "long widens to float", schema: `"float"`, value: Long(3), want: float32(3)},
		{name: "bytes as string", schema: `"string"`, value: Bytes("hi"), want: "hi"},
		{name: "raw fixed", schema: `{"type":"fixed","name":"F","size":2}`, value: String("ab"), want: []byte("ab")},
		{name: "hex fixed", schema: `{"type":"fixed","name":"F","size":2}`, value: String("0aff"), want: []byte{0x0a, 0xff}},
		{name: "fixed from bytes", schema: `{"type":"fixed","name":"F","size":1}`, value: Bytes{7}, want: []byte{7}},
		{name: "nullable null", schema: `["null","string"]`, value: Null{}, want: nil},
		{name: "nullable string", schema: `["null","string"]`, value: String("s"), want: map[string]any{"string": "s"}},
		{name: "union prefers natural branch", schema: `["string","double","long"]`, value: Long(1), want: map[string]any{"long": int64(1)}},
		{name: "union narrows when needed", schema: `["boolean","double"]`, value: Long(1), want: map[string]any{"double": 1.0}},
		{name: "union enum symbol", schema: `[{"type":"enum","name":"ns.E","symbols":["A"]},"string"]`, value: String("A"), want: map[string]any{"ns.E": "A"}},
		{name: "union enum falls through", schema: `[{"type":"enum","name":"ns.E","symbols":["A"]},"string"]`, value: String("B"), want: map[string]any{"string": "B"}},
		{
			name:   "union record by full name",
			schema: `["null",{"type":"record","name":"R","namespace":"ns","fields":[{"name":"a","type":"int"}]}]`,
			value:  Map{"a": Long(5)},
			want:   map[string]any{"ns.R": map[string]any{"a": int32(5)}},
		},
		{
			name:   "union logical type key",
			schema: `["null",{"type":"long","logicalType":"timestamp-millis"}]`,
			value:  Long(1700000000000),
			want:   map[string]any{"long.timestamp-millis": int64(1700000000000)},
		},
		{
			name:   "union uuid uses plain string key",
			schema: `["null",{"type":"string","logicalType":"uuid"}]`,
			value:  String("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			want:   map[string]any{"string": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		},
		{
			name:   "absent field with default",
			schema: `{"type":"record","name":"R","fields":[{"name":"a","type":"int","default":7},{"name":"b","type":"string"}]}`,
			value:  Map{"b": String("x"), "extra": Boolean(true)},
			want:   map[string]any{"b": "x"},
		},
		{name: "nil is null", schema: `"null"`, value: nil, want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := ParseSchema(tc.schema)
			require.NoError(t, err)

			got, err := Resolve(s, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveDecimal(t *testing.T) {
	s, err := ParseSchema(`{"type":"bytes","logicalType":"decimal","precision":4,"scale":2}`)
	require.NoError(t, err)

	for _, v := range []Value{String("12.34"), Double(12.34)} {
		got, err := Resolve(s, v)
		require.NoError(t, err)
		r, ok := got.(*big.Rat)
		require.True(t, ok)
		f, _ := r.Float64()
		assert.InDelta(t, 12.34, f, 1e-9)
	}

	_, err = Resolve(s, String("twelve"))
	assert.ErrorIs(t, err, ErrSchemaResolution)
}

func TestResolveErrors(t *testing.T) {
	testCases := []struct {
		value    Value
		name     string
		schema   string
		wantPath string
	}{
		{name: "int overflow", schema: `"int"`, value: Long(1 << 40), wantPath: "/"},
		{name: "double is not long", schema: `"long"`, value: Double(1.5), wantPath: "/"},
		{name: "unknown enum symbol", schema: `{"type":"enum","name":"E","symbols":["A"]}`, value: String("Z"), wantPath: "/"},
		{name: "fixed size mismatch", schema: `{"type":"fixed","name":"F","size":16}`, value: String("short"), wantPath: "/"},
		{name: "no union branch", schema: `["boolean","double"]`, value: String("x"), wantPath: "/"},
		{name: "invalid utf8 string", schema: `"string"`, value: Bytes{0xff}, wantPath: "/"},
		{
			name:     "missing required field",
			schema:   `{"type":"record","name":"R","fields":[{"name":"a","type":"int"}]}`,
			value:    Map{},
			wantPath: "/",
		},
		{
			name:     "nested failure path",
			schema:   `{"type":"record","name":"R","fields":[{"name":"xs","type":{"type":"array","items":"int"}}]}`,
			value:    Map{"xs": Array{Long(1), String("two")}},
			wantPath: "/xs/1",
		},
		{
			name:     "map value failure path",
			schema:   `{"type":"map","values":"boolean"}`,
			value:    Map{"k/1": Long(1)},
			wantPath: "/k~11",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := ParseSchema(tc.schema)
			require.NoError(t, err)

			got, err := Resolve(s, tc.value)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrSchemaResolution)
			assert.Contains(t, err.Error(), "at "+tc.wantPath)
		})
	}
}
