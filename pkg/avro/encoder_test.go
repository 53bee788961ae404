package avro

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/json2avro/internal/testutil"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatOCF, "ocf": FormatOCF, "binary": FormatBinary, "single": FormatSingleObject} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("json")
	assert.Error(t, err)

	_, err = NewEncoder("xml")
	assert.Error(t, err)
}

func TestEncoderRoundTrip(t *testing.T) {
	s, err := ParseSchema(testutil.InteropSchema())
	require.NoError(t, err)

	for _, format := range []Format{FormatOCF, FormatBinary, FormatSingleObject} {
		t.Run(string(format), func(t *testing.T) {
			enc, err := NewEncoder(format)
			require.NoError(t, err)
			assert.Equal(t, format, enc.Format())

			data, err := enc.Encode(s, interopValue())
			require.NoError(t, err)
			require.NotEmpty(t, data)

			switch format {
			case FormatOCF:
				assert.True(t, bytes.HasPrefix(data, []byte("Obj\x01")), "container file magic")
			case FormatSingleObject:
				assert.True(t, bytes.HasPrefix(data, []byte{0xc3, 0x01}), "single-object marker")
			}

			decoded, err := Decode(s, format, data)
			require.NoError(t, err)
			require.Len(t, decoded, 1)

			rec, ok := decoded[0].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, int32(1), rec["intField"])
			assert.Equal(t, int64(2), rec["longField"])
			assert.Equal(t, "x", rec["stringField"])
			assert.Equal(t, true, rec["boolField"])
			assert.Equal(t, float32(1.5), rec["floatField"])
			assert.Equal(t, 2.5, rec["doubleField"])
			assert.Equal(t, []byte("AA=="), rec["bytesField"])
			assert.Nil(t, rec["nullField"])
			assert.Equal(t, []any{1.0, 2.0}, rec["arrayField"])
			assert.Equal(t, map[string]any{"a": map[string]any{"label": "x"}}, rec["mapField"])
			assert.Equal(t, map[string]any{"boolean": true}, rec["unionField"])
			assert.Equal(t, "A", rec["enumField"])
			assert.Equal(t, make([]byte, 16), rec["fixedField"])

			node, ok := rec["recordField"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "root", node["label"])
			assert.Empty(t, node["children"])
		})
	}
}

func TestEncodeMapRoundTrip(t *testing.T) {
	s, err := ParseSchema(`{"type":"map","values":["null","long","string",{"type":"array","items":"double"}]}`)
	require.NoError(t, err)

	enc, err := NewEncoder(FormatBinary)
	require.NoError(t, err)

	in := Map{
		"a": Long(1),
		"b": String("two"),
		"c": Null{},
		"d": Array{Double(0.5)},
	}
	data, err := enc.Encode(s, in)
	require.NoError(t, err)

	decoded, err := Decode(s, FormatBinary, data)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{
		"a": map[string]any{"long": int64(1)},
		"b": map[string]any{"string": "two"},
		"c": nil,
		"d": map[string]any{"array": []any{0.5}},
	}}, decoded)
}

func TestEncodeLogicalTypeUnions(t *testing.T) {
	testCases := []struct {
		value   Value
		want    any
		name    string
		schema  string
		wantKey string
	}{
		{
			name:    "uuid",
			schema:  `["null",{"type":"string","logicalType":"uuid"}]`,
			value:   String("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			wantKey: "string",
			want:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		},
		{
			name:    "timestamp-millis",
			schema:  `["null",{"type":"long","logicalType":"timestamp-millis"}]`,
			value:   Long(1700000000000),
			wantKey: "long.timestamp-millis",
		},
	}

	enc, err := NewEncoder(FormatBinary)
	require.NoError(t, err)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := ParseSchema(tc.schema)
			require.NoError(t, err)

			data, err := enc.Encode(s, tc.value)
			require.NoError(t, err)

			decoded, err := Decode(s, FormatBinary, data)
			require.NoError(t, err)
			require.Len(t, decoded, 1)
			branch, ok := decoded[0].(map[string]any)
			require.True(t, ok)
			require.Contains(t, branch, tc.wantKey)
			if tc.want != nil {
				assert.Equal(t, tc.want, branch[tc.wantKey])
			}
		})
	}
}

func TestEncodeResolutionFailure(t *testing.T) {
	s, err := ParseSchema(testutil.InteropSchema())
	require.NoError(t, err)

	v := interopValue()
	v["enumField"] = String("Z")

	enc, err := NewEncoder(FormatOCF)
	require.NoError(t, err)

	data, err := enc.Encode(s, v)
	assert.ErrorIs(t, err, ErrSchemaResolution)
	assert.Nil(t, data)
}

func TestDecodeGarbage(t *testing.T) {
	s, err := ParseSchema(`"long"`)
	require.NoError(t, err)

	_, err = Decode(s, FormatOCF, []byte("not a container"))
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = Decode(s, FormatBinary, []byte{0x02, 0x00})
	assert.ErrorIs(t, err, ErrEncoding, "trailing bytes")
}
