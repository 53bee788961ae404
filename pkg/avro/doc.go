// Package avro parses Avro schemas and encodes schema-shaped values
// against them.
//
// A Value carries only the coarse Avro categories a JSON document can yield
// (null, boolean, long, double, string, bytes, array, map). Resolve performs
// the schema-directed narrowing: int from long, float from double, enum and
// fixed from string, record from map, and union branch selection. Encoder
// then serializes the resolved datum with github.com/linkedin/goavro/v2 as an
// object container file, a bare binary datum, or a single-object encoding.
//
// Schemas are immutable once parsed and can be shared between goroutines.
package avro
