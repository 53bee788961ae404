// Package jsonv holds the untyped, self-describing value tree produced by
// parsing a JSON document, and the parser that builds it.
//
// A Value is one of Null, Bool, Number, String, Array or Object. Numbers keep
// their literal text so downstream consumers decide how to interpret them
// without losing precision.
package jsonv

import (
	gojson "github.com/goccy/go-json"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an untyped JSON value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	// Null is the JSON null literal.
	Null struct{}
	// Bool is a JSON boolean.
	Bool bool
	// Number is a JSON number in its literal form, e.g. "1", "-2.5e3".
	Number string
	// String is a JSON string.
	String string
	// Array is an ordered JSON array.
	Array []Value
	// Object is a JSON object. Keys are unique.
	Object map[string]Value
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (Array) isValue()  {}
func (Object) isValue() {}

// Native converts v into the representation encoding/json style decoders
// produce with UseNumber: nil, bool, json.Number, string, []any and
// map[string]any.
func Native(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		return gojson.Number(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Native(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Native(e)
		}
		return out
	default:
		return nil
	}
}

// Marshal encodes v back into JSON text.
func Marshal(v Value) ([]byte, error) {
	return gojson.Marshal(Native(v))
}
