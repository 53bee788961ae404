package avro

import "errors"

var (
	// ErrSchema is returned when schema text cannot be parsed.
	ErrSchema = errors.New("avro schema error")
	// ErrSchemaResolution is returned when a Value does not fit the schema.
	ErrSchemaResolution = errors.New("avro schema resolution error")
	// ErrEncoding is returned when serializing a resolved value fails.
	ErrEncoding = errors.New("avro encoding error")
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindLong
	KindDouble
	KindString
	KindBytes
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a schema-shaped value: the reduced set of Avro variants an
// Encoder narrows into the concrete schema (int, float, enum, fixed, record,
// union) at encode time. The set of implementations is closed.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	Null    struct{}
	Boolean bool
	Long    int64
	Double  float64
	String  string
	Bytes   []byte
	Array   []Value
	Map     map[string]Value
)

func (Null) Kind() Kind    { return KindNull }
func (Boolean) Kind() Kind { return KindBoolean }
func (Long) Kind() Kind    { return KindLong }
func (Double) Kind() Kind  { return KindDouble }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (Array) Kind() Kind   { return KindArray }
func (Map) Kind() Kind     { return KindMap }

func (Null) isValue()    {}
func (Boolean) isValue() {}
func (Long) isValue()    {}
func (Double) isValue()  {}
func (String) isValue()  {}
func (Bytes) isValue()   {}
func (Array) isValue()   {}
func (Map) isValue()     {}
