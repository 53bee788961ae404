package avro

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

// Type is the Avro type of a schema node.
type Type string

const (
	TypeNull    Type = "null"
	TypeBoolean Type = "boolean"
	TypeInt     Type = "int"
	TypeLong    Type = "long"
	TypeFloat   Type = "float"
	TypeDouble  Type = "double"
	TypeBytes   Type = "bytes"
	TypeString  Type = "string"
	TypeRecord  Type = "record"
	TypeEnum    Type = "enum"
	TypeFixed   Type = "fixed"
	TypeArray   Type = "array"
	TypeMap     Type = "map"
	TypeUnion   Type = "union"
)

var primitives = map[string]Type{
	"null":    TypeNull,
	"boolean": TypeBoolean,
	"int":     TypeInt,
	"long":    TypeLong,
	"float":   TypeFloat,
	"double":  TypeDouble,
	"bytes":   TypeBytes,
	"string":  TypeString,
}

// Node is one type in a parsed schema. Named types referenced more than once
// (including recursively) share a single Node.
type Node struct {
	Type Type
	// Name is the full name of record, enum and fixed types.
	Name        string
	LogicalType string
	Fields      []*Field
	Symbols     []string
	Size        int
	Items       *Node
	Values      *Node
	Branches    []*Node
}

// Field is a record field.
type Field struct {
	Name       string
	Type       *Node
	Default    any
	HasDefault bool
}

// Schema is a parsed Avro schema. It is immutable and safe for concurrent
// use.
type Schema struct {
	root  *Node
	codec *goavro.Codec
	text  string
}

// ParseSchema parses Avro schema JSON text.
func ParseSchema(text string) (*Schema, error) {
	var raw any
	if err := gojson.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	p := &schemaParser{named: map[string]*Node{}}
	root, err := p.parse(raw, "")
	if err != nil {
		return nil, err
	}

	codec, err := goavro.NewCodec(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	return &Schema{root: root, codec: codec, text: text}, nil
}

// MustParseSchema is like ParseSchema but panics on error. Intended for
// embedded schema literals.
func MustParseSchema(text string) *Schema {
	s, err := ParseSchema(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Root returns the top-level schema node.
func (s *Schema) Root() *Node { return s.root }

// Codec returns the goavro codec backing the schema.
func (s *Schema) Codec() *goavro.Codec { return s.codec }

// String returns the schema text the Schema was parsed from.
func (s *Schema) String() string { return s.text }

type schemaParser struct {
	named map[string]*Node
}

func (p *schemaParser) parse(raw any, namespace string) (*Node, error) {
	switch t := raw.(type) {
	case string:
		return p.reference(t, namespace)
	case []any:
		return p.union(t, namespace)
	case map[string]any:
		return p.complex(t, namespace)
	default:
		return nil, fmt.Errorf("%w: unexpected schema element %v", ErrSchema, raw)
	}
}

func (p *schemaParser) reference(name, namespace string) (*Node, error) {
	if typ, ok := primitives[name]; ok {
		return &Node{Type: typ}, nil
	}
	if !strings.Contains(name, ".") && namespace != "" {
		if n, ok := p.named[namespace+"."+name]; ok {
			return n, nil
		}
	}
	if n, ok := p.named[name]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrSchema, name)
}

func (p *schemaParser) union(raw []any, namespace string) (*Node, error) {
	n := &Node{Type: TypeUnion}
	for _, b := range raw {
		if _, nested := b.([]any); nested {
			return nil, fmt.Errorf("%w: unions may not immediately contain unions", ErrSchema)
		}
		branch, err := p.parse(b, namespace)
		if err != nil {
			return nil, err
		}
		n.Branches = append(n.Branches, branch)
	}
	return n, nil
}

func (p *schemaParser) complex(raw map[string]any, namespace string) (*Node, error) {
	switch typ := raw["type"].(type) {
	case string:
		switch typ {
		case "record", "error":
			return p.record(raw, namespace)
		case "enum":
			return p.enum(raw, namespace)
		case "fixed":
			return p.fixed(raw, namespace)
		case "array":
			items, err := p.parse(raw["items"], namespace)
			if err != nil {
				return nil, fmt.Errorf("array items: %w", err)
			}
			return &Node{Type: TypeArray, Items: items}, nil
		case "map":
			values, err := p.parse(raw["values"], namespace)
			if err != nil {
				return nil, fmt.Errorf("map values: %w", err)
			}
			return &Node{Type: TypeMap, Values: values}, nil
		}
		if prim, ok := primitives[typ]; ok {
			logical, _ := raw["logicalType"].(string)
			return &Node{Type: prim, LogicalType: logical}, nil
		}
		return p.reference(typ, namespace)
	case map[string]any, []any:
		return p.parse(typ, namespace)
	default:
		return nil, fmt.Errorf("%w: missing or invalid \"type\" attribute", ErrSchema)
	}
}

func (p *schemaParser) define(raw map[string]any, typ Type, enclosing string) (*Node, string, error) {
	name, _ := raw["name"].(string)
	if name == "" {
		return nil, "", fmt.Errorf("%w: %s requires a name", ErrSchema, typ)
	}
	ns, _ := raw["namespace"].(string)
	full, namespace := qualify(name, ns, enclosing)
	if _, exists := p.named[full]; exists {
		return nil, "", fmt.Errorf("%w: duplicate definition of %q", ErrSchema, full)
	}
	n := &Node{Type: typ, Name: full}
	p.named[full] = n
	return n, namespace, nil
}

func (p *schemaParser) record(raw map[string]any, enclosing string) (*Node, error) {
	n, namespace, err := p.define(raw, TypeRecord, enclosing)
	if err != nil {
		return nil, err
	}
	fields, ok := raw["fields"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: record %q requires fields", ErrSchema, n.Name)
	}
	for _, rf := range fields {
		fm, ok := rf.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: record %q has an invalid field", ErrSchema, n.Name)
		}
		fname, _ := fm["name"].(string)
		if fname == "" {
			return nil, fmt.Errorf("%w: record %q has a field without name", ErrSchema, n.Name)
		}
		ftype, err := p.parse(fm["type"], namespace)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", n.Name, fname, err)
		}
		def, hasDefault := fm["default"]
		n.Fields = append(n.Fields, &Field{Name: fname, Type: ftype, Default: def, HasDefault: hasDefault})
	}
	return n, nil
}

func (p *schemaParser) enum(raw map[string]any, enclosing string) (*Node, error) {
	n, _, err := p.define(raw, TypeEnum, enclosing)
	if err != nil {
		return nil, err
	}
	symbols, ok := raw["symbols"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: enum %q requires symbols", ErrSchema, n.Name)
	}
	for _, s := range symbols {
		sym, ok := s.(string)
		if !ok {
			return nil, fmt.Errorf("%w: enum %q has a non-string symbol", ErrSchema, n.Name)
		}
		n.Symbols = append(n.Symbols, sym)
	}
	return n, nil
}

func (p *schemaParser) fixed(raw map[string]any, enclosing string) (*Node, error) {
	n, _, err := p.define(raw, TypeFixed, enclosing)
	if err != nil {
		return nil, err
	}
	size, ok := raw["size"].(float64)
	if !ok || size < 0 || size != float64(int(size)) {
		return nil, fmt.Errorf("%w: fixed %q requires a non-negative integer size", ErrSchema, n.Name)
	}
	n.Size = int(size)
	n.LogicalType, _ = raw["logicalType"].(string)
	return n, nil
}

// qualify returns the full name of a named type and the namespace its
// children inherit.
func qualify(name, namespace, enclosing string) (string, string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name, name[:i]
	}
	if namespace == "" {
		namespace = enclosing
	}
	if namespace == "" {
		return name, ""
	}
	return namespace + "." + name, namespace
}
