package avro

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"slices"
	"unicode/utf8"

	"github.com/edgeflare/json2avro/internal/jsonptr"
)

// Resolve narrows v into the goavro native form of the schema: Long becomes
// int32 for int, Double becomes float32 for float, String becomes an enum
// symbol or fixed bytes, Map becomes a record, and union values are wrapped
// with the name of the selected branch.
func Resolve(s *Schema, v Value) (any, error) {
	return resolve(s.root, v, "")
}

func resolve(n *Node, v Value, path string) (any, error) {
	if v == nil {
		v = Null{}
	}

	switch n.Type {
	case TypeNull:
		if _, ok := v.(Null); ok {
			return nil, nil
		}
	case TypeBoolean:
		if b, ok := v.(Boolean); ok {
			return bool(b), nil
		}
	case TypeInt:
		if l, ok := v.(Long); ok {
			if l < math.MinInt32 || l > math.MaxInt32 {
				return nil, fmt.Errorf("%w: %d overflows int at %s", ErrSchemaResolution, l, jsonptr.OrRoot(path))
			}
			return int32(l), nil
		}
	case TypeLong:
		if l, ok := v.(Long); ok {
			return int64(l), nil
		}
	case TypeFloat:
		switch t := v.(type) {
		case Long:
			return float32(t), nil
		case Double:
			return float32(t), nil
		}
	case TypeDouble:
		switch t := v.(type) {
		case Long:
			return float64(t), nil
		case Double:
			return float64(t), nil
		}
	case TypeString:
		switch t := v.(type) {
		case String:
			return string(t), nil
		case Bytes:
			if utf8.Valid(t) {
				return string(t), nil
			}
		}
	case TypeBytes:
		if n.LogicalType == "decimal" {
			return decimal(n, v, path)
		}
		switch t := v.(type) {
		case Bytes:
			return []byte(t), nil
		case String:
			return []byte(t), nil
		}
	case TypeFixed:
		if n.LogicalType == "decimal" {
			return decimal(n, v, path)
		}
		return fixed(n, v, path)
	case TypeEnum:
		if s, ok := v.(String); ok {
			if !slices.Contains(n.Symbols, string(s)) {
				return nil, fmt.Errorf("%w: %q is not a symbol of enum %s at %s", ErrSchemaResolution, s, n.Name, jsonptr.OrRoot(path))
			}
			return string(s), nil
		}
	case TypeArray:
		if arr, ok := v.(Array); ok {
			out := make([]any, len(arr))
			for i, e := range arr {
				native, err := resolve(n.Items, e, jsonptr.Index(path, i))
				if err != nil {
					return nil, err
				}
				out[i] = native
			}
			return out, nil
		}
	case TypeMap:
		if m, ok := v.(Map); ok {
			out := make(map[string]any, len(m))
			for k, e := range m {
				native, err := resolve(n.Values, e, jsonptr.Key(path, k))
				if err != nil {
					return nil, err
				}
				out[k] = native
			}
			return out, nil
		}
	case TypeRecord:
		if m, ok := v.(Map); ok {
			return record(n, m, path)
		}
	case TypeUnion:
		return union(n, v, path)
	}

	return nil, mismatch(n, v, path)
}

func mismatch(n *Node, v Value, path string) error {
	return fmt.Errorf("%w: cannot use %s as %s at %s", ErrSchemaResolution, v.Kind(), n.describe(), jsonptr.OrRoot(path))
}

func record(n *Node, m Map, path string) (any, error) {
	out := make(map[string]any, len(n.Fields))
	for _, f := range n.Fields {
		fv, ok := m[f.Name]
		if !ok {
			if f.HasDefault {
				// goavro encodes the schema default for absent fields
				continue
			}
			return nil, fmt.Errorf("%w: missing field %q of %s at %s", ErrSchemaResolution, f.Name, n.Name, jsonptr.OrRoot(path))
		}
		native, err := resolve(f.Type, fv, jsonptr.Key(path, f.Name))
		if err != nil {
			return nil, err
		}
		out[f.Name] = native
	}
	return out, nil
}

func fixed(n *Node, v Value, path string) (any, error) {
	var b []byte
	switch t := v.(type) {
	case Bytes:
		b = t
	case String:
		b = []byte(t)
		if len(b) == 2*n.Size && n.Size > 0 {
			if decoded, err := hex.DecodeString(string(t)); err == nil {
				b = decoded
			}
		}
	default:
		return nil, mismatch(n, v, path)
	}
	if len(b) != n.Size {
		return nil, fmt.Errorf("%w: fixed %s needs %d bytes, got %d at %s", ErrSchemaResolution, n.Name, n.Size, len(b), jsonptr.OrRoot(path))
	}
	return b, nil
}

func decimal(n *Node, v Value, path string) (any, error) {
	r := new(big.Rat)
	switch t := v.(type) {
	case Long:
		return r.SetInt64(int64(t)), nil
	case Double:
		if math.IsInf(float64(t), 0) || math.IsNaN(float64(t)) {
			break
		}
		return r.SetFloat64(float64(t)), nil
	case String:
		if _, ok := r.SetString(string(t)); ok {
			return r, nil
		}
	}
	return nil, mismatch(n, v, path)
}

func union(n *Node, v Value, path string) (any, error) {
	// Branches whose type naturally holds v's kind are tried before the
	// ones that need narrowing, each group in declaration order.
	for _, natural := range []bool{true, false} {
		for _, b := range n.Branches {
			if holds(b.Type, v.Kind()) != natural {
				continue
			}
			native, err := resolve(b, v, path)
			if err != nil {
				continue
			}
			if b.Type == TypeNull {
				return nil, nil
			}
			return map[string]any{b.unionKey(): native}, nil
		}
	}
	return nil, fmt.Errorf("%w: no branch of %s accepts %s at %s", ErrSchemaResolution, n.describe(), v.Kind(), jsonptr.OrRoot(path))
}

func holds(t Type, k Kind) bool {
	switch k {
	case KindNull:
		return t == TypeNull
	case KindBoolean:
		return t == TypeBoolean
	case KindLong:
		return t == TypeLong || t == TypeInt
	case KindDouble:
		return t == TypeDouble || t == TypeFloat
	case KindString:
		return t == TypeString || t == TypeEnum
	case KindBytes:
		return t == TypeBytes || t == TypeFixed
	case KindArray:
		return t == TypeArray
	case KindMap:
		return t == TypeMap || t == TypeRecord
	}
	return false
}

// logical types goavro names as "<type>.<logicalType>" inside unions
var unionLogicalTypes = map[Type][]string{
	TypeInt:   {"date", "time-millis"},
	TypeLong:  {"timestamp-millis", "timestamp-micros", "time-micros"},
	TypeBytes: {"decimal"},
}

func (n *Node) unionKey() string {
	if n.Name != "" {
		return n.Name
	}
	if slices.Contains(unionLogicalTypes[n.Type], n.LogicalType) {
		return string(n.Type) + "." + n.LogicalType
	}
	return string(n.Type)
}

func (n *Node) describe() string {
	switch {
	case n.Name != "":
		return fmt.Sprintf("%s %s", n.Type, n.Name)
	case n.Type == TypeUnion:
		names := make([]string, len(n.Branches))
		for i, b := range n.Branches {
			names[i] = b.unionKey()
		}
		return fmt.Sprintf("union %v", names)
	default:
		return string(n.Type)
	}
}
