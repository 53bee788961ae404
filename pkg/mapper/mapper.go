// Package mapper converts untyped JSON values into schema-shaped Avro values.
//
// The conversion looks only at the shape of the input. Which Avro type a
// value finally takes (int or long, enum or string, record or map, which
// union branch) is decided later by the encoder against the schema.
package mapper

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/edgeflare/json2avro/internal/jsonptr"
	"github.com/edgeflare/json2avro/pkg/avro"
	"github.com/edgeflare/json2avro/pkg/jsonv"
)

// ErrUnrepresentableNumber is returned for a JSON number that is neither an
// exact 64-bit integer nor representable as a 64-bit float.
var ErrUnrepresentableNumber = errors.New("unrepresentable avro value")

// Map converts v. Null, booleans and strings map to themselves, numbers go
// through Number, arrays and objects are converted element by element. The
// first failing element aborts the whole conversion.
func Map(v jsonv.Value) (avro.Value, error) {
	return mapValue(v, "")
}

func mapValue(v jsonv.Value, path string) (avro.Value, error) {
	switch t := v.(type) {
	case nil, jsonv.Null:
		return avro.Null{}, nil
	case jsonv.Bool:
		return avro.Boolean(t), nil
	case jsonv.Number:
		return number(string(t), path)
	case jsonv.String:
		return avro.String(t), nil
	case jsonv.Array:
		out := make(avro.Array, len(t))
		for i, e := range t {
			m, err := mapValue(e, jsonptr.Index(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case jsonv.Object:
		out := make(avro.Map, len(t))
		for k, e := range t {
			m, err := mapValue(e, jsonptr.Key(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = m
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported json value %T at %s", v, jsonptr.OrRoot(path))
	}
}

// Number classifies a JSON number literal:
//   - a literal that parses as an int64 becomes Long;
//   - an integer literal outside the int64 range becomes Double only if the
//     float64 holds it exactly;
//   - any other finite literal becomes the nearest Double.
//
// Everything else fails with ErrUnrepresentableNumber.
func Number(n jsonv.Number) (avro.Value, error) {
	return number(string(n), "")
}

func number(lit, path string) (avro.Value, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return avro.Long(i), nil
	}

	if !strings.ContainsAny(lit, ".eE") {
		bi, ok := new(big.Int).SetString(lit, 10)
		if !ok {
			return nil, unrepresentable(lit, path)
		}
		f, acc := new(big.Float).SetInt(bi).Float64()
		if acc != big.Exact || math.IsInf(f, 0) {
			return nil, unrepresentable(lit, path)
		}
		return avro.Double(f), nil
	}

	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, unrepresentable(lit, path)
	}
	return avro.Double(f), nil
}

func unrepresentable(lit, path string) error {
	return fmt.Errorf("%w: %s at %s", ErrUnrepresentableNumber, lit, jsonptr.OrRoot(path))
}
