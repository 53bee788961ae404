package avro

import (
	"bytes"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// Format selects the byte layout an Encoder produces.
type Format string

const (
	// FormatOCF writes an Avro object container file holding one datum.
	FormatOCF Format = "ocf"
	// FormatBinary writes the bare binary encoding of the datum.
	FormatBinary Format = "binary"
	// FormatSingleObject writes the single-object encoding: the C3 01
	// marker, the schema's Rabin fingerprint and the binary datum.
	FormatSingleObject Format = "single"
)

// ParseFormat validates a format name. The empty string selects FormatOCF.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatOCF:
		return FormatOCF, nil
	case FormatBinary, FormatSingleObject:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown avro format %q", s)
	}
}

// Encoder resolves schema-shaped values against a schema and serializes them.
type Encoder struct {
	format Format
}

// NewEncoder returns an Encoder producing the given format.
func NewEncoder(format Format) (*Encoder, error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}
	return &Encoder{format: f}, nil
}

// Format returns the encoder's output format.
func (e *Encoder) Format() Format { return e.format }

// Encode resolves v against s and returns its encoding.
func (e *Encoder) Encode(s *Schema, v Value) ([]byte, error) {
	native, err := Resolve(s, v)
	if err != nil {
		return nil, err
	}

	switch e.format {
	case FormatBinary:
		b, err := s.codec.BinaryFromNative(nil, native)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return b, nil
	case FormatSingleObject:
		b, err := s.codec.SingleFromNative(nil, native)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return b, nil
	default:
		var buf bytes.Buffer
		w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: &buf, Codec: s.codec})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		if err := w.Append([]any{native}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return buf.Bytes(), nil
	}
}

// Decode reverses Encode, returning the goavro native form of every datum
// in data. Binary and single-object input hold exactly one datum.
func Decode(s *Schema, format Format, data []byte) ([]any, error) {
	switch format {
	case FormatBinary:
		native, rest, err := s.codec.NativeFromBinary(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrEncoding, len(rest))
		}
		return []any{native}, nil
	case FormatSingleObject:
		native, _, err := s.codec.NativeFromSingle(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return []any{native}, nil
	default:
		r, err := goavro.NewOCFReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		var out []any
		for r.Scan() {
			native, err := r.Read()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
			}
			out = append(out, native)
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		return out, nil
	}
}
