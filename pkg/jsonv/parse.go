package jsonv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"

	"github.com/edgeflare/json2avro/internal/jsonptr"
)

var (
	// ErrParse wraps every failure to turn bytes into a Value.
	ErrParse = errors.New("json parse error")
	// ErrDuplicateKey is reported (wrapped in ErrParse) when an object
	// repeats a member name and duplicates are not allowed.
	ErrDuplicateKey = errors.New("duplicate object key")
)

// DefaultMaxDepth bounds the nesting of arrays and objects.
const DefaultMaxDepth = 1000

type parseOptions struct {
	allowDuplicates bool
	maxDepth        int
}

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

// AllowDuplicateKeys makes the last occurrence of a repeated member win
// instead of failing the parse.
func AllowDuplicateKeys() ParseOption {
	return func(o *parseOptions) { o.allowDuplicates = true }
}

// MaxDepth overrides DefaultMaxDepth. Values <= 0 are ignored.
func MaxDepth(n int) ParseOption {
	return func(o *parseOptions) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// Parse decodes exactly one JSON document from data.
func Parse(data []byte, opts ...ParseOption) (Value, error) {
	o := parseOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrParse)
	}
	if !gojson.Valid(data) {
		var discard any
		err := gojson.Unmarshal(data, &discard)
		if err == nil {
			err = errors.New("invalid JSON document")
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	p := &parser{dec: dec, opts: o}

	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	v, err := p.value(tok, "")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrParse)
	}
	return v, nil
}

type parser struct {
	dec   *gojson.Decoder
	opts  parseOptions
	depth int
}

func (p *parser) next() (gojson.Token, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unexpected end of input", ErrParse)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return tok, nil
}

func (p *parser) value(tok gojson.Token, path string) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case gojson.Number:
		// the decoder may hand out views into its read buffer
		return Number(strings.Clone(string(t))), nil
	case float64:
		// only reachable if the decoder ignores UseNumber
		return Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case string:
		return String(strings.Clone(t)), nil
	case gojson.Delim:
		switch t {
		case '{':
			return p.object(path)
		case '[':
			return p.array(path)
		}
	}
	return nil, fmt.Errorf("%w: unexpected token %v at %s", ErrParse, tok, jsonptr.OrRoot(path))
}

func (p *parser) enter(path string) error {
	p.depth++
	if p.depth > p.opts.maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d at %s", ErrParse, p.opts.maxDepth, jsonptr.OrRoot(path))
	}
	return nil
}

func (p *parser) object(path string) (Value, error) {
	if err := p.enter(path); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	obj := Object{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(gojson.Delim); ok && d == '}' {
			return obj, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected object key at %s, got %v", ErrParse, jsonptr.OrRoot(path), tok)
		}
		key = strings.Clone(key)
		memberPath := jsonptr.Key(path, key)
		if _, dup := obj[key]; dup && !p.opts.allowDuplicates {
			return nil, fmt.Errorf("%w: %w: %q at %s", ErrParse, ErrDuplicateKey, key, memberPath)
		}

		tok, err = p.next()
		if err != nil {
			return nil, err
		}
		v, err := p.value(tok, memberPath)
		if err != nil {
			return nil, err
		}
		obj[key] = v
	}
}

func (p *parser) array(path string) (Value, error) {
	if err := p.enter(path); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	arr := Array{}
	for i := 0; ; i++ {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(gojson.Delim); ok && d == ']' {
			return arr, nil
		}
		v, err := p.value(tok, jsonptr.Index(path, i))
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}
