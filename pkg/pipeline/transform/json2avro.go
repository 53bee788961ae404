package transform

import (
	"errors"
	"fmt"
	"os"

	"github.com/edgeflare/json2avro/pkg/avro"
	"github.com/edgeflare/json2avro/pkg/jsonv"
	"github.com/edgeflare/json2avro/pkg/mapper"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// Options tune the json2avro transformation.
type Options struct {
	// Format of the output value. Empty means avro.FormatOCF.
	Format avro.Format
	// AllowDuplicateKeys lets the last occurrence of a repeated JSON object
	// key win instead of failing the record.
	AllowDuplicateKeys bool
}

// Converter turns JSON payloads into Avro payloads of a single schema. It
// holds no per-record state and is safe for concurrent use.
type Converter struct {
	schema    *avro.Schema
	encoder   *avro.Encoder
	parseOpts []jsonv.ParseOption
}

// NewConverter returns a Converter for schema.
func NewConverter(schema *avro.Schema, opts Options) (*Converter, error) {
	if schema == nil {
		return nil, errors.New("json2avro: schema is required")
	}
	enc, err := avro.NewEncoder(opts.Format)
	if err != nil {
		return nil, fmt.Errorf("json2avro: %w", err)
	}
	c := &Converter{schema: schema, encoder: enc}
	if opts.AllowDuplicateKeys {
		c.parseOpts = append(c.parseOpts, jsonv.AllowDuplicateKeys())
	}
	return c, nil
}

// Schema returns the target schema.
func (c *Converter) Schema() *avro.Schema { return c.schema }

// Convert parses payload as JSON, maps it and encodes it against the schema.
func (c *Converter) Convert(payload []byte) ([]byte, error) {
	v, err := jsonv.Parse(payload, c.parseOpts...)
	if err != nil {
		return nil, err
	}
	mapped, err := mapper.Map(v)
	if err != nil {
		return nil, err
	}
	return c.encoder.Encode(c.schema, mapped)
}

// Transform is the per-record callback. A record without a value is passed
// on with its value still absent; otherwise exactly one record is written
// carrying the input key, the encoded value and a copy of the headers.
func (c *Converter) Transform(e record.WriteEvent, w record.RecordWriter) error {
	var value []byte
	if e.Record.HasValue() {
		var err error
		if value, err = c.Convert(e.Record.Value); err != nil {
			return err
		}
	}
	return w.Write(record.Record{
		Key:     e.Record.Key,
		Value:   value,
		Headers: record.CopyHeaders(e.Record.Headers),
	})
}

// Apply runs Transform for r and returns the emitted records.
func (c *Converter) Apply(r record.Record) ([]record.Record, error) {
	return Apply(c.Transform, r)
}

// JSONToAvro returns the json2avro transformation for schema. Invalid
// options yield a Func that fails every record.
func JSONToAvro(schema *avro.Schema, opts Options) Func {
	c, err := NewConverter(schema, opts)
	if err != nil {
		return func(record.WriteEvent, record.RecordWriter) error { return err }
	}
	return c.Transform
}

// JSONToAvroConfig holds the configuration for the json2avro transformation.
// Exactly one of Schema and SchemaFile must be set.
type JSONToAvroConfig struct {
	Schema             string `json:"schema,omitempty" mapstructure:"schema"`
	SchemaFile         string `json:"schemaFile,omitempty" mapstructure:"schemaFile"`
	Format             string `json:"format,omitempty" mapstructure:"format"`
	AllowDuplicateKeys bool   `json:"allowDuplicateKeys,omitempty" mapstructure:"allowDuplicateKeys"`

	converter *Converter
}

func (c *JSONToAvroConfig) Validate() error {
	if (c.Schema == "") == (c.SchemaFile == "") {
		return fmt.Errorf("exactly one of schema and schemaFile is required")
	}
	if _, err := avro.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

func (c *JSONToAvroConfig) Type() string {
	return TypeJSONToAvro
}

// Converter loads the schema and builds the configured Converter. The result
// is cached on c.
func (c *JSONToAvroConfig) Converter() (*Converter, error) {
	if c.converter != nil {
		return c.converter, nil
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid json2avro configuration: %w", err)
	}

	text := c.Schema
	if c.SchemaFile != "" {
		data, err := os.ReadFile(c.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		text = string(data)
	}

	schema, err := avro.ParseSchema(text)
	if err != nil {
		return nil, err
	}
	conv, err := NewConverter(schema, Options{
		Format:             avro.Format(c.Format),
		AllowDuplicateKeys: c.AllowDuplicateKeys,
	})
	if err != nil {
		return nil, err
	}
	c.converter = conv
	return conv, nil
}

func (c *JSONToAvroConfig) prepare() error {
	_, err := c.Converter()
	return err
}

func jsonToAvroFromConfig(config *JSONToAvroConfig) Func {
	c, err := config.Converter()
	if err != nil {
		return func(record.WriteEvent, record.RecordWriter) error { return err }
	}
	return c.Transform
}

// Error types reported by ErrorType.
const (
	ErrorTypeParse                 = "parse"
	ErrorTypeUnrepresentableNumber = "unrepresentable_number"
	ErrorTypeSchemaResolution      = "schema_resolution"
	ErrorTypeEncoding              = "encoding"
	ErrorTypeOther                 = "other"
)

// ErrorType classifies a transformation failure for metrics and logs.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, jsonv.ErrParse):
		return ErrorTypeParse
	case errors.Is(err, mapper.ErrUnrepresentableNumber):
		return ErrorTypeUnrepresentableNumber
	case errors.Is(err, avro.ErrSchemaResolution):
		return ErrorTypeSchemaResolution
	case errors.Is(err, avro.ErrEncoding):
		return ErrorTypeEncoding
	default:
		return ErrorTypeOther
	}
}
