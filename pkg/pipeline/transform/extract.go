package transform

import (
	"fmt"

	"github.com/edgeflare/json2avro/pkg/jsonv"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// ExtractConfig holds the configuration for the extract transformation
type ExtractConfig struct {
	Fields []string `json:"fields" mapstructure:"fields"`
}

// Validate validates the ExtractConfig
func (c *ExtractConfig) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	return nil
}

// Type returns the type of the transformation
func (c *ExtractConfig) Type() string {
	return TypeExtract
}

// Extract creates a Func that keeps only the listed top-level fields of a
// JSON object value. Records without a value pass through.
func Extract(config *ExtractConfig) Func {
	if err := config.Validate(); err != nil {
		return func(record.WriteEvent, record.RecordWriter) error {
			return fmt.Errorf("invalid extract configuration: %w", err)
		}
	}

	return func(e record.WriteEvent, w record.RecordWriter) error {
		if !e.Record.HasValue() {
			return w.Write(e.Record)
		}

		obj, err := jsonObject(e.Record.Value)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}

		kept := make(jsonv.Object, len(config.Fields))
		for _, field := range config.Fields {
			if value, exists := obj[field]; exists {
				kept[field] = value
			}
		}

		value, err := jsonv.Marshal(kept)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		out := e.Record
		out.Value = value
		return w.Write(out)
	}
}

// jsonObject parses a record value that must be a JSON object.
func jsonObject(data []byte) (jsonv.Object, error) {
	v, err := jsonv.Parse(data, jsonv.AllowDuplicateKeys())
	if err != nil {
		return nil, err
	}
	obj, ok := v.(jsonv.Object)
	if !ok {
		return nil, fmt.Errorf("value is a json %s, not an object", v.Kind())
	}
	return obj, nil
}
