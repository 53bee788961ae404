package main

import (
	_ "embed"
	"strconv"

	"github.com/redpanda-data/redpanda/src/transform-sdk/go/transform"

	"github.com/edgeflare/json2avro/pkg/avro"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
	j2a "github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

//go:embed schema.avsc
var defaultSchema string

func newConverter(getenv func(string) string) (*j2a.Converter, error) {
	opts := j2a.Options{Format: avro.Format(getenv("JSON2AVRO_FORMAT"))}
	if s := getenv("JSON2AVRO_ALLOW_DUPLICATE_KEYS"); s != "" {
		allow, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		opts.AllowDuplicateKeys = allow
	}

	text := getenv("JSON2AVRO_SCHEMA")
	if text == "" {
		text = defaultSchema
	}
	schema, err := avro.ParseSchema(text)
	if err != nil {
		return nil, err
	}
	return j2a.NewConverter(schema, opts)
}

// convertRecord converts in and hands the result to emit with the input's
// key, headers and timestamp. Nothing is emitted when conversion fails.
func convertRecord(conv *j2a.Converter, in transform.Record, emit func(transform.Record) error) error {
	r := record.Record{Key: in.Key, Value: in.Value}
	for _, h := range in.Headers {
		r.Headers = append(r.Headers, record.Header{Key: h.Key, Value: h.Value})
	}

	return conv.Transform(record.WriteEvent{Record: r}, writerFunc(func(out record.Record) error {
		var headers []transform.RecordHeader
		for _, h := range out.Headers {
			headers = append(headers, transform.RecordHeader{Key: h.Key, Value: h.Value})
		}
		return emit(transform.Record{
			Key:       out.Key,
			Value:     out.Value,
			Headers:   headers,
			Timestamp: in.Timestamp,
		})
	}))
}

type writerFunc func(record.Record) error

func (f writerFunc) Write(r record.Record) error { return f(r) }
