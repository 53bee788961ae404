//go:build wasip1

// Command json2avro-wasm is a Redpanda data transform that converts every
// JSON record value written to the input topic into Avro.
//
// It is configured through the transform environment:
//
//	JSON2AVRO_SCHEMA                Avro schema (JSON text), defaults to the
//	                                embedded Interop schema
//	JSON2AVRO_FORMAT                ocf (default), binary or single
//	JSON2AVRO_ALLOW_DUPLICATE_KEYS  "true" to let the last repeated key win
package main

import (
	"os"

	"github.com/redpanda-data/redpanda/src/transform-sdk/go/transform"
)

func main() {
	conv, err := newConverter(os.Getenv)
	if err != nil {
		panic(err)
	}
	transform.OnRecordWritten(func(e transform.WriteEvent, w transform.RecordWriter) error {
		return convertRecord(conv, e.Record(), func(r transform.Record) error {
			return w.Write(r)
		})
	})
}
