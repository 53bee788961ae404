// Package transform provides per-record transformations for pipelines.
// It's inspired by Debezium's [Single Message Transformations (SMTs)](https://docs.confluent.io/platform/current/connect/transforms/overview.html) usage.
//
// The json2avro transformation converts a JSON record value into the Avro
// encoding of a fixed schema, keeping the record key and headers. The
// filter, extract and replace transformations prepare records before that
// step.
package transform
