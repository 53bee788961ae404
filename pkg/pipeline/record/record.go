// Package record defines the unit of data flowing through a pipeline: an
// optional key, an optional value and ordered headers.
package record

import (
	"bytes"
	"fmt"
)

// Header is a key/value pair attached to a record. Keys may repeat.
type Header struct {
	Key   []byte
	Value []byte
}

// Record is a keyed message. A nil Key or Value means absent, which is
// distinct from an empty one.
type Record struct {
	Key     []byte
	Value   []byte
	Headers []Header
}

// HasValue reports whether the record carries a payload.
func (r Record) HasValue() bool { return r.Value != nil }

// Header returns the value of the first header named key.
func (r Record) Header(key string) ([]byte, bool) {
	for _, h := range r.Headers {
		if string(h.Key) == key {
			return h.Value, true
		}
	}
	return nil, false
}

// CopyHeaders returns a deep copy of headers preserving order. Absent and
// empty header values stay distinguishable.
func CopyHeaders(headers []Header) []Header {
	if headers == nil {
		return nil
	}
	out := make([]Header, len(headers))
	for i, h := range headers {
		out[i] = Header{Key: bytes.Clone(h.Key), Value: bytes.Clone(h.Value)}
	}
	return out
}

// Source describes where a record was read from.
type Source struct {
	Peer      string
	Topic     string
	Partition int32
	Offset    int64
}

func (s Source) String() string {
	if s.Topic == "" {
		return s.Peer
	}
	return fmt.Sprintf("%s/%s/%d@%d", s.Peer, s.Topic, s.Partition, s.Offset)
}

// WriteEvent is delivered once for every record written to a source.
type WriteEvent struct {
	Record Record
	Source Source
}

// RecordWriter receives the records a transformation emits.
type RecordWriter interface {
	Write(Record) error
}

// Collector is a RecordWriter that keeps every record in order.
type Collector struct {
	Records []Record
}

func (c *Collector) Write(r Record) error {
	c.Records = append(c.Records, r)
	return nil
}
