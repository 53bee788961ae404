package record

// Builder helps construct records in tests and connectors.
type Builder struct {
	record Record
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithKey(key []byte) *Builder {
	b.record.Key = key
	return b
}

func (b *Builder) WithValue(value []byte) *Builder {
	b.record.Value = value
	return b
}

func (b *Builder) WithHeader(key, value string) *Builder {
	b.record.Headers = append(b.record.Headers, Header{Key: []byte(key), Value: []byte(value)})
	return b
}

func (b *Builder) Build() Record {
	return b.record
}

// Event wraps the built record in a WriteEvent from src.
func (b *Builder) Event(src Source) WriteEvent {
	return WriteEvent{Record: b.record, Source: src}
}
