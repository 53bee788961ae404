// Package debug provides a sink peer that logs every record it receives.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/avro"
	"github.com/edgeflare/json2avro/pkg/pipeline"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// Config controls how record values are rendered. Without a schema values
// are logged as text.
type Config struct {
	// Schema or SchemaFile enables decoding Avro values before logging.
	Schema     string `json:"schema,omitempty"`
	SchemaFile string `json:"schemaFile,omitempty"`
	// Format of the Avro values, defaults to ocf.
	Format string `json:"format,omitempty"`
}

// PeerDebug is a debug peer that logs the data to the console
type PeerDebug struct {
	logger *zap.Logger
	schema *avro.Schema
	format avro.Format
	mu     sync.RWMutex
}

func New() *PeerDebug {
	return &PeerDebug{logger: zap.L().Named(pipeline.ConnectorDebug)}
}

func (p *PeerDebug) Connect(config json.RawMessage, _ ...any) error {
	var cfg Config
	if len(config) > 0 && string(config) != "null" {
		if err := gojson.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal debug config: %w", err)
		}
	}

	format, err := avro.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	text := cfg.Schema
	if cfg.SchemaFile != "" {
		data, err := os.ReadFile(cfg.SchemaFile)
		if err != nil {
			return fmt.Errorf("read schema file: %w", err)
		}
		text = string(data)
	}

	var schema *avro.Schema
	if text != "" {
		if schema, err = avro.ParseSchema(text); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.schema = schema
	p.format = format
	return nil
}

func (p *PeerDebug) Pub(r record.Record, _ ...any) error {
	p.mu.RLock()
	schema, format := p.schema, p.format
	p.mu.RUnlock()

	fields := []zap.Field{
		zap.ByteString("key", r.Key),
		zap.Int("headers", len(r.Headers)),
	}
	for _, h := range r.Headers {
		fields = append(fields, zap.ByteString("header."+string(h.Key), h.Value))
	}

	switch {
	case !r.HasValue():
		fields = append(fields, zap.Bool("tombstone", true))
	case schema != nil:
		datums, err := avro.Decode(schema, format, r.Value)
		if err != nil {
			return fmt.Errorf("debug: %w", err)
		}
		fields = append(fields, zap.Any("value", datums))
	default:
		fields = append(fields, zap.ByteString("value", r.Value))
	}

	p.logger.Info("record", fields...)
	return nil
}

func (p *PeerDebug) Sub(_ ...any) (<-chan pipeline.Delivery, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerDebug) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

// Disconnect flushes the logger. A failed flush is logged, not returned,
// since zap reports one whenever stderr is a terminal that cannot fsync.
func (p *PeerDebug) Disconnect() error {
	if err := p.logger.Sync(); err != nil {
		p.logger.Debug("Logger sync failed", zap.Error(err))
	}
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorDebug, func() pipeline.Connector { return New() })
}
