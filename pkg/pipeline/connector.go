package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

type ConnectorType int

const (
	ConnectorTypeUnknown ConnectorType = iota
	ConnectorTypePub                   // Sink / consumer-only
	ConnectorTypeSub                   // Source / producer-only
	ConnectorTypePubSub                // Source and sink
)

var (
	ErrConnectorTypeMismatch = errors.New("connector type mismatch")
	ErrNotConnected          = errors.New("connector not connected")
)

// Delivery is a record read from a source peer. Ack must be called once the
// record has been fully processed; sources that track positions only commit
// acknowledged records. Ack may be nil.
type Delivery struct {
	Ack func()
	record.WriteEvent
}

// A Connector represents a data pipeline component.
type Connector interface {
	// Connect initializes the connector with the provided configuration.
	// The config parameter is a raw JSON message containing connector-specific settings.
	// Additional arguments can be passed via the args parameter.
	Connect(config json.RawMessage, args ...any) error

	// Pub sends the given record to the connector's destination.
	// It returns an error if the publish operation fails.
	Pub(r record.Record, args ...any) error

	// Sub provides a channel for consuming records. The channel is closed
	// when the connector disconnects.
	Sub(args ...any) (<-chan Delivery, error)

	// Type returns the type of the connector (SUB, PUB, or PUBSUB)
	Type() ConnectorType

	Disconnect() error
}

// Predefined connectors
const (
	ConnectorDebug = "debug"
	ConnectorKafka = "kafka"
)

var (
	connectors   = make(map[string]func() Connector)
	connectorsMu sync.RWMutex
)

// RegisterConnector adds a new connector to the registry.
// The name parameter is used as a key to identify the connector type; every
// peer using it gets its own instance from factory.
func RegisterConnector(name string, factory func() Connector) {
	connectorsMu.Lock()
	defer connectorsMu.Unlock()
	connectors[name] = factory
}

// NewConnector returns a fresh instance of the named connector.
func NewConnector(name string) (Connector, error) {
	connectorsMu.RLock()
	factory, ok := connectors[name]
	connectorsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector %s not found", name)
	}
	return factory(), nil
}

// Connectors lists the registered connector names.
func Connectors() []string {
	connectorsMu.RLock()
	defer connectorsMu.RUnlock()
	names := make([]string, 0, len(connectors))
	for name := range connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
