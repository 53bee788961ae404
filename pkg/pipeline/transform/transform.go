package transform

import (
	"fmt"
	"sync"

	"github.com/edgeflare/json2avro/pkg/pipeline/record"
	"github.com/mitchellh/mapstructure"
)

// Func is the signature for all transformation functions. It is invoked once
// per input record and writes zero or more output records to w. A Func that
// returns an error must not have written anything.
type Func func(event record.WriteEvent, w record.RecordWriter) error

// Transformation represents a single transformation step (like Kafka SMT)
type Transformation struct {
	Config map[string]any `mapstructure:"config"`
	Type   string         `mapstructure:"type"`
}

// Config is the interface that all transformations must implement
type Config interface {
	// Validate validates the configuration
	Validate() error
	// Type returns the transformation type
	Type() string
}

// preparer is implemented by configs that load resources (like schemas) which
// should fail the chain at build time rather than per record.
type preparer interface {
	prepare() error
}

// Built-in transformation types
const (
	TypeExtract    = "extract"
	TypeFilter     = "filter"
	TypeReplace    = "replace"
	TypeJSONToAvro = "json2avro"
)

// Registry is a collection of transformation functions
type Registry struct {
	transforms sync.Map // map[string]func(Config) Func
}

// Register adds a transformation to the registry
func (r *Registry) Register(name string, factory func(Config) Func) {
	r.transforms.Store(name, factory)
}

// Get returns a transformation from the registry
func (r *Registry) Get(name string) (func(Config) Func, error) {
	if value, ok := r.transforms.Load(name); ok {
		return value.(func(Config) Func), nil
	}
	return nil, fmt.Errorf("transformation %s not found", name)
}

// NewRegistry creates a new transformation registry
func NewRegistry() *Registry {
	return &Registry{
		transforms: sync.Map{},
	}
}

type Manager struct {
	registry *Registry
}

func NewManager() *Manager {
	return &Manager{
		registry: NewRegistry(),
	}
}

// Register adds a custom transformation factory.
func (m *Manager) Register(name string, factory func(Config) Func) {
	m.registry.Register(name, factory)
}

// RegisterBuiltins registers all built-in transformations
func (m *Manager) RegisterBuiltins() {
	m.registry.Register(TypeExtract, func(config Config) Func {
		if extractConfig, ok := config.(*ExtractConfig); ok {
			return Extract(extractConfig)
		}
		return invalidConfig(TypeExtract)
	})

	m.registry.Register(TypeFilter, func(config Config) Func {
		if filterConfig, ok := config.(*FilterConfig); ok {
			return Filter(filterConfig)
		}
		return invalidConfig(TypeFilter)
	})

	m.registry.Register(TypeReplace, func(config Config) Func {
		if replaceConfig, ok := config.(*ReplaceConfig); ok {
			return Replace(replaceConfig)
		}
		return invalidConfig(TypeReplace)
	})

	m.registry.Register(TypeJSONToAvro, func(config Config) Func {
		if avroConfig, ok := config.(*JSONToAvroConfig); ok {
			return jsonToAvroFromConfig(avroConfig)
		}
		return invalidConfig(TypeJSONToAvro)
	})
}

func invalidConfig(name string) Func {
	return func(record.WriteEvent, record.RecordWriter) error {
		return fmt.Errorf("invalid config type for %s transformation", name)
	}
}

// Chain creates a transformation chain from a list of configs. Every record
// emitted by one step is fed to the next; output reaches the caller's writer
// only after the whole chain succeeded for the input record.
func (m *Manager) Chain(configs []Transformation) (Func, error) {
	var transforms []Func

	for _, cfg := range configs {
		factory, err := m.registry.Get(cfg.Type)
		if err != nil {
			return nil, fmt.Errorf("error getting transformation %s: %w", cfg.Type, err)
		}

		transformConfig, err := cfg.ToConfig()
		if err != nil {
			return nil, fmt.Errorf("error converting config for %s: %w", cfg.Type, err)
		}
		if err := transformConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s configuration: %w", cfg.Type, err)
		}
		if p, ok := transformConfig.(preparer); ok {
			if err := p.prepare(); err != nil {
				return nil, fmt.Errorf("preparing %s: %w", cfg.Type, err)
			}
		}

		transforms = append(transforms, factory(transformConfig))
	}

	return Compose(transforms...), nil
}

// Compose chains fns into a single Func.
func Compose(fns ...Func) Func {
	return func(event record.WriteEvent, w record.RecordWriter) error {
		current := []record.Record{event.Record}
		for _, fn := range fns {
			var next record.Collector
			for _, r := range current {
				if err := fn(record.WriteEvent{Record: r, Source: event.Source}, &next); err != nil {
					return err
				}
			}
			if len(next.Records) == 0 {
				return nil // filtered out
			}
			current = next.Records
		}
		for _, r := range current {
			if err := w.Write(r); err != nil {
				return err
			}
		}
		return nil
	}
}

// Apply runs fn for a single record and returns what it emitted.
func Apply(fn Func, r record.Record) ([]record.Record, error) {
	var c record.Collector
	if err := fn(record.WriteEvent{Record: r}, &c); err != nil {
		return nil, err
	}
	return c.Records, nil
}

// Helper method to convert Transformation to transform.Config interface
func (t *Transformation) ToConfig() (Config, error) {
	var cfg Config
	switch t.Type {
	case TypeExtract:
		cfg = &ExtractConfig{}
	case TypeFilter:
		cfg = &FilterConfig{}
	case TypeReplace:
		cfg = &ReplaceConfig{}
	case TypeJSONToAvro:
		cfg = &JSONToAvroConfig{}
	default:
		return nil, fmt.Errorf("unknown transformation type: %s", t.Type)
	}
	if err := mapstructure.Decode(t.Config, cfg); err != nil {
		return nil, fmt.Errorf("error decoding %s config: %w", t.Type, err)
	}
	return cfg, nil
}
