package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

const defaultConnectRetries = 3

// Manager handles connectors and peers for data pipeline operations.
type Manager struct {
	peers          map[string]*Peer
	subscriptions  map[string][]*runner
	transforms     *transform.Manager
	logger         *zap.Logger
	newBackOff     func() backoff.BackOff
	connectRetries uint64
	mu             sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for peer and record events.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConnectBackOff sets the retry policy for connecting peers and the
// number of retries after the first attempt.
func WithConnectBackOff(newBackOff func() backoff.BackOff, retries uint64) Option {
	return func(m *Manager) {
		m.newBackOff = newBackOff
		m.connectRetries = retries
	}
}

// WithTransformManager replaces the transformation registry, eg to add
// custom transformations. Builtins are registered by default.
func WithTransformManager(tm *transform.Manager) Option {
	return func(m *Manager) {
		m.transforms = tm
	}
}

// NewManager returns a new Manager instance.
func NewManager(opts ...Option) *Manager {
	tm := transform.NewManager()
	tm.RegisterBuiltins()

	m := &Manager{
		peers:          map[string]*Peer{},
		subscriptions:  map[string][]*runner{},
		transforms:     tm,
		logger:         zap.NewNop(),
		newBackOff:     defaultBackOff,
		connectRetries: defaultConnectRetries,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Second
	return b
}

// AddPeer creates a new Peer backed by a fresh instance of connector.
func (m *Manager) AddPeer(connector string, name string) (*Peer, error) {
	c, err := NewConnector(connector)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.peers[name]; exists {
		return nil, fmt.Errorf("peer %s already exists", name)
	}
	peer := &Peer{ConnectorName: connector, Name: name, connector: c}
	m.peers[name] = peer
	return peer, nil
}

func (m *Manager) Peers() []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	peers := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, *p)
	}
	return peers
}

func (m *Manager) GetPeer(name string) (*Peer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if peer, exists := m.peers[name]; exists {
		return peer, nil
	}
	return nil, fmt.Errorf("peer %s not found", name)
}

// Init initializes all peers from configuration
func (m *Manager) Init(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	m.logger.Info("Initializing pipeline manager", zap.Int("peerCount", len(config.Peers)))
	for _, p := range config.Peers {
		m.logger.Debug("Adding peer",
			zap.String("name", p.Name),
			zap.String("connector", p.ConnectorName))

		peer, err := m.AddPeer(p.ConnectorName, p.Name)
		if err != nil {
			m.logger.Error("Failed to add peer",
				zap.String("name", p.Name),
				zap.String("connector", p.ConnectorName),
				zap.Error(err))
			return fmt.Errorf("failed to add peer %s: %w", p.Name, err)
		}

		// Store the config in the peer
		peer.Config = p.Config
		peer.Args = p.Args
		configJSON, err := json.Marshal(peer.Config)
		if err != nil {
			m.logger.Error("Failed to marshal config for peer",
				zap.String("name", peer.Name),
				zap.Error(err))
			return fmt.Errorf("failed to marshal config for peer %s: %w", peer.Name, err)
		}

		m.logger.Debug("Connecting peer",
			zap.String("name", peer.Name),
			zap.String("connector", p.ConnectorName))

		connect := func() error {
			return peer.Connector().Connect(configJSON, peer.Args...)
		}
		notify := func(err error, delay time.Duration) {
			m.logger.Warn("Retrying connection",
				zap.String("name", peer.Name),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
		policy := backoff.WithMaxRetries(m.newBackOff(), m.connectRetries)
		if err := backoff.RetryNotify(connect, policy, notify); err != nil {
			m.logger.Error("Failed to initialize connector after retries",
				zap.String("name", peer.Name),
				zap.Error(err))
			return fmt.Errorf("failed to initialize connector %s: %w", peer.Name, err)
		}

		m.logger.Info("Successfully connected peer",
			zap.String("name", peer.Name),
			zap.String("connector", p.ConnectorName))
	}

	m.logger.Info("Successfully initialized all peers", zap.Int("totalPeers", len(m.peers)))
	return nil
}

// Start builds every pipeline in config, subscribes each source peer once and
// processes its records until ctx is done or the source closes. A pipeline
// that halts reports its error on errChan.
func (m *Manager) Start(ctx context.Context, wg *sync.WaitGroup, config *Config, errChan chan<- error) error {
	for _, pl := range config.Pipelines {
		r, err := m.newRunner(pl)
		if err != nil {
			return fmt.Errorf("failed to setup pipeline %s: %w", pl.Name, err)
		}
		m.mu.Lock()
		for _, src := range pl.Sources {
			m.subscriptions[src.Name] = append(m.subscriptions[src.Name], r)
		}
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for sourceName, runners := range m.subscriptions {
		peer, ok := m.peers[sourceName]
		if !ok {
			return fmt.Errorf("source peer %s not found", sourceName)
		}
		if peer.Connector().Type() == ConnectorTypePub {
			return fmt.Errorf("source peer %s: %w", sourceName, ErrConnectorTypeMismatch)
		}

		deliveries, err := peer.Connector().Sub(peer.Args...)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sourceName, err)
		}

		m.logger.Info("Subscribed to source",
			zap.String("source", sourceName),
			zap.Int("pipelines", len(runners)))

		wg.Add(1)
		go m.consume(ctx, wg, sourceName, deliveries, runners, errChan)
	}
	return nil
}

// Close disconnects every peer.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for name, peer := range m.peers {
		if err := peer.Connector().Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
