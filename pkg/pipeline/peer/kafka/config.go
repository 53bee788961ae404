package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Config represents Kafka-specific configuration
type Config struct {
	Brokers  []string `json:"brokers"`
	Version  string   `json:"version,omitempty"`
	ClientID string   `json:"clientId,omitempty"`
	SASL     *SASL    `json:"sasl,omitempty"`
	TLS      TLS      `json:"tls,omitempty"`
	// Source is used when the peer is a pipeline source.
	Source *SourceConfig `json:"source,omitempty"`
	// Sink is used when the peer is a pipeline sink.
	Sink *SinkConfig `json:"sink,omitempty"`
}

// SourceConfig selects what a source peer consumes.
type SourceConfig struct {
	Group  string   `json:"group"`
	Topics []string `json:"topics"`
	// InitialOffset is "oldest" or "newest" (default) for groups without
	// committed offsets.
	InitialOffset string `json:"initialOffset,omitempty"`
}

// SinkConfig selects where a sink peer produces.
type SinkConfig struct {
	Topic string `json:"topic"`
	// CreateTopic creates Topic with the settings below if it doesn't exist.
	CreateTopic bool  `json:"createTopic,omitempty"`
	Partitions  int32 `json:"partitions,omitempty"`
	Replicas    int16 `json:"replicas,omitempty"`
	RetentionMS int64 `json:"retentionMs,omitempty"`
}

// SASL represents SASL authentication configuration
type SASL struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Algorithm string `json:"algorithm"` // plain, sha256 or sha512
	Enable    bool   `json:"enable"`
}

// TLS represents TLS configuration
type TLS struct {
	CertFile   string `json:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty"`
	CAFile     string `json:"caFile,omitempty"`
	Enable     bool   `json:"enable,omitempty"`
	SkipVerify bool   `json:"skipVerify,omitempty"`
}

// setDefaults fills in unset values.
func (c *Config) setDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Version == "" {
		c.Version = "2.1.1"
	}
	if c.ClientID == "" {
		c.ClientID = "json2avro-" + uuid.NewString()
	}
	if c.Sink != nil {
		if c.Sink.Partitions == 0 {
			c.Sink.Partitions = 1
		}
		if c.Sink.Replicas == 0 {
			c.Sink.Replicas = 1
		}
		if c.Sink.RetentionMS == 0 {
			c.Sink.RetentionMS = 7 * 24 * 60 * 60 * 1000 // 7 days
		}
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.Source == nil && c.Sink == nil {
		return errors.New("kafka peer needs a source or a sink section")
	}
	if c.Source != nil {
		if c.Source.Group == "" {
			return errors.New("kafka source: group is required")
		}
		if len(c.Source.Topics) == 0 {
			return errors.New("kafka source: at least one topic is required")
		}
		switch c.Source.InitialOffset {
		case "", "oldest", "newest":
		default:
			return fmt.Errorf("kafka source: invalid initialOffset %q", c.Source.InitialOffset)
		}
	}
	if c.Sink != nil && c.Sink.Topic == "" {
		return errors.New("kafka sink: topic is required")
	}
	return nil
}

// ToSaramaConfig converts the Config to a sarama.Config
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	conf := sarama.NewConfig()

	// Set Kafka version
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("error parsing Kafka version: %w", err)
	}
	conf.Version = version

	// Configure SASL
	if c.SASL != nil && c.SASL.Enable {
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = c.SASL.Username
		conf.Net.SASL.Password = c.SASL.Password
		conf.Net.SASL.Handshake = true

		switch c.SASL.Algorithm {
		case "sha512":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		case "sha256":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "", "plain":
			conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, fmt.Errorf("invalid SASL algorithm: %s", c.SASL.Algorithm)
		}
	}

	// Configure TLS
	if c.TLS.Enable {
		tlsConfig, err := createTLSConfiguration(c.TLS)
		if err != nil {
			return nil, err
		}
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConfig
	}

	// Producer
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = 5
	conf.Producer.Retry.Backoff = time.Second
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true

	// Consumer
	conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.Source != nil && c.Source.InitialOffset == "oldest" {
		conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	conf.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}

	conf.ClientID = c.ClientID
	conf.Metadata.Full = true

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return conf, nil
}

func createTLSConfiguration(tlsCfg TLS) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: tlsCfg.SkipVerify,
	}

	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		t.Certificates = []tls.Certificate{cert}
	}

	if tlsCfg.CAFile != "" {
		caCert, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", tlsCfg.CAFile)
		}
		t.RootCAs = caCertPool
	}

	return t, nil
}
