package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/IBM/sarama"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/pipeline"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// PeerKafka implements the source and sink for Kafka
type PeerKafka struct {
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	config   *Config
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	// overridable in tests
	newProducer      func(brokers []string, conf *sarama.Config) (sarama.SyncProducer, error)
	newConsumerGroup func(brokers []string, group string, conf *sarama.Config) (sarama.ConsumerGroup, error)
	newClusterAdmin  func(brokers []string, conf *sarama.Config) (sarama.ClusterAdmin, error)

	mu sync.Mutex
}

// New returns an unconnected Kafka peer.
func New() *PeerKafka {
	return &PeerKafka{
		logger:           zap.L().Named("kafka"),
		newProducer:      sarama.NewSyncProducer,
		newConsumerGroup: sarama.NewConsumerGroup,
		newClusterAdmin:  sarama.NewClusterAdmin,
	}
}

func (p *PeerKafka) Connect(config json.RawMessage, _ ...any) error {
	var cfg Config
	if len(config) > 0 {
		if err := gojson.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal Kafka config: %w", err)
		}
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	saramaConfig, err := cfg.ToSaramaConfig()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.Sink != nil {
		if cfg.Sink.CreateTopic {
			if err := p.ensureTopic(cfg, saramaConfig); err != nil {
				return err
			}
		}
		producer, err := p.newProducer(cfg.Brokers, saramaConfig)
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		p.producer = producer
	}

	if cfg.Source != nil {
		group, err := p.newConsumerGroup(cfg.Brokers, cfg.Source.Group, saramaConfig)
		if err != nil {
			if p.producer != nil {
				p.producer.Close()
				p.producer = nil
			}
			return fmt.Errorf("failed to create Kafka consumer group: %w", err)
		}
		p.group = group
	}

	p.config = &cfg
	return nil
}

// Pub produces r to the sink topic, or to the topic given as first argument.
// Absent keys and values are produced as Kafka nulls.
func (p *PeerKafka) Pub(r record.Record, args ...any) error {
	p.mu.Lock()
	producer, cfg := p.producer, p.config
	p.mu.Unlock()
	if producer == nil {
		return fmt.Errorf("kafka producer: %w", pipeline.ErrNotConnected)
	}

	topic := cfg.Sink.Topic
	if len(args) > 0 {
		if t, ok := args[0].(string); ok && t != "" {
			topic = t
		}
	}

	partition, offset, err := producer.SendMessage(ToProducerMessage(topic, r))
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Sub joins the consumer group and delivers every message of the source
// topics. Acknowledging a delivery marks its offset for commit.
func (p *PeerKafka) Sub(_ ...any) (<-chan pipeline.Delivery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group == nil {
		return nil, fmt.Errorf("kafka consumer group: %w", pipeline.ErrNotConnected)
	}
	if p.cancel != nil {
		return nil, errors.New("kafka peer already subscribed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	out := make(chan pipeline.Delivery)
	handler := &groupHandler{out: out, logger: p.logger}
	topics := p.config.Source.Topics
	group := p.group

	go func() {
		defer close(p.done)
		defer close(out)
		for {
			if err := group.Consume(ctx, topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				p.logger.Error("Consumer group error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out, nil
}

func (p *PeerKafka) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

func (p *PeerKafka) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		errs = append(errs, p.group.Close())
		p.group = nil
	}
	if p.done != nil {
		<-p.done
		p.done = nil
		p.cancel = nil
	}
	if p.producer != nil {
		errs = append(errs, p.producer.Close())
		p.producer = nil
	}
	return errors.Join(errs...)
}

func (p *PeerKafka) ensureTopic(cfg Config, saramaConfig *sarama.Config) error {
	admin, err := p.newClusterAdmin(cfg.Brokers, saramaConfig)
	if err != nil {
		return fmt.Errorf("failed to create cluster admin: %w", err)
	}
	defer admin.Close()

	// check if topic exists
	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}
	if _, exists := topics[cfg.Sink.Topic]; exists {
		return nil
	}

	retention := strconv.FormatInt(cfg.Sink.RetentionMS, 10)
	topicDetail := &sarama.TopicDetail{
		NumPartitions:     cfg.Sink.Partitions,
		ReplicationFactor: cfg.Sink.Replicas,
		ConfigEntries: map[string]*string{
			"retention.ms": &retention,
		},
	}
	if err := admin.CreateTopic(cfg.Sink.Topic, topicDetail, false); err != nil {
		return fmt.Errorf("failed to create topic %s: %w", cfg.Sink.Topic, err)
	}

	p.logger.Info("Created topic", zap.String("topic", cfg.Sink.Topic))
	return nil
}

// ToProducerMessage converts a record into a message for topic.
func ToProducerMessage(topic string, r record.Record) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{Topic: topic}
	if r.Key != nil {
		msg.Key = sarama.ByteEncoder(r.Key)
	}
	if r.Value != nil {
		msg.Value = sarama.ByteEncoder(r.Value)
	}
	if len(r.Headers) > 0 {
		msg.Headers = make([]sarama.RecordHeader, len(r.Headers))
		for i, h := range r.Headers {
			msg.Headers[i] = sarama.RecordHeader{Key: h.Key, Value: h.Value}
		}
	}
	return msg
}

// FromConsumerMessage converts a consumed message into a record.
func FromConsumerMessage(msg *sarama.ConsumerMessage) record.Record {
	r := record.Record{Key: msg.Key, Value: msg.Value}
	if len(msg.Headers) > 0 {
		r.Headers = make([]record.Header, 0, len(msg.Headers))
		for _, h := range msg.Headers {
			if h == nil {
				continue
			}
			r.Headers = append(r.Headers, record.Header{Key: h.Key, Value: h.Value})
		}
	}
	return r
}

// groupHandler forwards claimed messages to the pipeline.
type groupHandler struct {
	out    chan<- pipeline.Delivery
	logger *zap.Logger
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	h.logger.Info("Consumer group session started",
		zap.String("member", s.MemberID()),
		zap.Int32("generation", s.GenerationID()))
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			d := pipeline.Delivery{
				WriteEvent: record.WriteEvent{
					Record: FromConsumerMessage(msg),
					Source: record.Source{
						Topic:     msg.Topic,
						Partition: msg.Partition,
						Offset:    msg.Offset,
					},
				},
				Ack: func() { session.MarkMessage(msg, "") },
			}
			select {
			case h.out <- d:
			case <-session.Context().Done():
				return nil
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorKafka, func() pipeline.Connector { return New() })
}
