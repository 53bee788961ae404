package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeflare/json2avro/pkg/pipeline"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
	mu     sync.Mutex
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "in" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

type fakeGroup struct {
	sarama.ConsumerGroup
	claim   *fakeClaim
	session chan *fakeSession
	closed  bool
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	s := &fakeSession{ctx: ctx}
	g.session <- s
	if err := h.Setup(s); err != nil {
		return err
	}
	err := h.ConsumeClaim(s, g.claim)
	_ = h.Cleanup(s)
	<-ctx.Done()
	return err
}

func (g *fakeGroup) Close() error {
	g.closed = true
	return nil
}

type fakeAdmin struct {
	sarama.ClusterAdmin
	topics  map[string]sarama.TopicDetail
	created map[string]*sarama.TopicDetail
}

func (a *fakeAdmin) ListTopics() (map[string]sarama.TopicDetail, error) { return a.topics, nil }
func (a *fakeAdmin) Close() error                                       { return nil }
func (a *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	a.created[topic] = detail
	return nil
}

func consumerMessage(offset int64, key, value []byte, headers ...*sarama.RecordHeader) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "in", Partition: 0, Offset: offset, Key: key, Value: value, Headers: headers}
}

func TestConnectorRegistered(t *testing.T) {
	c, err := pipeline.NewConnector(pipeline.ConnectorKafka)
	require.NoError(t, err)
	assert.IsType(t, &PeerKafka{}, c)
	assert.Equal(t, pipeline.ConnectorTypePubSub, c.Type())
}

func TestPubPreservesKeyAndHeaders(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "orders.avro", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte("k1"), key)
		value, err := msg.Value.Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte("avro"), value)
		assert.Equal(t, []sarama.RecordHeader{{Key: []byte("h1"), Value: []byte("v1")}}, msg.Headers)
		return nil
	})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "override", msg.Topic)
		assert.Nil(t, msg.Key, "absent key")
		assert.Nil(t, msg.Value, "tombstone")
		return nil
	})

	p := New()
	p.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) { return producer, nil }
	require.NoError(t, p.Connect([]byte(`{"sink":{"topic":"orders.avro"}}`)))

	rec := record.NewBuilder().WithKey([]byte("k1")).WithValue([]byte("avro")).WithHeader("h1", "v1").Build()
	require.NoError(t, p.Pub(rec))
	require.NoError(t, p.Pub(record.Record{}, "override"))
	require.NoError(t, p.Disconnect())
}

func TestPubFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := New()
	p.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) { return producer, nil }
	require.NoError(t, p.Connect([]byte(`{"sink":{"topic":"out"}}`)))

	err := p.Pub(record.Record{Value: []byte("x")})
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Disconnect())
}

func TestNotConnected(t *testing.T) {
	p := New()
	assert.ErrorIs(t, p.Pub(record.Record{}), pipeline.ErrNotConnected)
	_, err := p.Sub()
	assert.ErrorIs(t, err, pipeline.ErrNotConnected)
	assert.NoError(t, p.Disconnect())
}

func TestConnectErrors(t *testing.T) {
	testCases := []struct {
		name   string
		config string
	}{
		{name: "malformed", config: `{"brokers":`},
		{name: "no role", config: `{}`},
		{name: "source without group", config: `{"source":{"topics":["a"]}}`},
		{name: "source without topics", config: `{"source":{"group":"g"}}`},
		{name: "bad initial offset", config: `{"source":{"group":"g","topics":["a"],"initialOffset":"latest"}}`},
		{name: "sink without topic", config: `{"sink":{}}`},
		{name: "bad version", config: `{"version":"x.y","sink":{"topic":"t"}}`},
		{name: "bad sasl", config: `{"sasl":{"enable":true,"algorithm":"md5","username":"u","password":"p"},"sink":{"topic":"t"}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			p.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) {
				return nil, errors.New("should not be called")
			}
			assert.Error(t, p.Connect([]byte(tc.config)))
		})
	}
}

func TestConnectCreatesSinkTopic(t *testing.T) {
	admin := &fakeAdmin{topics: map[string]sarama.TopicDetail{"exists": {}}, created: map[string]*sarama.TopicDetail{}}
	producer := mocks.NewSyncProducer(t, nil)

	p := New()
	p.newClusterAdmin = func([]string, *sarama.Config) (sarama.ClusterAdmin, error) { return admin, nil }
	p.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) { return producer, nil }

	require.NoError(t, p.Connect([]byte(`{"sink":{"topic":"new","createTopic":true,"partitions":3}}`)))
	require.Contains(t, admin.created, "new")
	assert.Equal(t, int32(3), admin.created["new"].NumPartitions)
	assert.Equal(t, int16(1), admin.created["new"].ReplicationFactor)
	assert.Equal(t, "604800000", *admin.created["new"].ConfigEntries["retention.ms"])
	require.NoError(t, p.Disconnect())

	p.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) { return mocks.NewSyncProducer(t, nil), nil }
	require.NoError(t, p.Connect([]byte(`{"sink":{"topic":"exists","createTopic":true}}`)))
	assert.NotContains(t, admin.created, "exists")
	require.NoError(t, p.Disconnect())
}

func TestSubDeliversAndAcks(t *testing.T) {
	group := &fakeGroup{
		claim:   &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)},
		session: make(chan *fakeSession, 1),
	}
	group.claim.msgs <- consumerMessage(10, []byte("k1"), []byte(`{"a":1}`), &sarama.RecordHeader{Key: []byte("h1"), Value: []byte("v1")})
	group.claim.msgs <- consumerMessage(11, nil, nil)

	p := New()
	p.newConsumerGroup = func([]string, string, *sarama.Config) (sarama.ConsumerGroup, error) { return group, nil }
	require.NoError(t, p.Connect([]byte(`{"source":{"group":"g","topics":["in"],"initialOffset":"oldest"}}`)))

	deliveries, err := p.Sub()
	require.NoError(t, err)
	_, err = p.Sub()
	assert.Error(t, err, "single subscription")

	session := <-group.session

	first := <-deliveries
	assert.Equal(t, []byte("k1"), first.Record.Key)
	assert.Equal(t, []byte(`{"a":1}`), first.Record.Value)
	assert.Equal(t, []record.Header{{Key: []byte("h1"), Value: []byte("v1")}}, first.Record.Headers)
	assert.Equal(t, record.Source{Topic: "in", Partition: 0, Offset: 10}, first.Source)
	assert.Empty(t, session.markedOffsets(), "not committed before ack")
	first.Ack()

	second := <-deliveries
	assert.Nil(t, second.Record.Key)
	assert.False(t, second.Record.HasValue())
	second.Ack()
	assert.Equal(t, []int64{10, 11}, session.markedOffsets())

	require.NoError(t, p.Disconnect())
	assert.True(t, group.closed)

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok, "channel closed after disconnect")
	case <-time.After(5 * time.Second):
		t.Fatal("deliveries not closed")
	}
}

func TestToSaramaConfig(t *testing.T) {
	cfg := Config{
		Source: &SourceConfig{Group: "g", Topics: []string{"t"}, InitialOffset: "oldest"},
		SASL:   &SASL{Enable: true, Algorithm: "sha256", Username: "u", Password: "p"},
	}
	cfg.setDefaults()
	require.NoError(t, cfg.Validate())

	conf, err := cfg.ToSaramaConfig()
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetOldest, conf.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA256), conf.Net.SASL.Mechanism)
	assert.Equal(t, sarama.WaitForAll, conf.Producer.RequiredAcks)
	assert.Contains(t, conf.ClientID, "json2avro-")
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)

	client := conf.Net.SASL.SCRAMClientGeneratorFunc()
	require.NoError(t, client.Begin("u", "p", ""))
	first, err := client.Step("")
	require.NoError(t, err)
	assert.Contains(t, first, "n=u")
	assert.False(t, client.Done())
}

func TestCreateTLSConfiguration(t *testing.T) {
	tlsConfig, err := createTLSConfiguration(TLS{Enable: true, SkipVerify: true})
	require.NoError(t, err)
	assert.True(t, tlsConfig.InsecureSkipVerify)

	_, err = createTLSConfiguration(TLS{CAFile: "/does/not/exist.pem"})
	assert.Error(t, err)
}
