package bus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

// Kafka record header keys.
const (
	headerCorrelationID = "correlation_id"
	headerEventType     = "event_type"
)

// consumerBackoff is the pause before a failed group session is retried.
const consumerBackoff = time.Second

// KafkaConfig configures a KafkaBus.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string        // Default: rice-syntax-bus
	Version       string        // Default: 2.8.0
	Timeout       time.Duration // Request timeout
	Logger        *logger.Logger
}

// KafkaBus carries events over Kafka topics. Each subscribed topic gets
// its own consumer-group session. Replies to Request are read from every
// partition of the response topic by a plain consumer, outside the group,
// and matched by correlation id.
type KafkaBus struct {
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	replies  sarama.Consumer
	client   sarama.Client
	timeout  time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	pending  map[string]chan Event
	closed   bool

	// replyMu serializes starting reply listeners; listening marks the
	// response topics that have one.
	replyMu   sync.Mutex
	listening map[string]bool

	stop     context.Context
	stopFn   context.CancelFunc
	sessions sync.WaitGroup
}

func saramaConfig(cfg KafkaConfig) (*sarama.Config, error) {
	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Net.DialTimeout = 10 * time.Second
	sc.Net.ReadTimeout = 10 * time.Second
	sc.Net.WriteTimeout = 10 * time.Second
	return sc, nil
}

// NewKafkaBus connects to cfg.Brokers.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	switch {
	case len(cfg.Brokers) == 0:
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	case cfg.ConsumerGroup == "":
		return nil, errors.New(errors.CodeValidation, "kafka consumer group cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "rice-syntax-bus"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to connect to kafka", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka consumer group", err)
	}
	replies, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		group.Close()
		producer.Close()
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka reply consumer", err)
	}

	b := newKafkaBus(producer, cfg.Timeout, cfg.Logger)
	b.group = group
	b.replies = replies
	b.client = client
	return b, nil
}

func newKafkaBus(producer sarama.SyncProducer, timeout time.Duration, log *logger.Logger) *KafkaBus {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	stop, stopFn := context.WithCancel(context.Background())
	return &KafkaBus{
		producer: producer,
		timeout:  timeout,
		log:      log.WithComponent("bus.kafka"),
		handlers:  make(map[string][]Handler),
		pending:   make(map[string]chan Event),
		listening: make(map[string]bool),
		stop:      stop,
		stopFn:    stopFn,
	}
}

// encodeMessage keys the record by event id so retries of one event land
// on one partition.
func encodeMessage(topic string, event Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(data),
	}
	if event.Type != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(headerEventType), Value: []byte(event.Type)})
	}
	if event.CorrelationID != "" {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(headerCorrelationID), Value: []byte(event.CorrelationID)})
	}
	return msg, nil
}

// decodeMessage restores an event. A correlation header fills in a body
// that lacks one.
func decodeMessage(msg *sarama.ConsumerMessage) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return Event{}, err
	}
	if event.CorrelationID == "" {
		for _, h := range msg.Headers {
			if h != nil && string(h.Key) == headerCorrelationID {
				event.CorrelationID = string(h.Value)
			}
		}
	}
	return event, nil
}

// Publish sends event to topic and waits for the broker ack.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	msg, err := encodeMessage(topic, event)
	if err != nil {
		return err
	}
	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}
	b.log.Debug("Published event", "topic", topic, "event_id", event.ID, "partition", partition, "offset", offset)
	return nil
}

// Subscribe adds handler to topic. The first handler on a topic starts
// its consumer session.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}
	b.addHandlerLocked(topic, handler)
	return nil
}

func (b *KafkaBus) addHandlerLocked(topic string, handler Handler) {
	first := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)
	if first && b.group != nil {
		b.sessions.Add(1)
		go b.consume(topic)
	}
}

// Request publishes req on topic and waits for the event on
// ResponseTopic(topic) carrying the same correlation id.
func (b *KafkaBus) Request(ctx context.Context, topic string, req Event) (Event, error) {
	if req.CorrelationID == "" {
		return Event{}, errors.New(errors.CodeInvalidRequest, "request event has no correlation id")
	}

	reply := make(chan Event, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}, errors.New(errors.CodeUnavailable, "bus is closed")
	}
	b.pending[req.CorrelationID] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, req.CorrelationID)
		b.mu.Unlock()
	}()

	// The listener's start offsets are resolved before the request goes
	// out, so the reply cannot land ahead of them.
	if err := b.listenReplies(ResponseTopic(topic)); err != nil {
		return Event{}, err
	}
	if err := b.Publish(ctx, topic, req); err != nil {
		return Event{}, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Event{}, errors.Wrap(errors.CodeTimeout, "request timeout", ctx.Err())
	case <-timer.C:
		return Event{}, errors.TimeoutError("bus request on " + topic)
	case <-b.stop.Done():
		return Event{}, errors.New(errors.CodeUnavailable, "bus is closed")
	}
}

// handleResponse routes a reply to its waiting Request. Replies nobody
// waits for are dropped.
func (b *KafkaBus) handleResponse(_ context.Context, event Event) error {
	b.mu.RLock()
	reply, ok := b.pending[event.CorrelationID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case reply <- event:
	default:
		b.log.Debug("Dropping duplicate reply", "correlation_id", event.CorrelationID)
	}
	return nil
}

// listenReplies starts one partition consumer per partition of topic at
// the newest offset, once per topic. A bus without a reply consumer skips
// this.
func (b *KafkaBus) listenReplies(topic string) error {
	b.replyMu.Lock()
	defer b.replyMu.Unlock()
	if b.replies == nil || b.listening[topic] {
		return nil
	}

	partitions, err := b.replies.Partitions(topic)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to list reply partitions", err).WithDetail("topic", topic)
	}
	started := make([]sarama.PartitionConsumer, 0, len(partitions))
	for _, p := range partitions {
		pc, err := b.replies.ConsumePartition(topic, p, sarama.OffsetNewest)
		if err != nil {
			for _, s := range started {
				_ = s.Close()
			}
			return errors.Wrap(errors.CodeUnavailable, "failed to consume reply partition", err).
				WithDetail("topic", topic).WithDetail("partition", fmt.Sprint(p))
		}
		started = append(started, pc)
	}
	for _, pc := range started {
		b.sessions.Add(1)
		go b.drainReplies(topic, pc)
	}
	b.listening[topic] = true
	b.log.Debug("Listening for replies", "topic", topic, "partitions", len(started))
	return nil
}

func (b *KafkaBus) drainReplies(topic string, pc sarama.PartitionConsumer) {
	defer b.sessions.Done()
	defer func() {
		if err := pc.Close(); err != nil {
			b.log.Warn("Closing reply consumer failed", "topic", topic, "error", err)
		}
	}()

	for {
		select {
		case <-b.stop.Done():
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			event, err := decodeMessage(msg)
			if err != nil {
				b.log.Warn("Dropping undecodable reply", "topic", topic, "offset", msg.Offset, "error", err)
				continue
			}
			_ = b.handleResponse(b.stop, event)
		case cerr, ok := <-pc.Errors():
			if !ok {
				return
			}
			b.log.Warn("Reply consumer error", "topic", topic, "error", cerr)
		}
	}
}

// consume keeps a group session open on topic until Close. Consume
// returns on every rebalance, so it is called in a loop.
func (b *KafkaBus) consume(topic string) {
	defer b.sessions.Done()

	h := &topicConsumer{bus: b, topic: topic}
	for {
		err := b.group.Consume(b.stop, []string{topic}, h)
		if b.stop.Err() != nil {
			return
		}
		if err != nil {
			b.log.Warn("Consumer session failed", "topic", topic, "error", err)
		}
		select {
		case <-b.stop.Done():
			return
		case <-time.After(consumerBackoff):
		}
	}
}

func (b *KafkaBus) dispatch(ctx context.Context, topic string, event Event) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.log.Warn("Handler failed", "topic", topic, "event_id", event.ID, "error", err)
		}
	}
}

// Close stops every consumer session and reply listener, then closes the
// reply consumer, group, producer and client. It is safe to call more than once.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.stopFn()
	b.sessions.Wait()

	var errs []error
	if b.replies != nil {
		if err := b.replies.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reply consumer: %w", err))
		}
	}
	if b.group != nil {
		if err := b.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer group: %w", err))
		}
	}
	if b.producer != nil {
		if err := b.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if b.client != nil && !b.client.Closed() {
		if err := b.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(errors.CodeInternal, "closing kafka bus", err)
	}
	return nil
}

// topicConsumer feeds one topic's claims to the bus handlers.
type topicConsumer struct {
	bus   *KafkaBus
	topic string
}

func (*topicConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*topicConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *topicConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			event, err := decodeMessage(msg)
			if err != nil {
				c.bus.log.Warn("Dropping undecodable message", "topic", c.topic, "offset", msg.Offset, "error", err)
			} else {
				c.bus.dispatch(session.Context(), c.topic, event)
			}
			session.MarkMessage(msg, "")
		}
	}
}

// ParseKafkaBrokers splits a comma-separated broker list, dropping empty
// entries.
func ParseKafkaBrokers(s string) []string {
	var brokers []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}
