// Package kafka provides Kafka producer and consumer functionality.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/riskfabric/cyberrisk/pkg/config"
)

// Producer is a Kafka message producer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// Consumer is a Kafka message consumer.
type Consumer struct {
	consumer sarama.ConsumerGroup
	logger   *slog.Logger
}

// Message represents a Kafka message.
type Message struct {
	Key       string
	Value     []byte
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// Event is the envelope for every event the risk engine emits or consumes.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an event with a fresh id and the JSON encoding of data.
func NewEvent(eventType, source string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// DecodeEvent parses an event envelope and unmarshals its data into out.
func DecodeEvent(value []byte, out any) (Event, error) {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if out != nil && len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, out); err != nil {
			return ev, fmt.Errorf("failed to decode %s event data: %w", ev.Type, err)
		}
	}
	return ev, nil
}

func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Retry.Max = 5
	c.Producer.Return.Successes = true
	c.Producer.Compression = sarama.CompressionSnappy
	return c
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewProducerWith(producer, slog.Default()), nil
}

// NewProducerWith wraps an existing sarama producer.
func NewProducerWith(producer sarama.SyncProducer, logger *slog.Logger) *Producer {
	return &Producer{
		producer: producer,
		logger:   logger.With("component", "kafka-producer"),
	}
}

// Publish publishes a JSON-encoded value to the given topic.
func (p *Producer) Publish(ctx context.Context, topic string, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("message published",
		"topic", topic,
		"key", key,
		"partition", partition,
		"offset", offset,
	)

	return nil
}

// PublishEvent publishes an event keyed by key so that events for the same
// organization land on one partition.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event Event) error {
	return p.Publish(ctx, topic, key, event)
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// MessageHandler handles incoming Kafka messages.
type MessageHandler func(ctx context.Context, msg Message) error

// ConsumerGroupHandler implements sarama.ConsumerGroupHandler.
type ConsumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

// Setup is called at the beginning of a new session.
func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session.
func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition. A message whose handler
// fails is logged and left unmarked.
func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler(session.Context(), toMessage(msg)); err != nil {
				h.logger.Error("failed to process message",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				continue
			}
			session.MarkMessage(msg, "")
		}
	}
}

func toMessage(msg *sarama.ConsumerMessage) Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		if header == nil {
			continue
		}
		headers[string(header.Key)] = string(header.Value)
	}

	return Message{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Timestamp,
		Headers:   headers,
	}
}

// NewConsumer creates a new Kafka consumer group member.
func NewConsumer(cfg config.KafkaConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: consumer,
		logger:   slog.Default().With("component", "kafka-consumer"),
	}, nil
}

// Subscribe consumes the given topics until ctx is done.
func (c *Consumer) Subscribe(ctx context.Context, topics []string, handler MessageHandler) error {
	groupHandler := &ConsumerGroupHandler{
		handler: handler,
		logger:  c.logger,
	}

	for {
		if err := c.consumer.Consume(ctx, topics, groupHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("consumer error", "error", err)
			return fmt.Errorf("consumer error: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

// Health checks that the brokers are reachable.
func Health(brokers []string) error {
	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 5 * time.Second

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	return client.Close()
}
