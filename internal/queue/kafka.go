package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	kafka "github.com/segmentio/kafka-go"

	"github.com/denishrana09/smpp-gateway/internal/config"
)

// Producer publishes gateway events to the durable queue, one writer per
// topic.
type Producer struct {
	incoming *kafka.Writer
	reports  *kafka.Writer
}

// NewProducer creates writers for both gateway topics.
func NewProducer(cfg config.KafkaConfig) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			Balancer: &kafka.Hash{},
		})
	}
	return &Producer{
		incoming: newWriter(TopicIncomingMessages),
		reports:  newWriter(TopicDeliveryReports),
	}
}

// PublishIncoming publishes an accepted submission, keyed by client id so a
// client's messages stay on one partition.
func (p *Producer) PublishIncoming(ctx context.Context, msg IncomingMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling incoming message: %w", err)
	}
	return p.incoming.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ClientID),
		Value: value,
	})
}

// PublishDeliveryReport publishes a correlated delivery report event.
func (p *Producer) PublishDeliveryReport(ctx context.Context, evt DeliveryReportEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling delivery report event: %w", err)
	}
	return p.reports.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ClientID),
		Value: value,
	})
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.incoming, p.reports} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IncomingHandler processes one consumed submission.
type IncomingHandler func(ctx context.Context, msg IncomingMessage) error

// Consumer reads the incoming-messages topic within a consumer group.
type Consumer struct {
	reader  *kafka.Reader
	handler IncomingHandler
}

// NewIncomingConsumer creates a consumer for the incoming-messages topic.
func NewIncomingConsumer(cfg config.KafkaConfig, handler IncomingHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.ConsumerGroupID,
			Topic:    TopicIncomingMessages,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		handler: handler,
	}
}

// Run consumes until ctx is cancelled. Malformed payloads and handler
// failures are logged and skipped; redelivery policy belongs to the queue,
// not to the consumer loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading from %s: %w", TopicIncomingMessages, err)
		}

		var msg IncomingMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			slog.WarnContext(ctx, "Discarding malformed queue payload",
				slog.String("topic", TopicIncomingMessages), slog.Any("error", err))
			continue
		}

		if err := c.handler(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Incoming message handler failed",
				slog.String("msg_id", msg.InternalID), slog.Any("error", err))
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// EnsureTopics creates the gateway topics if they do not already exist.
func EnsureTopics(ctx context.Context, cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dialing kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("resolving kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dialing kafka controller: %w", err)
	}
	defer controllerConn.Close()

	existing := make(map[string]bool)
	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("listing kafka topics: %w", err)
	}
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var toCreate []kafka.TopicConfig
	for _, topic := range []string{TopicIncomingMessages, TopicDeliveryReports} {
		if existing[topic] {
			continue
		}
		toCreate = append(toCreate, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: cfg.ReplicationFactor,
		})
	}
	if len(toCreate) == 0 {
		return nil
	}

	if err := controllerConn.CreateTopics(toCreate...); err != nil {
		return fmt.Errorf("creating kafka topics: %w", err)
	}
	slog.InfoContext(ctx, "Kafka topics created", slog.Int("count", len(toCreate)))
	return nil
}
