package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"circle-go/internal/config"
)

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	// SendMessage enqueues a message and returns without waiting for the
	// broker; delivery failures are reported in the background.
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer    *kafka.Producer
	log         *slog.Logger
	reportsDone chan struct{}
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using
// confluent-kafka-go. Messages that are not acknowledged within
// cfg.DeliveryTimeoutSec are dropped by librdkafka and logged.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, log *slog.Logger) (MessageProducer, error) {
	timeout := time.Duration(cfg.DeliveryTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(cfg.Brokers, ","),
		"security.protocol":  cfg.Protocol,
		"acks":               "all",
		"message.timeout.ms": int(timeout.Milliseconds()),
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	cp := &confluentKafkaProducer{producer: p, log: log, reportsDone: make(chan struct{})}
	go cp.handleDeliveryReports()
	return cp, nil
}

// SendMessage enqueues a single message for the specified Kafka topic. It
// only fails when the message cannot be queued locally.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka producer: not sending to topic %s: %w", topic, err)
	}

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}

	// nil delivery channel: the report arrives on Events()
	if err := p.producer.Produce(kafkaMsg, nil); err != nil {
		return fmt.Errorf("kafka producer failed to enqueue message for topic %s: %w", topic, err)
	}
	return nil
}

// handleDeliveryReports drains the producer's event channel until Close.
func (p *confluentKafkaProducer) handleDeliveryReports() {
	defer close(p.reportsDone)
	for e := range p.producer.Events() {
		p.handleEvent(e)
	}
}

func (p *confluentKafkaProducer) handleEvent(e kafka.Event) {
	switch ev := e.(type) {
	case *kafka.Message:
		topic := ""
		if ev.TopicPartition.Topic != nil {
			topic = *ev.TopicPartition.Topic
		}
		if ev.TopicPartition.Error != nil {
			p.log.Warn("kafka delivery failed", "topic", topic, "key", string(ev.Key), "error", ev.TopicPartition.Error)
			return
		}
		p.log.Debug("kafka message delivered", "topic", topic, "partition", ev.TopicPartition.Partition, "offset", ev.TopicPartition.Offset.String())
	case kafka.Error:
		p.log.Warn("kafka producer error", "code", ev.Code().String(), "error", ev)
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	remaining := p.producer.Flush(15 * 1000)
	if remaining > 0 {
		p.log.Warn("kafka producer closing with undelivered messages", "remaining", remaining)
	}
	p.producer.Close()
	<-p.reportsDone
	p.log.Info("kafka producer closed")
}
