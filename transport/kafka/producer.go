package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zynerotech/streamhook/transport"
)

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer       messageWriter
	defaultTopic string
	metrics      transport.Metrics
	mu           sync.RWMutex
	closed       bool
}

// NewProducer создает нового KafkaProducer на основе предоставленной конфигурации.
func NewProducer(cfg Config) (*KafkaProducer, error) {
	if err := cfg.ValidateProducer(); err != nil {
		return nil, err
	}

	mechanism, err := cfg.mechanism()
	if err != nil {
		return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		Transport:              &kafka.Transport{SASL: mechanism},
		BatchSize:              cfg.Producer.BatchSize,
		BatchTimeout:           cfg.Producer.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.Producer.RequiredAcks),
		Compression:            cfg.Producer.GetCompressionCodec(),
		AllowAutoTopicCreation: false,
	}

	return newProducer(writer, cfg.Producer.Topic), nil
}

func newProducer(writer messageWriter, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer:       writer,
		defaultTopic: topic,
		metrics:      &transport.NoOpMetrics{},
	}
}

// SetMetrics устанавливает интерфейс метрик
func (p *KafkaProducer) SetMetrics(metrics transport.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = metrics
	p.metrics.SetActiveProducers(1)
}

// Publish отправляет сообщение в topic или в топик по умолчанию
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	start := time.Now()

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("producer is closed")
	}

	t := p.defaultTopic
	if topic != "" {
		t = topic
	}
	metrics := p.metrics
	p.mu.RUnlock()

	defer func() {
		metrics.RecordPublishTime(t, time.Since(start))
	}()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: t,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		metrics.IncMessagesSent(t, "error")
		return err
	}

	metrics.IncMessagesSent(t, "success")
	return nil
}

// Close выполняет graceful shutdown producer
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	klog().Info().Msg("Closing producer...")
	p.metrics.SetActiveProducers(0)

	// Writer дождется отправки всех буферизованных сообщений
	if err := p.writer.Close(); err != nil {
		klog().Error().Err(err).Msg("Error closing Kafka writer")
		return fmt.Errorf("failed to close writer: %w", err)
	}

	p.closed = true
	klog().Info().Msg("Producer closed successfully")
	return nil
}
