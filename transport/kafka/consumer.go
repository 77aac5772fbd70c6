package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zynerotech/streamhook/transport"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads trigger batches from a topic and hands each message to the
// handler. Every message is committed once handled, whatever the result:
// delivery is a single best-effort attempt.
type Consumer struct {
	reader  messageReader
	handler transport.Handler
	metrics transport.Metrics
	topic   string

	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	isRunning bool
}

// NewConsumer creates a consumer for cfg.Consumer.Topic.
func NewConsumer(cfg Config, handler transport.Handler) (*Consumer, error) {
	if err := cfg.ValidateConsumer(); err != nil {
		return nil, err
	}

	mechanism, err := cfg.mechanism()
	if err != nil {
		return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Consumer.Topic,
		GroupID:     cfg.Consumer.GroupID,
		MinBytes:    cfg.Consumer.MinBytes,
		MaxBytes:    cfg.Consumer.MaxBytes,
		MaxWait:     cfg.Consumer.MaxWait,
		StartOffset: cfg.Consumer.GetStartOffset(),
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mechanism,
		},
	})

	return newConsumer(reader, cfg.Consumer.Topic, handler), nil
}

func newConsumer(reader messageReader, topic string, handler transport.Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		handler: handler,
		topic:   topic,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		metrics: &transport.NoOpMetrics{},
	}
}

// SetMetrics sets the transport metrics sink.
func (c *Consumer) SetMetrics(metrics transport.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// Run blocks until ctx is cancelled or Stop is called.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.isRunning = true
	metrics := c.metrics
	c.mu.Unlock()

	metrics.SetActiveConsumers(1)

	defer func() {
		c.mu.Lock()
		c.isRunning = false
		c.mu.Unlock()
		close(c.doneCh)

		metrics.SetActiveConsumers(0)
		klog().Info().Str("topic", c.topic).Msg("Consumer stopped")
	}()

	klog().Info().Str("topic", c.topic).Msg("Starting consumer")

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.stopCh:
			klog().Info().Msg("Received stop signal")
			cancel()
		case <-consumerCtx.Done():
		}
	}()

	return c.processMessages(consumerCtx, metrics)
}

// Stop initiates graceful shutdown.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		klog().Info().Str("topic", c.topic).Msg("Stopping consumer...")
		close(c.stopCh)
	})
}

// Wait waits for Run to return.
func (c *Consumer) Wait(timeout time.Duration) error {
	select {
	case <-c.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("consumer shutdown timeout after %v", timeout)
	}
}

// Close stops the consumer and releases the reader.
func (c *Consumer) Close() error {
	c.Stop()

	c.mu.RLock()
	running := c.isRunning
	c.mu.RUnlock()
	if running {
		if err := c.Wait(30 * time.Second); err != nil {
			klog().Warn().Err(err).Msg("Consumer did not stop gracefully, forcing close")
		}
	}

	if err := c.reader.Close(); err != nil {
		klog().Error().Err(err).Msg("Error closing Kafka reader")
		return fmt.Errorf("failed to close reader: %w", err)
	}

	klog().Info().Msg("Consumer closed successfully")
	return nil
}

func (c *Consumer) processMessages(ctx context.Context, metrics transport.Metrics) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, io.EOF) {
				// reader closed
				return nil
			}
			klog().Error().Err(err).Str("topic", c.topic).Msg("Error reading message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.IncMessagesReceived(msg.Topic, msg.Partition)

		status := "success"
		if err := c.processMessage(ctx, msg, metrics); err != nil {
			status = "error"
			klog().Error().
				Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Failed to process message")
		}
		metrics.IncMessagesProcessed(msg.Topic, status)

		// Коммитим и после ошибки: повторной доставки нет
		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			klog().Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, metrics transport.Metrics) error {
	start := time.Now()
	defer func() {
		metrics.RecordProcessingTime(msg.Topic, time.Since(start))
	}()

	if err := c.handler.Handle(ctx, toTransportMessage(msg)); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}
	return nil
}

func toTransportMessage(msg kafka.Message) transport.Message {
	return transport.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Time,
	}
}
