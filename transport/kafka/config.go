package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/zynerotech/streamhook/logger"
)

func klog() *logger.Logger {
	return logger.Component("kafka")
}

// Config contains parameters for connecting to Kafka.
type Config struct {
	Brokers  []string       `mapstructure:"brokers" validate:"required,min=1"`
	SASL     *SASLConfig    `mapstructure:"sasl"`
	Producer ProducerConfig `mapstructure:"producer"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

// SASLConfig describes SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism" validate:"oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// ProducerConfig holds settings for publishing invocation events.
type ProducerConfig struct {
	// Topic receives relay.invocation.completed events
	Topic        string        `mapstructure:"topic"`
	Compression  string        `mapstructure:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
	BatchSize    int           `mapstructure:"batch_size" validate:"min=1,max=1000000"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" validate:"min=1ms"`
	RequiredAcks int           `mapstructure:"required_acks" validate:"oneof=-1 0 1"`
}

// ConsumerConfig holds settings for reading trigger batches.
type ConsumerConfig struct {
	// Topic carries trigger batches ({"Records": [...]}) as message values
	Topic       string        `mapstructure:"topic"`
	GroupID     string        `mapstructure:"group_id" validate:"required"`
	MinBytes    int           `mapstructure:"min_bytes" validate:"min=1"`
	MaxBytes    int           `mapstructure:"max_bytes" validate:"min=1"`
	MaxWait     time.Duration `mapstructure:"max_wait" validate:"min=1ms"`
	StartOffset string        `mapstructure:"start_offset" validate:"oneof=earliest latest"`
}

var (
	ErrNoBrokers = errors.New("kafka: at least one broker is required")
	ErrNoGroupID = errors.New("kafka: consumer group_id is required")
	ErrNoTopic   = errors.New("kafka: topic is required")
)

// ValidateConsumer checks the settings a trigger consumer needs.
func (c Config) ValidateConsumer() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Consumer.Topic == "" {
		return ErrNoTopic
	}
	if c.Consumer.GroupID == "" {
		return ErrNoGroupID
	}
	return nil
}

// ValidateProducer checks the settings an event producer needs.
func (c Config) ValidateProducer() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Producer.Topic == "" {
		return ErrNoTopic
	}
	return nil
}

// GetCompressionCodec converts the configured compression string to kafka.Compression.
func (pc *ProducerConfig) GetCompressionCodec() kafka.Compression {
	switch pc.Compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

// GetStartOffset converts the configured start offset to the kafka-go constant.
func (cc *ConsumerConfig) GetStartOffset() int64 {
	if cc.StartOffset == "earliest" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

// mechanism builds the SASL mechanism, or nil when SASL is disabled.
func (c Config) mechanism() (sasl.Mechanism, error) {
	if c.SASL == nil || !c.SASL.Enabled {
		return nil, nil
	}
	switch c.SASL.Mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: c.SASL.Username, Password: c.SASL.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, c.SASL.Username, c.SASL.Password)
	case "SCRAM-SHA-512", "":
		return scram.Mechanism(scram.SHA512, c.SASL.Username, c.SASL.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", c.SASL.Mechanism)
	}
}
