package kafka

import (
	"context"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/zynerotech/streamhook/transport"
)

// KafkaEventPublisher реализует transport.EventPublisher поверх Producer.
type KafkaEventPublisher struct {
	producer transport.Producer
	topic    string
	now      func() time.Time
}

// NewKafkaEventPublisher создает новый экземпляр KafkaEventPublisher.
func NewKafkaEventPublisher(p transport.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: p,
		topic:    topic,
		now:      time.Now,
	}
}

// Publish сериализует payload, оборачивает его в Envelope и отправляет в Kafka.
func (kep *KafkaEventPublisher) Publish(ctx context.Context, eventType string, eventID string, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		klog().Error().Err(err).Str("event_type", eventType).Msg("Error marshalling payload")
		return err
	}

	if eventID == "" {
		eventID = uuid.NewString()
	}

	envelope := transport.Envelope{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: kep.now().UTC(),
		Payload:    payloadBytes,
	}

	envelopeBytes, err := json.Marshal(envelope)
	if err != nil {
		klog().Error().Err(err).Msg("Error marshalling event envelope")
		return err
	}

	// EventID как ключ: события одного вызова попадают в одну партицию
	return kep.producer.Publish(ctx, kep.topic, envelope.EventID, envelopeBytes)
}

// Close закрывает нижележащий producer.
func (kep *KafkaEventPublisher) Close() error {
	return kep.producer.Close()
}
