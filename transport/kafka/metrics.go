// Package kafka contains the Kafka trigger consumer, the invocation event
// publisher and a Prometheus implementation of transport.Metrics. Metric
// names are derived from the provided service name:
//   - messages_received_total             {topic, partition}
//   - messages_processed_total            {topic, status}
//   - message_processing_duration_seconds {topic}
//   - messages_sent_total                 {topic, status}
//   - message_publish_duration_seconds    {topic}
//   - active_consumers                    no labels
//   - active_producers                    no labels
package kafka

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// KafkaMetrics is the Prometheus transport.Metrics implementation.
type KafkaMetrics struct {
	messagesReceived  *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
	processingTime    *prometheus.HistogramVec

	messagesSent *prometheus.CounterVec
	publishTime  *prometheus.HistogramVec

	activeConsumers prometheus.Gauge
	activeProducers prometheus.Gauge
}

// NewKafkaMetrics registers the transport metrics with reg. A nil reg
// means the default registerer.
func NewKafkaMetrics(reg prometheus.Registerer, serviceName string) *KafkaMetrics {
	if serviceName == "" {
		serviceName = "kafka_transport"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &KafkaMetrics{
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_messages_received_total", serviceName),
				Help: "Total number of trigger messages received from Kafka topics",
			},
			[]string{"topic", "partition"},
		),
		messagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_messages_processed_total", serviceName),
				Help: "Total number of trigger messages processed",
			},
			// status label has values: success, error
			[]string{"topic", "status"},
		),
		processingTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_message_processing_duration_seconds", serviceName),
				Help:    "Time spent processing trigger messages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_messages_sent_total", serviceName),
				Help: "Total number of events sent to Kafka topics",
			},
			[]string{"topic", "status"},
		),
		publishTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_message_publish_duration_seconds", serviceName),
				Help:    "Time spent publishing events",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
		activeConsumers: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_active_consumers", serviceName),
			Help: "Number of active consumers",
		}),
		activeProducers: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_active_producers", serviceName),
			Help: "Number of active producers",
		}),
	}
}

func (m *KafkaMetrics) IncMessagesReceived(topic string, partition int) {
	m.messagesReceived.WithLabelValues(topic, strconv.Itoa(partition)).Inc()
}

func (m *KafkaMetrics) IncMessagesProcessed(topic string, status string) {
	m.messagesProcessed.WithLabelValues(topic, status).Inc()
}

func (m *KafkaMetrics) RecordProcessingTime(topic string, duration time.Duration) {
	m.processingTime.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *KafkaMetrics) IncMessagesSent(topic string, status string) {
	m.messagesSent.WithLabelValues(topic, status).Inc()
}

func (m *KafkaMetrics) RecordPublishTime(topic string, duration time.Duration) {
	m.publishTime.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *KafkaMetrics) SetActiveConsumers(count int) {
	m.activeConsumers.Set(float64(count))
}

func (m *KafkaMetrics) SetActiveProducers(count int) {
	m.activeProducers.Set(float64(count))
}
