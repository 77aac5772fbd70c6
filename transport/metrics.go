package transport

import (
	"time"
)

// Metrics определяет интерфейс для сбора метрик транспорта
type Metrics interface {
	// Consumer метрики
	IncMessagesReceived(topic string, partition int)
	IncMessagesProcessed(topic string, status string) // status: success, error
	RecordProcessingTime(topic string, duration time.Duration)

	// Producer метрики
	IncMessagesSent(topic string, status string) // status: success, error
	RecordPublishTime(topic string, duration time.Duration)

	// Общие метрики
	SetActiveConsumers(count int)
	SetActiveProducers(count int)
}

// NoOpMetrics реализация метрик, которая ничего не делает (для тестов/отключения)
type NoOpMetrics struct{}

func (m *NoOpMetrics) IncMessagesReceived(topic string, partition int)           {}
func (m *NoOpMetrics) IncMessagesProcessed(topic string, status string)          {}
func (m *NoOpMetrics) RecordProcessingTime(topic string, duration time.Duration) {}
func (m *NoOpMetrics) IncMessagesSent(topic string, status string)               {}
func (m *NoOpMetrics) RecordPublishTime(topic string, duration time.Duration)    {}
func (m *NoOpMetrics) SetActiveConsumers(count int)                              {}
func (m *NoOpMetrics) SetActiveProducers(count int)                              {}
