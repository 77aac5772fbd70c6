package transport

import (
	"encoding/json"
	"time"
)

// Envelope оборачивает публикуемые события
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Message представляет входящее сообщение транспорта; Value содержит триггерный батч
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}
