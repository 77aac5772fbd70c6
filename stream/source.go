package stream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceUnresolved возвращается, если из идентификатора нельзя извлечь источник
var ErrSourceUnresolved = errors.New("source identifier unresolved")

const (
	DefaultSourceDelimiter = "/"
	DefaultSourceSegment   = 1
)

// SourceExtractor извлекает имя таблицы из идентификатора вида
// arn:aws:dynamodb:us-east-1:123:table/AuditEvents/stream/2024.
// Segment - индекс (с нуля) после разбиения по Delimiter.
type SourceExtractor struct {
	Delimiter string
	Segment   int
}

// DefaultSourceExtractor возвращает экстрактор для ARN потоков DynamoDB
func DefaultSourceExtractor() SourceExtractor {
	return SourceExtractor{Delimiter: DefaultSourceDelimiter, Segment: DefaultSourceSegment}
}

// Extract возвращает настроенный сегмент id
func (e SourceExtractor) Extract(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrSourceUnresolved)
	}

	delimiter := e.Delimiter
	if delimiter == "" {
		delimiter = DefaultSourceDelimiter
	}

	parts := strings.Split(id, delimiter)
	if e.Segment < 0 || e.Segment >= len(parts) {
		return "", fmt.Errorf("%w: %q has no segment %d", ErrSourceUnresolved, id, e.Segment)
	}

	source := parts[e.Segment]
	if source == "" {
		return "", fmt.Errorf("%w: %q has an empty segment %d", ErrSourceUnresolved, id, e.Segment)
	}
	return source, nil
}
