package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zynerotech/streamhook/cache"
	"github.com/zynerotech/streamhook/dispatch"
)

// ErrSummaryNotFound возвращается, если сводка вызова не найдена
var ErrSummaryNotFound = errors.New("invocation summary not found")

// InvocationRecord сохраняется и публикуется после завершения вызова
type InvocationRecord struct {
	InvocationID string           `json:"invocation_id"`
	CompletedAt  time.Time        `json:"completed_at"`
	Summary      dispatch.Summary `json:"summary"`
}

// SummaryStore хранит сводки завершенных вызовов
type SummaryStore interface {
	Save(ctx context.Context, rec InvocationRecord) error
	Load(ctx context.Context, invocationID string) (InvocationRecord, error)
}

// CacheStore реализация SummaryStore поверх cache.Cache
type CacheStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCacheStore создает хранилище, записи которого истекают через ttl
func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: c, ttl: ttl}
}

func summaryKey(invocationID string) string {
	return "streamhook:invocation:" + invocationID
}

func (s *CacheStore) Save(ctx context.Context, rec InvocationRecord) error {
	if err := s.cache.Set(ctx, summaryKey(rec.InvocationID), rec, s.ttl); err != nil {
		return fmt.Errorf("save summary %s: %w", rec.InvocationID, err)
	}
	return nil
}

func (s *CacheStore) Load(ctx context.Context, invocationID string) (InvocationRecord, error) {
	data, err := s.cache.Get(ctx, summaryKey(invocationID))
	if err != nil {
		return InvocationRecord{}, fmt.Errorf("load summary %s: %w", invocationID, err)
	}
	if data == nil {
		return InvocationRecord{}, ErrSummaryNotFound
	}

	var rec InvocationRecord
	if err := s.cache.Unmarshal(data, &rec); err != nil {
		return InvocationRecord{}, fmt.Errorf("decode summary %s: %w", invocationID, err)
	}
	return rec, nil
}
