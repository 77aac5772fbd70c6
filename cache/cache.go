package cache

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config представляет конфигурацию для кеша
type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Driver   string        `mapstructure:"driver"` // redis или memory
	Host     string        `mapstructure:"host"`
	Password string        `mapstructure:"password"`
	Port     int           `mapstructure:"port"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Cache определяет интерфейс для работы с кешем
type Cache interface {
	// Get получает значение по ключу; отсутствующий ключ дает (nil, nil)
	Get(ctx context.Context, key string) ([]byte, error)
	// Set сохраняет значение по ключу с указанным TTL
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete удаляет значение по ключу
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error
	// Close освобождает ресурсы
	Close() error
	// Marshal сериализует значение в байты
	Marshal(v any) ([]byte, error)
	// Unmarshal десериализует байты в значение
	Unmarshal(data []byte, v any) error
}

// New создает новый экземпляр кеша на основе конфигурации
func New(config Config) (Cache, error) {
	if !config.Enabled {
		return newNoopCache(), nil
	}
	switch config.Driver {
	case DriverMemory:
		return NewMemory(config.TTL), nil
	case DriverRedis, "":
		return newRedisCache(config)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", config.Driver)
	}
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return sonic.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// redisCache реализует Cache с использованием Redis
type redisCache struct {
	codec
	client *redis.Client
	cfg    Config
}

func newRedisCache(config Config) (*redisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCache{
		client: rdb,
		cfg:    config,
	}, nil
}

func (rc *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s from redis: %w", key, err)
	}
	return val, nil
}

func (rc *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := rc.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	actualTTL := rc.cfg.TTL
	if ttl > 0 {
		actualTTL = ttl
	}

	if err := rc.client.Set(ctx, key, data, actualTTL).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in redis: %w", key, err)
	}
	return nil
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	if err := rc.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s from redis: %w", key, err)
	}
	return nil
}

func (rc *redisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}

// memoryCache хранит значения в памяти процесса, для одного экземпляра и тестов
type memoryCache struct {
	codec
	mu         sync.RWMutex
	items      map[string]memoryItem
	expiry     expiryQueue
	defaultTTL time.Duration
	now        func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// expiryEntry указывает на ключ и срок, с которым он был записан;
// после перезаписи ключа старая запись в очереди просто пропускается
type expiryEntry struct {
	key       string
	expiresAt time.Time
}

// expiryQueue min-heap по expiresAt
type expiryQueue []expiryEntry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].expiresAt.Before(q[j].expiresAt) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expiryQueue) Push(x any)        { *q = append(*q, x.(expiryEntry)) }
func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// NewMemory создает кеш в памяти; ttl <= 0 означает хранение без срока.
// Истекшие записи удаляются при каждой записи, даже если их никто не читает.
func NewMemory(ttl time.Duration) Cache {
	return &memoryCache{
		items:      make(map[string]memoryItem),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

func (mc *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.RLock()
	item, ok := mc.items[key]
	mc.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !item.expiresAt.IsZero() && mc.now().After(item.expiresAt) {
		mc.mu.Lock()
		if cur, ok := mc.items[key]; ok && cur.expiresAt.Equal(item.expiresAt) {
			delete(mc.items, key)
		}
		mc.mu.Unlock()
		return nil, nil
	}
	return item.value, nil
}

func (mc *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := mc.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}

	now := mc.now()
	item := memoryItem{value: data}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.evictExpiredLocked(now)
	mc.items[key] = item
	if !item.expiresAt.IsZero() {
		heap.Push(&mc.expiry, expiryEntry{key: key, expiresAt: item.expiresAt})
	}
	return nil
}

// evictExpiredLocked удаляет записи с истекшим сроком; вызывается под mc.mu
func (mc *memoryCache) evictExpiredLocked(now time.Time) {
	for mc.expiry.Len() > 0 && now.After(mc.expiry[0].expiresAt) {
		e := heap.Pop(&mc.expiry).(expiryEntry)
		if cur, ok := mc.items[e.key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(mc.items, e.key)
		}
	}
}

// Len возвращает число хранимых записей, включая еще не вытесненные истекшие
func (mc *memoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.items)
}

func (mc *memoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	delete(mc.items, key)
	mc.mu.Unlock()
	return nil
}

func (mc *memoryCache) Ping(context.Context) error { return nil }
func (mc *memoryCache) Close() error               { return nil }

// noopCache реализует Cache с пустой реализацией
type noopCache struct {
	codec
}

func newNoopCache() *noopCache {
	return &noopCache{}
}

func (nc *noopCache) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

func (nc *noopCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (nc *noopCache) Delete(_ context.Context, _ string) error {
	return nil
}

func (nc *noopCache) Ping(context.Context) error { return nil }
func (nc *noopCache) Close() error               { return nil }
