// Package transport описывает источники триггерных батчей и публикацию
// событий о завершенных вызовах независимо от брокера.
package transport

import (
	"context"
	"io"
	"time"
)

// Consumer читает триггерные батчи из транспорта и передает их Handler
type Consumer interface {
	// Run блокирует выполнение до отмены контекста или вызова Stop
	Run(ctx context.Context) error

	// Stop инициирует graceful shutdown
	Stop()

	// Wait ожидает завершения работы consumer с таймаутом
	Wait(timeout time.Duration) error

	io.Closer
}

// Producer публикует сырые сообщения в транспорт
type Producer interface {
	Publish(ctx context.Context, topic string, key string, value []byte) error
	io.Closer
}
