// Package dispatch доставляет отобранные записи на вебхук
// и агрегирует результаты по каждой записи.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sourcegraph/conc/iter"

	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/stream"
)

const (
	DefaultUserAgent = "DynamoDB-Stream-Lambda/1.0"
	DefaultTimeout   = 10 * time.Second

	// maxResponseBody ограничивает объем тела ответа, сохраняемого в результате
	maxResponseBody = 1 << 20
)

// Envelope тело запроса к вебхуку: одна запись в исходном виде
type Envelope struct {
	Records []json.RawMessage `json:"Records"`
}

// EncodeEnvelope оборачивает запись в Envelope и кодирует ее
func EncodeEnvelope(rec stream.Record) ([]byte, error) {
	if len(rec.Raw) == 0 {
		return nil, fmt.Errorf("record %q has no body", rec.EventID)
	}
	return sonic.Marshal(Envelope{Records: []json.RawMessage{rec.Raw}})
}

// Config содержит настройки вебхука
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Metrics принимает метрики по каждой отправке
type Metrics interface {
	IncDispatched(status Status)
	ObserveDispatchDuration(status Status, d time.Duration)
}

// NoOpMetrics отбрасывает метрики
type NoOpMetrics struct{}

func (NoOpMetrics) IncDispatched(Status)                          {}
func (NoOpMetrics) ObserveDispatchDuration(Status, time.Duration) {}

// Dispatcher отправляет записи на один вебхук, по запросу на запись
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	metrics Metrics
	log     *logger.Logger
}

// Option настраивает Dispatcher
type Option func(*Dispatcher)

// WithMetrics устанавливает приемник метрик
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithLogger устанавливает логгер
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithHTTPClient заменяет HTTP клиент. Таймаут запроса по-прежнему
// задается через контекст запроса.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// NewDispatcher создает Dispatcher. Keep-alive отключен, каждая отправка
// открывает свое соединение.
func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	d := &Dispatcher{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
		metrics: NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Component("dispatcher")
	}
	return d
}

// Dispatch выполняет ровно один POST для записи и не возвращает ошибку:
// любая неудача попадает в Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, rec stream.Record) Outcome {
	start := time.Now()
	outcome := d.dispatch(ctx, rec)

	d.metrics.IncDispatched(outcome.Status)
	d.metrics.ObserveDispatchDuration(outcome.Status, time.Since(start))
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, rec stream.Record) Outcome {
	body, err := EncodeEnvelope(rec)
	if err != nil {
		return Failure(rec.EventID, fmt.Errorf("encode envelope: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Failure(rec.EventID, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.ContentLength = int64(len(body))

	d.log.Info().
		Str("url", d.cfg.URL).
		Str("event_id", rec.EventID).
		Msg("Sending webhook")
	d.log.Debug().RawJSON("payload", body).Msg("Webhook payload")

	resp, err := d.client.Do(req)
	if err != nil {
		return Failure(rec.EventID, d.classify(reqCtx, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Failure(rec.EventID, d.classify(reqCtx, err))
	}

	d.log.Info().
		Int("status", resp.StatusCode).
		Str("event_id", rec.EventID).
		Msg("Webhook response status")
	d.log.Debug().Str("body", string(respBody)).Msg("Webhook response")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success(rec.EventID, resp.StatusCode, string(respBody))
	}
	return Failure(rec.EventID, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
}

func (d *Dispatcher) classify(reqCtx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		d.log.Error().Dur("timeout", d.cfg.Timeout).Msg("Webhook request timeout")
		return ErrTimeout
	}
	d.log.Error().Err(err).Msg("Webhook request error")
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// DispatchAll отправляет все записи параллельно, дожидается завершения
// и возвращает результаты в порядке записей.
func (d *Dispatcher) DispatchAll(ctx context.Context, records []stream.Record) []Outcome {
	if len(records) == 0 {
		return []Outcome{}
	}

	mapper := iter.Mapper[stream.Record, Outcome]{MaxGoroutines: len(records)}
	return mapper.Map(records, func(rec *stream.Record) Outcome {
		return d.Dispatch(ctx, *rec)
	})
}
