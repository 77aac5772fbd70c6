// Package relay точка входа вызова: превращает пакет записей триггера
// в отфильтрованные отправки на вебхук и итоговый результат.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/zynerotech/streamhook/dispatch"
	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/stream"
	"github.com/zynerotech/streamhook/transport"
)

const (
	// EventInvocationCompleted публикуется после каждого вызова со сводкой
	EventInvocationCompleted = "relay.invocation.completed"

	msgNoRelevantRecords = "No relevant records to process"
	msgCompleted         = "Stream processing completed"
	msgFailed            = "Error processing stream"

	sideEffectTimeout = 5 * time.Second

	// TriggerTransport метка вызовов, пришедших через Handle
	TriggerTransport = "kafka"
)

// Dispatcher доставляет отобранные записи и возвращает по результату на запись
type Dispatcher interface {
	DispatchAll(ctx context.Context, records []stream.Record) []dispatch.Outcome
}

// InvocationObserver получает сведения о каждом завершенном вызове
type InvocationObserver interface {
	ObserveInvocation(trigger string, statusCode int, summary *dispatch.Summary)
}

// Result ответ вызова триггеру
type Result struct {
	StatusCode   int
	Body         []byte
	InvocationID string

	// Summary равен nil, если отправок не было
	Summary *dispatch.Summary
}

// Err возвращает ошибку для неудачного (5xx) вызова
func (res Result) Err() error {
	if res.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("invocation %s failed: %s", res.InvocationID, res.Body)
	}
	return nil
}

type completedBody struct {
	Message    string `json:"message"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

type messageBody struct {
	Message string `json:"message"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Relay связывает фильтр, диспетчер и агрегатор
type Relay struct {
	filter     *stream.Filter
	dispatcher Dispatcher
	store      SummaryStore
	publisher  transport.EventPublisher
	observer   InvocationObserver
	log        *logger.Logger
	newID      func() string
	now        func() time.Time

	dispatchOpts []dispatch.Option
}

// Option настраивает Relay
type Option func(*Relay)

// WithDispatcher заменяет диспетчер, построенный по конфигурации
func WithDispatcher(d Dispatcher) Option {
	return func(r *Relay) {
		if d != nil {
			r.dispatcher = d
		}
	}
}

// WithSummaryStore сохраняет каждую сводку в s
func WithSummaryStore(s SummaryStore) Option {
	return func(r *Relay) { r.store = s }
}

// WithEventPublisher публикует каждый завершенный вызов через p
func WithEventPublisher(p transport.EventPublisher) Option {
	return func(r *Relay) { r.publisher = p }
}

// WithInvocationObserver сообщает о вызовах, пришедших через Handle
func WithInvocationObserver(o InvocationObserver) Option {
	return func(r *Relay) { r.observer = o }
}

// WithLogger устанавливает логгер
func WithLogger(l *logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDispatchOptions передает opts диспетчеру, построенному по конфигурации.
// Игнорируется вместе с WithDispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(r *Relay) {
		r.dispatchOpts = append(r.dispatchOpts, opts...)
	}
}

// New создает Relay из cfg, предварительно нормализуя его
func New(cfg Config, opts ...Option) *Relay {
	cfg = cfg.Sanitize()

	r := &Relay{
		filter: stream.NewFilter(
			cfg.TableName,
			stream.ChangeType(cfg.EventName),
			cfg.Extractor(),
			logger.Component("filter"),
		),
		log:   logger.Component("relay"),
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dispatcher == nil {
		r.dispatcher = dispatch.NewDispatcher(cfg.DispatchConfig(), r.dispatchOpts...)
	}
	return r
}

// Invoke обрабатывает одну полезную нагрузку триггера и не возвращает ошибку:
// сбои до подсчета сводки превращаются в Result со статусом 500.
//
// Отправка отвязана от отмены ctx, запросы прерывает только таймаут запроса.
func (r *Relay) Invoke(ctx context.Context, payload []byte) (res Result) {
	invocationID := r.newID()
	log := r.log.WithField("invocation_id", invocationID)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			log.Error().Err(err).Msg("Error processing DynamoDB stream")
			res = errorResult(invocationID, err)
		}
	}()

	log.Info().Int("payload_bytes", len(payload)).Msg("DynamoDB Stream event received")
	log.Debug().RawJSON("payload", rawOrEmpty(payload)).Msg("Trigger payload")

	batch, err := stream.ParseBatch(payload)
	if err != nil {
		log.Error().Err(err).Msg("Error processing DynamoDB stream")
		return errorResult(invocationID, err)
	}

	shortlist := r.filter.Apply(batch.Records)
	if len(shortlist) == 0 {
		log.Info().Int("records", len(batch.Records)).Msg(msgNoRelevantRecords)
		return jsonResult(invocationID, http.StatusOK, messageBody{Message: msgNoRelevantRecords}, nil)
	}

	log.Info().Int("relevant", len(shortlist)).Msgf("Processing %d relevant records", len(shortlist))

	outcomes := r.dispatcher.DispatchAll(context.WithoutCancel(ctx), shortlist)
	summary := dispatch.Summarize(outcomes, logger.Component("aggregator"))

	r.afterInvocation(ctx, InvocationRecord{
		InvocationID: invocationID,
		CompletedAt:  r.now().UTC(),
		Summary:      summary.WithoutBodies(),
	})

	return jsonResult(invocationID, http.StatusOK, completedBody{
		Message:    msgCompleted,
		Processed:  summary.Processed,
		Successful: summary.Successful,
		Failed:     summary.Failed,
	}, &summary)
}

// Handle принимает пакеты записей из транспорта.
// Результат 500 возвращается как ошибка, повторной доставки нет.
func (r *Relay) Handle(ctx context.Context, msg transport.Message) error {
	res := r.Invoke(ctx, msg.Value)
	if r.observer != nil {
		r.observer.ObserveInvocation(TriggerTransport, res.StatusCode, res.Summary)
	}
	return res.Err()
}

// Store возвращает хранилище сводок или nil
func (r *Relay) Store() SummaryStore {
	return r.store
}

// afterInvocation сохраняет и публикует сводку. Ошибки только логируются
// и не влияют на Result.
func (r *Relay) afterInvocation(ctx context.Context, rec InvocationRecord) {
	if r.store == nil && r.publisher == nil {
		return
	}

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Save(sideCtx, rec); err != nil {
			r.log.Warn().Err(err).Str("invocation_id", rec.InvocationID).Msg("Failed to store invocation summary")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(sideCtx, EventInvocationCompleted, rec.InvocationID, rec); err != nil {
			r.log.Warn().Err(err).Str("invocation_id", rec.InvocationID).Msg("Failed to publish invocation event")
		}
	}
}

func jsonResult(invocationID string, status int, body any, summary *dispatch.Summary) Result {
	data, err := sonic.Marshal(body)
	if err != nil {
		return errorResult(invocationID, err)
	}
	return Result{StatusCode: status, Body: data, InvocationID: invocationID, Summary: summary}
}

func errorResult(invocationID string, err error) Result {
	data, mErr := sonic.Marshal(errorBody{Message: msgFailed, Error: err.Error()})
	if mErr != nil {
		data = []byte(`{"message":"` + msgFailed + `","error":"internal error"}`)
	}
	return Result{StatusCode: http.StatusInternalServerError, Body: data, InvocationID: invocationID}
}

func rawOrEmpty(payload []byte) []byte {
	if sonic.Valid(payload) {
		return payload
	}
	return []byte(`null`)
}
