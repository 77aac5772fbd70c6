package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zynerotech/streamhook/dispatch"
	"github.com/zynerotech/streamhook/logger"
)

// Config представляет конфигурацию метрик
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
}

// Metrics представляет собой менеджер метрик
type Metrics struct {
	config   Config
	registry *prometheus.Registry
	server   *http.Server

	// HTTP метрики
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Метрики доставки вебхуков
	webhookDispatches       *prometheus.CounterVec
	webhookDispatchDuration *prometheus.HistogramVec
	invocationsTotal        *prometheus.CounterVec
	invocationRecordsTotal  *prometheus.CounterVec
}

// New создает менеджер метрик со своим реестром. Сервер метрик запускается
// отдельно через Start.
func New(cfg Config) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}
	if cfg.ServiceName == "" {
		return nil, errors.New("metrics: service_name is required")
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		config:   cfg,
		registry: reg,
	}

	// Инициализация HTTP метрик
	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_requests_total", cfg.ServiceName),
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_http_request_duration_seconds", cfg.ServiceName),
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestsInFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_http_requests_in_flight", cfg.ServiceName),
			Help: "Current number of HTTP requests being served",
		},
		[]string{"method", "path"},
	)

	m.webhookDispatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_webhook_dispatches_total", cfg.ServiceName),
			Help: "Total number of webhook dispatch attempts by outcome",
		},
		[]string{"status"},
	)

	m.webhookDispatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_webhook_dispatch_duration_seconds", cfg.ServiceName),
			Help:    "Webhook dispatch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	m.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_invocations_total", cfg.ServiceName),
			Help: "Total number of relay invocations by result status code",
		},
		[]string{"trigger", "status_code"},
	)

	m.invocationRecordsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_invocation_records_total", cfg.ServiceName),
			Help: "Records dispatched by invocations, by outcome",
		},
		[]string{"outcome"},
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return m, nil
}

// Start запускает HTTP-сервер метрик в фоне
func (m *Metrics) Start() {
	if !m.config.Enabled || m.server == nil {
		return
	}
	go func() {
		logger.Info().Msgf("Starting metrics server on %s", m.server.Addr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Stop останавливает HTTP-сервер метрик
func (m *Metrics) Stop(ctx context.Context) error {
	if !m.config.Enabled || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Enabled сообщает, собираются ли метрики
func (m *Metrics) Enabled() bool {
	return m.config.Enabled
}

// Registerer возвращает реестр для внешних коллекторов (kafka, grpc).
// Nil, если метрики выключены.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m.registry == nil {
		return nil
	}
	return m.registry
}

// Handler отдает метрики реестра
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncDispatched реализует dispatch.Metrics
func (m *Metrics) IncDispatched(status dispatch.Status) {
	if !m.config.Enabled {
		return
	}
	m.webhookDispatches.WithLabelValues(string(status)).Inc()
}

// ObserveDispatchDuration реализует dispatch.Metrics
func (m *Metrics) ObserveDispatchDuration(status dispatch.Status, d time.Duration) {
	if !m.config.Enabled {
		return
	}
	m.webhookDispatchDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveInvocation учитывает завершенный вызов и его сводку (nil, если доставки не было)
func (m *Metrics) ObserveInvocation(trigger string, statusCode int, summary *dispatch.Summary) {
	if !m.config.Enabled {
		return
	}
	m.invocationsTotal.WithLabelValues(trigger, strconv.Itoa(statusCode)).Inc()
	if summary == nil {
		return
	}
	m.invocationRecordsTotal.WithLabelValues("successful").Add(float64(summary.Successful))
	m.invocationRecordsTotal.WithLabelValues("failed").Add(float64(summary.Failed))
}

// HTTPMiddleware возвращает middleware для сбора HTTP метрик
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if !m.config.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.httpRequestsInFlight.WithLabelValues(r.Method, r.URL.Path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(r.Method, r.URL.Path).Dec()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		m.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
	})
}

// FiberMiddleware возвращает middleware для Fiber. Путь берется из шаблона
// маршрута, чтобы /invocations/:id не плодил серии.
func (m *Metrics) FiberMiddleware() fiber.Handler {
	if !m.config.Enabled {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		method := c.Method()

		m.httpRequestsInFlight.WithLabelValues(method, c.Path()).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(method, c.Path()).Dec()

		err := c.Next()

		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()

		return err
	}
}

// responseWriter перехватывает статус ответа
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// ServiceName возвращает префикс имен метрик
func (m *Metrics) ServiceName() string {
	return m.config.ServiceName
}
