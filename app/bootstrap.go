package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zynerotech/streamhook/cache"
	"github.com/zynerotech/streamhook/grpc"
	"github.com/zynerotech/streamhook/healthcheck"
	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/metrics"
	"github.com/zynerotech/streamhook/server"
	"github.com/zynerotech/streamhook/transport/kafka"
)

const shutdownTimeout = 30 * time.Second

// ConfigProvider describes configuration required to bootstrap common
// infrastructure components. It should be implemented by a service specific
// configuration struct.
type ConfigProvider interface {
	Validate() error
	LoggerConfig() logger.Config
}

// GlobalLoggerConfigProvider is implemented by configs that carry
// application info and per-component log levels.
type GlobalLoggerConfigProvider interface {
	GlobalLoggerConfig() *logger.GlobalConfig
}

// OptionalConfigProvider describes optional configuration methods that may not be implemented
// by all services. These methods should return nil if the component is not needed.
type OptionalConfigProvider interface {
	MetricsConfig() *metrics.Config
	HealthcheckConfig() *healthcheck.Config
	ServerConfig() *server.Config
	CacheConfig() *cache.Config
	KafkaConfig() *kafka.Config
	GRPCConfig() *grpc.Config
}

// App contains initialized shared components used across applications.
// Only Logger is guaranteed to be present, other components may be nil.
type App struct {
	Config         ConfigProvider
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	Healthcheck    *healthcheck.Healthcheck
	Server         *server.Server
	GRPCServer     *grpc.Server
	Cache          cache.Cache
	KafkaMetrics   *kafka.KafkaMetrics
	EventPublisher *kafka.KafkaEventPublisher
}

// AppBuilder provides a fluent interface for building App instances
type AppBuilder struct {
	config         ConfigProvider
	logger         *logger.Logger
	metrics        *metrics.Metrics
	healthcheck    *healthcheck.Healthcheck
	server         *server.Server
	grpcServer     *grpc.Server
	cache          cache.Cache
	kafkaMetrics   *kafka.KafkaMetrics
	eventPublisher *kafka.KafkaEventPublisher
	errors         []error
}

// NewBuilder creates a new AppBuilder with the given configuration
func NewBuilder(cfg ConfigProvider) *AppBuilder {
	b := &AppBuilder{
		config: cfg,
		errors: make([]error, 0),
	}
	if err := cfg.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("validate config: %w", err))
	}
	return b
}

// initOptionalComponent initializes optional component based on configuration
// provided by OptionalConfigProvider. It appends initialization errors to the
// builder and logs successful initialization.
func initOptionalComponent[T any, C any](b *AppBuilder, field *T, getCfg func(OptionalConfigProvider) *C, initFn func(C) (T, error), name, successMsg string) {
	optCfg, ok := b.config.(OptionalConfigProvider)
	if !ok {
		return
	}

	cfg := getCfg(optCfg)
	if cfg == nil {
		return
	}

	component, err := initFn(*cfg)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("init %s: %w", name, err))
		return
	}

	*field = component
	logger.Info().Msg(successMsg)
}

// WithLogger initializes the logger (required component)
func (b *AppBuilder) WithLogger() *AppBuilder {
	if b.logger != nil {
		return b
	}

	if gp, ok := b.config.(GlobalLoggerConfigProvider); ok && gp.GlobalLoggerConfig() != nil {
		gcfg := *gp.GlobalLoggerConfig()
		gcfg.Logger = b.config.LoggerConfig()
		if err := logger.InitGlobal(gcfg); err != nil {
			b.errors = append(b.errors, fmt.Errorf("init logger: %w", err))
			return b
		}
		b.logger = logger.GetGlobal()
		logger.Info().Msg("Logger initialized")
		return b
	}

	l, err := logger.New(b.config.LoggerConfig())
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("init logger: %w", err))
		return b
	}

	logger.SetGlobal(l)
	b.logger = l
	logger.Info().Msg("Logger initialized")
	return b
}

// WithMetrics initializes metrics if configuration is provided
func (b *AppBuilder) WithMetrics() *AppBuilder {
	if b.metrics != nil {
		return b
	}
	initOptionalComponent(b, &b.metrics, func(o OptionalConfigProvider) *metrics.Config { return o.MetricsConfig() }, metrics.New, "metrics", "Metrics initialized")
	return b
}

// WithHealthcheck initializes healthcheck if configuration is provided.
// Checks for cache are registered by WithCache.
func (b *AppBuilder) WithHealthcheck() *AppBuilder {
	if b.healthcheck != nil {
		return b
	}
	initOptionalComponent(b, &b.healthcheck, func(o OptionalConfigProvider) *healthcheck.Config { return o.HealthcheckConfig() }, func(cfg healthcheck.Config) (*healthcheck.Healthcheck, error) {
		h, err := healthcheck.New(cfg)
		if err != nil {
			return nil, err
		}
		if b.metrics != nil {
			h.Wrap(b.metrics.HTTPMiddleware)
		}
		return h, nil
	}, "healthcheck", "Healthcheck initialized")
	return b
}

// WithServer initializes HTTP server if configuration is provided
func (b *AppBuilder) WithServer() *AppBuilder {
	if b.server != nil {
		return b
	}
	initOptionalComponent(b, &b.server, func(o OptionalConfigProvider) *server.Config { return o.ServerConfig() }, func(cfg server.Config) (*server.Server, error) {
		if b.metrics != nil {
			return server.New(cfg, b.metrics.FiberMiddleware())
		}
		return server.New(cfg)
	}, "server", "HTTP server initialized")
	return b
}

// WithCache initializes cache if configuration is provided
func (b *AppBuilder) WithCache() *AppBuilder {
	if b.cache != nil {
		return b
	}
	initOptionalComponent(b, &b.cache, func(o OptionalConfigProvider) *cache.Config { return o.CacheConfig() }, cache.New, "cache", "Cache initialized")
	if b.cache != nil && b.healthcheck != nil {
		b.healthcheck.AddCheck("cache", b.cache.Ping)
	}
	return b
}

// WithKafka initializes Kafka producer and event publisher if configuration
// with a producer topic is provided
func (b *AppBuilder) WithKafka() *AppBuilder {
	if b.eventPublisher != nil {
		return b
	}

	// метрики общие для producer и consumer, регистрируются один раз
	if o, ok := b.config.(OptionalConfigProvider); ok && o.KafkaConfig() != nil &&
		b.kafkaMetrics == nil && b.metrics != nil && b.metrics.Enabled() {
		b.kafkaMetrics = kafka.NewKafkaMetrics(b.metrics.Registerer(), b.metrics.ServiceName())
	}

	initOptionalComponent(b, &b.eventPublisher, func(o OptionalConfigProvider) *kafka.Config {
		cfg := o.KafkaConfig()
		if cfg == nil || cfg.Producer.Topic == "" {
			return nil
		}
		return cfg
	}, func(cfg kafka.Config) (*kafka.KafkaEventPublisher, error) {
		producer, err := kafka.NewProducer(cfg)
		if err != nil {
			return nil, err
		}
		if b.kafkaMetrics != nil {
			producer.SetMetrics(b.kafkaMetrics)
		}
		return kafka.NewKafkaEventPublisher(producer, cfg.Producer.Topic), nil
	}, "kafka producer", "Kafka producer initialized")
	return b
}

// WithGRPC initializes gRPC server if configuration is provided
func (b *AppBuilder) WithGRPC() *AppBuilder {
	if b.grpcServer != nil {
		return b
	}
	initOptionalComponent(b, &b.grpcServer, func(o OptionalConfigProvider) *grpc.Config {
		cfg := o.GRPCConfig()
		if cfg == nil || !cfg.Enabled {
			return nil
		}
		return cfg
	}, func(cfg grpc.Config) (*grpc.Server, error) {
		return grpc.NewServer(cfg, logger.Component("grpc"), b.registerer())
	}, "grpc server", "gRPC server initialized")
	return b
}

func (b *AppBuilder) registerer() prometheus.Registerer {
	if b.metrics == nil {
		return nil
	}
	return b.metrics.Registerer()
}

// WithAll initializes all available components based on configuration
func (b *AppBuilder) WithAll() *AppBuilder {
	return b.WithLogger().
		WithMetrics().
		WithHealthcheck().
		WithServer().
		WithCache().
		WithKafka().
		WithGRPC()
}

// Build creates the App instance and returns any errors that occurred during initialization
func (b *AppBuilder) Build() (*App, error) {
	// Logger is required
	if b.logger == nil {
		b.WithLogger()
	}

	if len(b.errors) > 0 {
		return nil, fmt.Errorf("failed to build app: %w", errors.Join(b.errors...))
	}

	logger.Info().Msg("All requested application components initialized successfully")

	return &App{
		Config:         b.config,
		Logger:         b.logger,
		Metrics:        b.metrics,
		Healthcheck:    b.healthcheck,
		Server:         b.server,
		GRPCServer:     b.grpcServer,
		Cache:          b.cache,
		KafkaMetrics:   b.kafkaMetrics,
		EventPublisher: b.eventPublisher,
	}, nil
}

// New initializes all common infrastructure services based on the provided configuration
func New(cfg ConfigProvider) (*App, error) {
	return NewBuilder(cfg).WithAll().Build()
}

// NewWithLogger initializes only the logger (minimal setup)
func NewWithLogger(cfg ConfigProvider) (*App, error) {
	return NewBuilder(cfg).WithLogger().Build()
}

// StartBackground starts the metrics and healthcheck servers. The HTTP and
// gRPC servers block and are started by the caller.
func (a *App) StartBackground() {
	if a == nil {
		return
	}
	if a.Metrics != nil {
		a.Metrics.Start()
	}
	if a.Healthcheck != nil {
		a.Healthcheck.Start()
	}
}

// Close stops servers and releases connections. Every component is closed
// even if an earlier one fails.
func (a *App) Close() error {
	if a == nil {
		return nil
	}

	logger.Info().Msg("Shutting down application components")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			logger.Error().Err(err).Msgf("Failed to stop %s", name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		logger.Info().Msgf("%s stopped", name)
	}

	if a.Server != nil {
		step("HTTP server", func() error { return a.Server.Stop(ctx) })
	}
	if a.GRPCServer != nil {
		step("gRPC server", func() error { return a.GRPCServer.Stop(ctx) })
	}
	if a.EventPublisher != nil {
		step("event publisher", a.EventPublisher.Close)
	}
	if a.Cache != nil {
		step("cache", a.Cache.Close)
	}
	if a.Healthcheck != nil {
		step("healthcheck", func() error { return a.Healthcheck.Stop(ctx) })
	}
	if a.Metrics != nil {
		step("metrics", func() error { return a.Metrics.Stop(ctx) })
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info().Msg("Application shutdown completed")
	return nil
}
