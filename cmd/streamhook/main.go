package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zynerotech/streamhook/app"
	"github.com/zynerotech/streamhook/config"
	"github.com/zynerotech/streamhook/dispatch"
	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/relay"
	"github.com/zynerotech/streamhook/relay/httpapi"
	"github.com/zynerotech/streamhook/transport/kafka"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default configs/$APP_ENV.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Error().Err(err).Msg("streamhook stopped with error")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := &ServiceConfig{}
	err := config.Load(cfg, configPath,
		config.WithOptionalFile(),
		config.WithDefaults(defaults()),
		config.WithEnvBindings(relay.EnvBindings(relayKey)),
	)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error().Err(err).Msg("Shutdown finished with errors")
		}
	}()

	opts := []relay.Option{}
	if application.Metrics != nil {
		opts = append(opts,
			relay.WithDispatchOptions(dispatch.WithMetrics(application.Metrics)),
			relay.WithInvocationObserver(application.Metrics),
		)
	}
	if application.Cache != nil {
		opts = append(opts, relay.WithSummaryStore(relay.NewCacheStore(application.Cache, cfg.Relay.SummaryTTL)))
	}
	if application.EventPublisher != nil {
		opts = append(opts, relay.WithEventPublisher(application.EventPublisher))
	}
	r := relay.New(cfg.Relay, opts...)

	logger.Info().
		Str("webhook_url", cfg.Relay.WebhookURL).
		Int("webhook_timeout_ms", cfg.Relay.WebhookTimeoutMS).
		Str("table_name", cfg.Relay.TableName).
		Str("event_name", cfg.Relay.EventName).
		Str("env", config.GetEnv()).
		Msg("Relay configured")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 3)
	application.StartBackground()

	if application.Server != nil {
		var observer httpapi.InvocationObserver
		if application.Metrics != nil {
			observer = application.Metrics
		}
		httpapi.New(r, r.Store(), observer).Register(application.Server.App())
		go func() {
			logger.Info().Str("address", cfg.Server.Address).Msg("Starting HTTP server")
			if err := application.Server.Start(); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if application.GRPCServer != nil {
		go func() {
			logger.Info().Str("address", cfg.GRPC.Address).Msg("Starting gRPC server")
			if err := application.GRPCServer.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var consumer *kafka.Consumer
	if cfg.consumesKafka() {
		consumer, err = kafka.NewConsumer(*cfg.Kafka, r)
		if err != nil {
			return fmt.Errorf("init kafka consumer: %w", err)
		}
		if application.KafkaMetrics != nil {
			consumer.SetMetrics(application.KafkaMetrics)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err = <-errCh:
		logger.Error().Err(err).Msg("Component failed, shutting down")
	}

	if application.GRPCServer != nil {
		application.GRPCServer.SetServing("", false)
	}
	if consumer != nil {
		consumer.Stop()
		if cerr := consumer.Wait(30 * time.Second); cerr != nil {
			logger.Warn().Err(cerr).Msg("Kafka consumer did not stop in time")
		}
		if cerr := consumer.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close Kafka consumer")
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
