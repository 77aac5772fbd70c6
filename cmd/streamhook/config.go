package main

import (
	"errors"
	"fmt"

	"github.com/zynerotech/streamhook/cache"
	"github.com/zynerotech/streamhook/grpc"
	"github.com/zynerotech/streamhook/healthcheck"
	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/metrics"
	"github.com/zynerotech/streamhook/relay"
	"github.com/zynerotech/streamhook/server"
	"github.com/zynerotech/streamhook/transport/kafka"
)

const relayKey = "relay"

// ServiceConfig конфигурация процесса streamhook
type ServiceConfig struct {
	Logger      logger.Config        `mapstructure:"logger"`
	GlobalLog   *logger.GlobalConfig `mapstructure:"global_logger"`
	Relay       relay.Config         `mapstructure:"relay"`
	Server      *server.Config       `mapstructure:"server"`
	Metrics     *metrics.Config      `mapstructure:"metrics"`
	Healthcheck *healthcheck.Config  `mapstructure:"healthcheck"`
	Cache       *cache.Config        `mapstructure:"cache"`
	Kafka       *kafka.Config        `mapstructure:"kafka"`
	GRPC        *grpc.Config         `mapstructure:"grpc"`
}

// defaults позволяют запускать релей без файла конфигурации,
// только через переменные окружения
func defaults() map[string]any {
	d := relay.Defaults(relayKey)
	d["logger.level"] = "info"
	d["logger.format"] = "json"
	d["logger.output"] = "stdout"
	d["server.address"] = ":8080"
	d["healthcheck.enabled"] = true
	d["healthcheck.port"] = 8081
	d["healthcheck.path"] = "/health"
	d["metrics.enabled"] = false
	d["metrics.service_name"] = "streamhook"
	d["metrics.port"] = 9090
	d["metrics.path"] = "/metrics"
	d["cache.enabled"] = true
	d["cache.driver"] = cache.DriverMemory
	d["cache.ttl"] = relay.DefaultSummaryTTL
	return d
}

func (c *ServiceConfig) Validate() error {
	c.Relay = c.Relay.Sanitize()
	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	if c.Kafka != nil && c.Kafka.Consumer.Topic == "" && c.Kafka.Producer.Topic == "" {
		return errors.New("kafka: consumer.topic or producer.topic is required")
	}
	return nil
}

func (c *ServiceConfig) LoggerConfig() logger.Config              { return c.Logger }
func (c *ServiceConfig) GlobalLoggerConfig() *logger.GlobalConfig { return c.GlobalLog }
func (c *ServiceConfig) MetricsConfig() *metrics.Config           { return c.Metrics }
func (c *ServiceConfig) HealthcheckConfig() *healthcheck.Config   { return c.Healthcheck }
func (c *ServiceConfig) ServerConfig() *server.Config             { return c.Server }
func (c *ServiceConfig) CacheConfig() *cache.Config               { return c.Cache }
func (c *ServiceConfig) KafkaConfig() *kafka.Config               { return c.Kafka }
func (c *ServiceConfig) GRPCConfig() *grpc.Config                 { return c.GRPC }

// consumesKafka сообщает, читать ли пакеты записей из Kafka
func (c *ServiceConfig) consumesKafka() bool {
	return c.Kafka != nil && c.Kafka.Consumer.Topic != ""
}
