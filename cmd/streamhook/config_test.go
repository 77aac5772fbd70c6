package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynerotech/streamhook/config"
	"github.com/zynerotech/streamhook/relay"
)

func loadConfig(t *testing.T, path string) (*ServiceConfig, error) {
	t.Helper()
	cfg := &ServiceConfig{}
	err := config.Load(cfg, path,
		config.WithOptionalFile(),
		config.WithDefaults(defaults()),
		config.WithEnvBindings(relay.EnvBindings(relayKey)),
	)
	return cfg, err
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, relay.DefaultConfig(), cfg.Relay)
	require.NotNil(t, cfg.Server)
	assert.Equal(t, ":8080", cfg.Server.Address)
	require.NotNil(t, cfg.Cache)
	assert.True(t, cfg.Cache.Enabled)
	assert.Nil(t, cfg.Kafka)
	assert.False(t, cfg.consumesKafka())
}

func TestLoadReadsLegacyEnvironment(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/dynamodb")
	t.Setenv("WEBHOOK_TIMEOUT", "2500")
	t.Setenv("TABLE_NAME", "Orders")
	t.Setenv("EVENT_NAME", "MODIFY")

	cfg, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://hooks.example.com/dynamodb", cfg.Relay.WebhookURL)
	assert.Equal(t, 2500, cfg.Relay.WebhookTimeoutMS)
	assert.Equal(t, "Orders", cfg.Relay.TableName)
	assert.Equal(t, "MODIFY", cfg.Relay.EventName)
}

func TestLoadNonPositiveTimeoutFallsBack(t *testing.T) {
	t.Setenv("WEBHOOK_TIMEOUT", "0")

	cfg, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, relay.DefaultWebhookTimeoutMS, cfg.Relay.WebhookTimeoutMS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		t.Setenv("WEBHOOK_TIMEOUT", "soon")
		_, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, config.ErrConfigUnmarshal)
	})
	t.Run("url", func(t *testing.T) {
		t.Setenv("WEBHOOK_URL", "ftp://example.com")
		_, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, config.ErrConfigValidation)
	})
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
relay:
  table_name: Invoices
  source_delimiter: ":"
  source_segment: 5
kafka:
  brokers: ["localhost:9092"]
  consumer:
    topic: dynamodb-stream
    group_id: streamhook
`), 0o600))

	cfg, err := loadConfig(t, path)
	require.NoError(t, err)

	assert.Equal(t, "Invoices", cfg.Relay.TableName)
	assert.Equal(t, ":", cfg.Relay.SourceDelimiter)
	assert.Equal(t, 5, cfg.Relay.SourceSegment)
	assert.Equal(t, relay.DefaultWebhookURL, cfg.Relay.WebhookURL)
	assert.True(t, cfg.consumesKafka())
}
