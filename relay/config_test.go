package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigSanitize(t *testing.T) {
	cfg := Config{WebhookTimeoutMS: -5}.Sanitize()

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "https", mutate: func(c *Config) { c.WebhookURL = "https://hooks.example.com/x" }},
		{name: "bad scheme", mutate: func(c *Config) { c.WebhookURL = "ftp://example.com" }, wantErr: true},
		{name: "no host", mutate: func(c *Config) { c.WebhookURL = "http:///path" }, wantErr: true},
		{name: "negative segment", mutate: func(c *Config) { c.SourceSegment = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDerived(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceDelimiter = ":"
	cfg.SourceSegment = 5
	cfg.WebhookTimeoutMS = 250

	assert.Equal(t, ":", cfg.Extractor().Delimiter)
	assert.Equal(t, 5, cfg.Extractor().Segment)

	dc := cfg.DispatchConfig()
	assert.Equal(t, DefaultWebhookURL, dc.URL)
	assert.Equal(t, 250*time.Millisecond, dc.Timeout)
}

func TestDefaultsAndEnvBindings(t *testing.T) {
	d := Defaults("relay")
	assert.Equal(t, DefaultWebhookURL, d["relay.webhook_url"])
	assert.Equal(t, DefaultTableName, d["relay.table_name"])

	env := EnvBindings("relay")
	assert.Equal(t, "WEBHOOK_TIMEOUT", env["relay.webhook_timeout_ms"])
	assert.Equal(t, "TABLE_NAME", env["relay.table_name"])
}
