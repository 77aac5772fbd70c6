package relay

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zynerotech/streamhook/dispatch"
	"github.com/zynerotech/streamhook/stream"
)

const (
	DefaultWebhookURL       = "http://127.0.0.1:4000/api/webhook/dynamodb-stream"
	DefaultWebhookTimeoutMS = 10000
	DefaultTableName        = "AuditEvents"
	DefaultEventName        = string(stream.Insert)
	DefaultSummaryTTL       = 24 * time.Hour
)

// Config конфигурация релея, читается один раз при старте
type Config struct {
	WebhookURL       string        `mapstructure:"webhook_url"`
	WebhookTimeoutMS int           `mapstructure:"webhook_timeout_ms"`
	TableName        string        `mapstructure:"table_name"`
	EventName        string        `mapstructure:"event_name"`
	SourceDelimiter  string        `mapstructure:"source_delimiter"`
	SourceSegment    int           `mapstructure:"source_segment"`
	UserAgent        string        `mapstructure:"user_agent"`
	SummaryTTL       time.Duration `mapstructure:"summary_ttl"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		WebhookURL:       DefaultWebhookURL,
		WebhookTimeoutMS: DefaultWebhookTimeoutMS,
		TableName:        DefaultTableName,
		EventName:        DefaultEventName,
		SourceDelimiter:  stream.DefaultSourceDelimiter,
		SourceSegment:    stream.DefaultSourceSegment,
		UserAgent:        dispatch.DefaultUserAgent,
		SummaryTTL:       DefaultSummaryTTL,
	}
}

// Defaults возвращает DefaultConfig в виде ключей viper с префиксом prefix
func Defaults(prefix string) map[string]any {
	d := DefaultConfig()
	return map[string]any{
		prefix + ".webhook_url":        d.WebhookURL,
		prefix + ".webhook_timeout_ms": d.WebhookTimeoutMS,
		prefix + ".table_name":         d.TableName,
		prefix + ".event_name":         d.EventName,
		prefix + ".source_delimiter":   d.SourceDelimiter,
		prefix + ".source_segment":     d.SourceSegment,
		prefix + ".user_agent":         d.UserAgent,
		prefix + ".summary_ttl":        d.SummaryTTL,
	}
}

// EnvBindings связывает ключи релея с историческими переменными окружения
// (WEBHOOK_URL, WEBHOOK_TIMEOUT, TABLE_NAME, EVENT_NAME).
func EnvBindings(prefix string) map[string]string {
	return map[string]string{
		prefix + ".webhook_url":        "WEBHOOK_URL",
		prefix + ".webhook_timeout_ms": "WEBHOOK_TIMEOUT",
		prefix + ".table_name":         "TABLE_NAME",
		prefix + ".event_name":         "EVENT_NAME",
	}
}

// Sanitize заменяет пустые и неположительные значения на значения по умолчанию
func (c Config) Sanitize() Config {
	d := DefaultConfig()
	if c.WebhookURL == "" {
		c.WebhookURL = d.WebhookURL
	}
	if c.WebhookTimeoutMS <= 0 {
		c.WebhookTimeoutMS = d.WebhookTimeoutMS
	}
	if c.TableName == "" {
		c.TableName = d.TableName
	}
	if c.EventName == "" {
		c.EventName = d.EventName
	}
	if c.SourceDelimiter == "" {
		c.SourceDelimiter = d.SourceDelimiter
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.SummaryTTL <= 0 {
		c.SummaryTTL = d.SummaryTTL
	}
	return c
}

// Validate проверяет адрес вебхука и настройки извлечения источника
func (c Config) Validate() error {
	u, err := url.Parse(c.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("webhook_url: host is required")
	}
	if c.SourceSegment < 0 {
		return errors.New("source_segment must not be negative")
	}
	return nil
}

// WebhookTimeout возвращает таймаут одного запроса
func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutMS) * time.Millisecond
}

// Extractor возвращает экстрактор источника по конфигурации
func (c Config) Extractor() stream.SourceExtractor {
	return stream.SourceExtractor{Delimiter: c.SourceDelimiter, Segment: c.SourceSegment}
}

// DispatchConfig возвращает настройки диспетчера по конфигурации
func (c Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		URL:       c.WebhookURL,
		Timeout:   c.WebhookTimeout(),
		UserAgent: c.UserAgent,
	}
}
