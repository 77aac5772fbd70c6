package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfig структура для тестирования
type TestConfig struct {
	Name    string        `mapstructure:"name"`
	Port    int           `mapstructure:"port"`
	Debug   bool          `mapstructure:"debug"`
	Timeout time.Duration `mapstructure:"timeout"`
	Webhook struct {
		URL       string `mapstructure:"url"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	} `mapstructure:"webhook"`
}

// Validate реализует интерфейс Configurable
func (c *TestConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	return nil
}

// InvalidTestConfig структура, которая никогда не проходит проверку
type InvalidTestConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
}

func (c *InvalidTestConfig) Validate() error {
	return fmt.Errorf("always invalid")
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected string
	}{
		{name: "default environment when APP_ENV not set", envValue: "", expected: DefaultEnv},
		{name: "custom environment when APP_ENV is set", envValue: "production", expected: "production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue == "" {
				t.Setenv("APP_ENV", "")
				os.Unsetenv("APP_ENV")
			} else {
				t.Setenv("APP_ENV", tt.envValue)
			}

			assert.Equal(t, tt.expected, GetEnv())
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	assert.Equal(t, filepath.Join(ConfigDir, "production.yaml"), getConfigPath())
}

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("successful load", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "test.yaml")
		configContent := `
name: "test-app"
port: 8080
debug: true
timeout: "30s"
webhook:
  url: "http://localhost:4000/hook"
  timeout_ms: 2500
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		cfg := &TestConfig{}
		err := NewLoader(configPath).Load(cfg)

		require.NoError(t, err)
		assert.Equal(t, "test-app", cfg.Name)
		assert.Equal(t, 8080, cfg.Port)
		assert.True(t, cfg.Debug)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, "http://localhost:4000/hook", cfg.Webhook.URL)
		assert.Equal(t, 2500, cfg.Webhook.TimeoutMS)
	})

	t.Run("config file not found", func(t *testing.T) {
		err := NewLoader(filepath.Join(tempDir, "nonexistent.yaml")).Load(&TestConfig{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigNotFound)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid value type", func(t *testing.T) {
		invalidConfigPath := filepath.Join(tempDir, "invalid.yaml")
		invalidContent := `
name: "test-app"
port: invalid_port
`
		require.NoError(t, os.WriteFile(invalidConfigPath, []byte(invalidContent), 0644))

		err := NewLoader(invalidConfigPath).Load(&TestConfig{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigUnmarshal)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	t.Run("validation failure", func(t *testing.T) {
		validConfigPath := filepath.Join(tempDir, "valid.yaml")
		require.NoError(t, os.WriteFile(validConfigPath, []byte("name: \"test-app\"\nport: 8080\n"), 0644))

		err := NewLoader(validConfigPath).Load(&InvalidTestConfig{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigValidation)
	})

	t.Run("missing required field validation", func(t *testing.T) {
		path := filepath.Join(tempDir, "missing_name.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: 8080\n"), 0644))

		err := NewLoader(path).Load(&TestConfig{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation failed")
		assert.Contains(t, err.Error(), "name is required")
	})
}

func TestLoader_OptionalFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "http://hooks.internal/stream")
	t.Setenv("WEBHOOK_TIMEOUT", "1500")
	t.Setenv("APP_PORT", "9100")

	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"),
		WithOptionalFile(),
		WithDefaults(map[string]any{
			"name":               "streamhook",
			"port":               8080,
			"debug":              false,
			"timeout":            "5s",
			"webhook.url":        "http://127.0.0.1:4000",
			"webhook.timeout_ms": 10000,
		}),
		WithEnvBindings(map[string]string{
			"webhook.url":        "WEBHOOK_URL",
			"webhook.timeout_ms": "WEBHOOK_TIMEOUT",
		}),
	)

	cfg := &TestConfig{}
	require.NoError(t, loader.Load(cfg))

	assert.Equal(t, "streamhook", cfg.Name)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "http://hooks.internal/stream", cfg.Webhook.URL)
	assert.Equal(t, 1500, cfg.Webhook.TimeoutMS)
}

func TestLoader_GetConfigPath(t *testing.T) {
	configPath := "test/config.yaml"
	loader := NewLoader(configPath)

	assert.Equal(t, configPath, loader.GetConfigPath())
}

func TestLoader_GetConfigDir(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("name: test"), 0644))

	loader := NewLoader(configPath)
	cfg := &TestConfig{Name: "test", Port: 8080}
	require.NoError(t, loader.Load(cfg))

	assert.Equal(t, tempDir, loader.GetConfigDir())
}

func TestLoader_GetMethods(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test.yaml")
	configContent := `
string_value: "test string"
int_value: 42
bool_value: true
duration_value: "1h30m"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	loader := NewLoader(configPath)
	require.NoError(t, loader.viper.ReadInConfig())

	assert.Equal(t, "test string", loader.GetString("string_value"))
	assert.Equal(t, "", loader.GetString("nonexistent"))
	assert.Equal(t, 42, loader.GetInt("int_value"))
	assert.True(t, loader.GetBool("bool_value"))
	assert.Equal(t, 90*time.Minute, loader.GetDuration("duration_value"))
}

func TestLoader_SetDefault(t *testing.T) {
	loader := NewLoader("")

	loader.SetDefault("test_key", "default_value")
	assert.Equal(t, "default_value", loader.GetString("test_key"))
}

func TestLoader_ReadsFileOnce(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "once.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("name: first\nport: 8080\n"), 0644))

	var cfg TestConfig
	require.NoError(t, Load(&cfg, configPath))

	require.NoError(t, os.WriteFile(configPath, []byte("name: second\nport: 9090\n"), 0644))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, "first", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "dev", DefaultEnv)
	assert.Equal(t, "configs", ConfigDir)
	assert.Equal(t, "APP", EnvPrefix)
}

func BenchmarkLoad(b *testing.B) {
	tempDir := b.TempDir()
	configPath := filepath.Join(tempDir, "bench.yaml")
	require.NoError(b, os.WriteFile(configPath, []byte("name: \"benchmark-test\"\nport: 8080\n"), 0644))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Load(&TestConfig{}, configPath)
	}
}
