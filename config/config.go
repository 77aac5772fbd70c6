package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Custom error types for better error handling
var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigInvalid    = errors.New("invalid config")
	ErrConfigValidation = errors.New("config validation failed")
	ErrConfigUnmarshal  = errors.New("failed to unmarshal config")
)

const (
	// DefaultEnv значение окружения по умолчанию
	DefaultEnv = "dev"
	// ConfigDir директория с конфигурационными файлами
	ConfigDir = "configs"
	// EnvPrefix префикс переменных окружения
	EnvPrefix = "APP"
)

// Configurable определяет интерфейс для любой конфигурации
type Configurable interface {
	Validate() error
}

// Option настраивает Loader
type Option func(*Loader)

// WithOptionalFile разрешает работу без конфигурационного файла:
// значения берутся из значений по умолчанию и переменных окружения
func WithOptionalFile() Option {
	return func(l *Loader) {
		l.optionalFile = true
	}
}

// WithDefaults задает значения по умолчанию для ключей
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		for key, value := range defaults {
			l.viper.SetDefault(key, value)
		}
	}
}

// WithEnvBindings связывает ключи конфигурации с переменными окружения без префикса
func WithEnvBindings(bindings map[string]string) Option {
	return func(l *Loader) {
		for key, env := range bindings {
			_ = l.viper.BindEnv(key, env)
		}
	}
}

// Loader предоставляет функциональность для загрузки конфигурации
type Loader struct {
	viper        *viper.Viper
	optionalFile bool
}

// getEnv возвращает текущее окружение
func getEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return DefaultEnv
}

// getConfigPath возвращает путь к конфигурационному файлу
func getConfigPath() string {
	env := getEnv()
	return filepath.Join(ConfigDir, fmt.Sprintf("%s.yaml", env))
}

// NewLoader создает новый загрузчик конфигурации
func NewLoader(configPath string, opts ...Option) *Loader {
	v := viper.New()

	if configPath == "" {
		configPath = getConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{
		viper: v,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load загружает конфигурацию из файла и окружения в переданную структуру
func (l *Loader) Load(cfg Configurable) error {
	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		switch {
		case missing && l.optionalFile:
			// продолжаем с defaults и переменными окружения
		case missing:
			return fmt.Errorf("failed to read config file: %w: %v", ErrConfigNotFound, err)
		default:
			return fmt.Errorf("failed to parse config: %w: %v", ErrConfigInvalid, err)
		}
	}

	if err := l.viper.UnmarshalExact(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w: %v", ErrConfigUnmarshal, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}

	return nil
}

// GetConfigPath возвращает путь к файлу конфигурации
func (l *Loader) GetConfigPath() string {
	return l.viper.ConfigFileUsed()
}

// SetConfigPath устанавливает путь к файлу конфигурации
func (l *Loader) SetConfigPath(path string) {
	l.viper.SetConfigFile(path)
}

// GetConfigDir возвращает директорию с конфигурацией
func (l *Loader) GetConfigDir() string {
	return filepath.Dir(l.viper.ConfigFileUsed())
}

// Load загружает конфигурацию из файла в переданную структуру
func Load(cfg Configurable, configPath string, opts ...Option) error {
	return NewLoader(configPath, opts...).Load(cfg)
}

// GetString возвращает строковое значение из конфигурации
func (l *Loader) GetString(key string) string {
	return l.viper.GetString(key)
}

// GetInt возвращает целочисленное значение из конфигурации
func (l *Loader) GetInt(key string) int {
	return l.viper.GetInt(key)
}

// GetBool возвращает булево значение из конфигурации
func (l *Loader) GetBool(key string) bool {
	return l.viper.GetBool(key)
}

// GetDuration возвращает значение длительности из конфигурации
func (l *Loader) GetDuration(key string) time.Duration {
	return l.viper.GetDuration(key)
}

// SetDefault устанавливает значение по умолчанию для ключа
func (l *Loader) SetDefault(key string, value any) {
	l.viper.SetDefault(key, value)
}

// GetEnv возвращает текущее окружение
func GetEnv() string {
	return getEnv()
}
