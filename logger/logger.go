package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	global     *Logger
	globalOnce sync.Once
	globalMu   sync.RWMutex
)

// Config представляет конфигурацию логгера
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json или console
	Output     string `mapstructure:"output"` // stdout, stderr или путь к файлу
	TimeFormat string `mapstructure:"time_format"`
}

// Logger представляет собой обертку над zerolog.Logger
type Logger struct {
	logger zerolog.Logger
}

// New создает новый экземпляр логгера
func New(cfg Config) (*Logger, error) {
	cfg = sanitize(&cfg)

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()

	return &Logger{
		logger: logger,
	}, nil
}

// NewWithWriter создает логгер, пишущий JSON в переданный writer
func NewWithWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{logger: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stderr":
		return os.Stderr, nil
	case "stdout", "":
		return os.Stdout, nil
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return file, nil
	}
}

// Debug логирует сообщение с уровнем Debug
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info логирует сообщение с уровнем Info
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn логирует сообщение с уровнем Warn
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error логирует сообщение с уровнем Error
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal логирует сообщение с уровнем Fatal и завершает программу
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// With возвращает контекст для добавления полей
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// WithField возвращает новый логгер с добавленным полем
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithFields возвращает новый логгер с добавленными полями
func (l *Logger) WithFields(fields map[string]any) *Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{logger: ctx.Logger()}
}

// Level возвращает копию логгера с другим уровнем
func (l *Logger) Level(level zerolog.Level) *Logger {
	return &Logger{logger: l.logger.Level(level)}
}

func (l *Logger) Log() zerolog.Logger {
	return l.logger
}

// Init создает логгер по конфигурации и делает его глобальным
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetGlobal(l)
	return nil
}

func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// GetGlobal возвращает глобальный логгер, создавая логгер по умолчанию при первом обращении
func GetGlobal() *Logger {
	globalMu.RLock()
	l := global
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		if global == nil {
			global, _ = New(Config{})
		}
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetLevel устанавливает глобальный минимальный уровень логирования
func SetLevel(level string) error {
	if level == "" {
		return fmt.Errorf("empty log level")
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// GetLevel возвращает глобальный минимальный уровень логирования
func GetLevel() string {
	return zerolog.GlobalLevel().String()
}

func Debug() *zerolog.Event { return GetGlobal().Debug() }
func Info() *zerolog.Event  { return GetGlobal().Info() }
func Warn() *zerolog.Event  { return GetGlobal().Warn() }
func Error() *zerolog.Event { return GetGlobal().Error() }

// sanitize ensures the Config struct is populated with default values when fields are empty.
func sanitize(cfg *Config) Config {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	return *cfg
}
