package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// GlobalConfig представляет глобальные настройки приложения для логгера
type GlobalConfig struct {
	// Основная конфигурация логгера
	Logger Config `json:"logger" yaml:"logger" mapstructure:"logger"`

	// Информация о приложении, добавляется ко всем сообщениям
	Application ApplicationInfo `json:"application" yaml:"application" mapstructure:"application"`

	// Уровни логирования для отдельных компонентов (filter, dispatcher, relay...)
	Components map[string]ComponentConfig `json:"components" yaml:"components" mapstructure:"components"`
}

// ApplicationInfo содержит информацию о приложении
type ApplicationInfo struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Version     string `json:"version" yaml:"version" mapstructure:"version"`
	Environment string `json:"environment" yaml:"environment" mapstructure:"environment"` // dev, staging, prod
	Instance    string `json:"instance" yaml:"instance" mapstructure:"instance"`
}

// ComponentConfig представляет настройки для конкретного компонента
type ComponentConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

var (
	globalConfig     *GlobalConfig
	globalConfigLock sync.RWMutex
	componentLoggers sync.Map // map[string]*Logger
)

// InitGlobal инициализирует глобальный логгер с полями приложения
func InitGlobal(cfg GlobalConfig) error {
	globalConfigLock.Lock()
	defer globalConfigLock.Unlock()

	cfg = sanitizeGlobalConfig(cfg)

	baseLogger, err := New(cfg.Logger)
	if err != nil {
		return err
	}

	ctx := baseLogger.With()
	if cfg.Application.Name != "" {
		ctx = ctx.Str("app_name", cfg.Application.Name)
	}
	if cfg.Application.Version != "" {
		ctx = ctx.Str("app_version", cfg.Application.Version)
	}
	if cfg.Application.Environment != "" {
		ctx = ctx.Str("environment", cfg.Application.Environment)
	}
	if cfg.Application.Instance != "" {
		ctx = ctx.Str("instance", cfg.Application.Instance)
	}

	SetGlobal(&Logger{logger: ctx.Logger()})
	globalConfig = &cfg

	// Очищаем кэш компонентов при смене конфигурации
	componentLoggers.Range(func(key, _ any) bool {
		componentLoggers.Delete(key)
		return true
	})

	return nil
}

// GetGlobalConfig возвращает копию текущей глобальной конфигурации
func GetGlobalConfig() *GlobalConfig {
	globalConfigLock.RLock()
	defer globalConfigLock.RUnlock()

	if globalConfig == nil {
		return nil
	}
	cfg := *globalConfig
	return &cfg
}

// Component возвращает логгер для компонента с полем component
func Component(name string) *Logger {
	if cached, ok := componentLoggers.Load(name); ok {
		return cached.(*Logger)
	}

	globalConfigLock.RLock()
	defer globalConfigLock.RUnlock()

	componentLogger := GetGlobal().WithField("component", name)

	if globalConfig != nil {
		if componentConfig, ok := globalConfig.Components[name]; ok && componentConfig.Level != "" {
			if level, err := zerolog.ParseLevel(componentConfig.Level); err == nil {
				componentLogger = componentLogger.Level(level)
			}
		}
	}

	actual, _ := componentLoggers.LoadOrStore(name, componentLogger)
	return actual.(*Logger)
}

// SetComponentLevel устанавливает уровень логирования для компонента
func SetComponentLevel(name, level string) error {
	if _, err := zerolog.ParseLevel(level); err != nil {
		return err
	}

	globalConfigLock.Lock()
	defer globalConfigLock.Unlock()

	if globalConfig == nil {
		globalConfig = &GlobalConfig{}
	}
	if globalConfig.Components == nil {
		globalConfig.Components = make(map[string]ComponentConfig)
	}
	globalConfig.Components[name] = ComponentConfig{Level: level}

	// Удаляем из кэша, чтобы пересоздать с новым уровнем
	componentLoggers.Delete(name)
	return nil
}

// GetComponentLevel возвращает уровень логирования компонента
func GetComponentLevel(name string) string {
	globalConfigLock.RLock()
	defer globalConfigLock.RUnlock()

	if globalConfig != nil {
		if cfg, ok := globalConfig.Components[name]; ok && cfg.Level != "" {
			return cfg.Level
		}
		if globalConfig.Logger.Level != "" {
			return globalConfig.Logger.Level
		}
	}
	return GetLevel()
}

func sanitizeGlobalConfig(cfg GlobalConfig) GlobalConfig {
	cfg.Logger = sanitize(&cfg.Logger)
	if cfg.Application.Environment == "" {
		cfg.Application.Environment = "development"
	}
	if cfg.Components == nil {
		cfg.Components = make(map[string]ComponentConfig)
	}
	return cfg
}
