package server

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const defaultShutdownTimeout = 10 * time.Second

// Config представляет конфигурацию веб-сервера
type Config struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"`
}

// Server представляет веб-сервер на основе Fiber
type Server struct {
	app    *fiber.App
	config Config
}

// New создает новый экземпляр веб-сервера
func New(cfg Config, middlewares ...fiber.Handler) (*Server, error) {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	fiberConfig := fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             cfg.BodyLimit,
		JSONEncoder: func(v any) ([]byte, error) {
			return sonic.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return sonic.Unmarshal(data, v)
		},
	}

	app := fiber.New(fiberConfig)

	app.Use(compress.New())
	app.Use(recover.New())
	for _, mw := range middlewares {
		if mw != nil {
			app.Use(mw)
		}
	}

	return &Server{
		app:    app,
		config: cfg,
	}, nil
}

// Start запускает веб-сервер; блокирует до остановки
func (s *Server) Start() error {
	return s.app.Listen(s.config.Address)
}

// Stop останавливает веб-сервер
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App возвращает экземпляр приложения Fiber
func (s *Server) App() *fiber.App {
	return s.app
}
