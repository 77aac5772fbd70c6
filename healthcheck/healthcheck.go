package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zynerotech/streamhook/logger"
)

const defaultCheckTimeout = 2 * time.Second

// Config представляет конфигурацию healthcheck
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Check проверка готовности одной зависимости
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Healthcheck представляет менеджер проверок здоровья
type Healthcheck struct {
	config Config
	server *http.Server

	mu     sync.RWMutex
	checks []Check
}

// New создает экземпляр health-check сервера. Сервер запускается через Start.
func New(cfg Config) (*Healthcheck, error) {
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCheckTimeout
	}

	h := &Healthcheck{
		config: cfg,
	}
	if !cfg.Enabled {
		return h, nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h.Handler())

	h.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return h, nil
}

// AddCheck регистрирует проверку
func (h *Healthcheck) AddCheck(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, Check{Name: name, Fn: fn})
}

// Run выполняет все проверки и возвращает ошибки по именам
func (h *Healthcheck) Run(ctx context.Context) map[string]error {
	h.mu.RLock()
	checks := append([]Check(nil), h.checks...)
	h.mu.RUnlock()

	failed := make(map[string]error)
	for _, c := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
		err := c.Fn(checkCtx)
		cancel()
		if err != nil {
			failed[c.Name] = err
		}
	}
	return failed
}

// Handler отвечает 200 OK, если все проверки прошли, иначе 503
func (h *Healthcheck) Handler() http.Handler {
	return http.HandlerFunc(h.handleHealthcheck)
}

// Start запускает HTTP-сервер проверок здоровья в фоне
func (h *Healthcheck) Start() {
	if !h.config.Enabled || h.server == nil {
		return
	}
	go func() {
		logger.Info().Msgf("Starting healthcheck server on %s", h.server.Addr)
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Healthcheck server failed")
		}
	}()
}

// Wrap оборачивает обработчик сервера (например, middleware метрик)
func (h *Healthcheck) Wrap(mw func(http.Handler) http.Handler) {
	if h.server == nil || mw == nil {
		return
	}
	h.server.Handler = mw(h.server.Handler)
}

// Stop останавливает HTTP-сервер проверок здоровья
func (h *Healthcheck) Stop(ctx context.Context) error {
	if !h.config.Enabled || h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *Healthcheck) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	failed := h.Run(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if len(failed) == 0 {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	lines := make([]string, 0, len(failed))
	for name, err := range failed {
		lines = append(lines, name+": "+err.Error())
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(strings.Join(lines, "\n")))
}
