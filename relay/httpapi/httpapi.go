// Package httpapi открывает релей по HTTP: POST /invoke играет роль триггера
// потока, GET /invocations/:id возвращает сохраненную сводку.
package httpapi

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zynerotech/streamhook/logger"
	"github.com/zynerotech/streamhook/relay"
)

// HeaderInvocationID заголовок с ID вызова в ответе /invoke
const HeaderInvocationID = "X-Invocation-ID"

// Invoker выполняет один вызов релея
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) relay.Result
}

// InvocationObserver получает сведения о каждом HTTP вызове
type InvocationObserver = relay.InvocationObserver

// Handler обслуживает маршруты релея
type Handler struct {
	invoker  Invoker
	store    relay.SummaryStore
	observer InvocationObserver
	log      *logger.Logger
}

// New создает Handler. store и observer могут быть nil
func New(invoker Invoker, store relay.SummaryStore, observer InvocationObserver) *Handler {
	return &Handler{
		invoker:  invoker,
		store:    store,
		observer: observer,
		log:      logger.Component("httpapi"),
	}
}

// Register регистрирует маршруты
func (h *Handler) Register(router fiber.Router) {
	router.Post("/invoke", h.invoke)
	router.Get("/invocations/:id", h.invocation)
}

func (h *Handler) invoke(c *fiber.Ctx) error {
	// Body() переиспользуется fasthttp после ответа
	payload := append([]byte(nil), c.Body()...)

	res := h.invoker.Invoke(c.UserContext(), payload)
	if h.observer != nil {
		h.observer.ObserveInvocation("http", res.StatusCode, res.Summary)
	}

	c.Set(HeaderInvocationID, res.InvocationID)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(res.StatusCode).Send(res.Body)
}

func (h *Handler) invocation(c *fiber.Ctx) error {
	if h.store == nil {
		return fiber.NewError(fiber.StatusNotFound, "summary store is disabled")
	}

	id := c.Params("id")
	rec, err := h.store.Load(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, relay.ErrSummaryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "invocation not found"})
		}
		h.log.Error().Err(err).Str("invocation_id", id).Msg("Failed to load invocation summary")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to load invocation"})
	}
	return c.JSON(rec)
}
