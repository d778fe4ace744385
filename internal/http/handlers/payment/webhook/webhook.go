// Package webhook реализует серверный путь реконсиляции оплаты.
//
// Handler читает сырое тело запроса, проверяет подпись провайдера и
// передаёт событие сервису платежей. Маршрут стоит вне identity-группы:
// личность здесь определяется метаданными сессии, а не запросом.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
)

const maxBodySize = 64 << 10

// Service описывает интерфейс обработки вебхука.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error
}

// Handler обрабатывает вебхуки платёжного провайдера.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid body"))
		return
	}

	if err := h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		log.Error("failed to handle webhook", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("webhook rejected"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"received": true,
	}))
}
