// Package checkoutsingle реализует HTTP-обработчик покупки одного отчёта.
package checkoutsingle

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/middlewarectx"
	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
)

// Service описывает интерфейс создания checkout-сессии.
type Service interface {
	CreateSingleCheckout(ctx context.Context, user *models.UserContext) (string, error)
}

// Handler обрабатывает покупку одного отчёта.
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

// ServeHTTP godoc
// @Summary Купить один отчёт
// @Description Создает checkout-сессию платёжного провайдера и возвращает URL оплаты.
// @Tags Payments
// @Produce json
// @Success 200 {object} map[string]any "URL оплаты"
// @Failure 502 {object} response.ErrorResponse "Платёжный провайдер недоступен"
// @Router /checkout/single [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkoutsingle"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resolve user"))
		return
	}

	url, err := h.service.CreateSingleCheckout(r.Context(), user)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not create checkout session"))
		return
	}

	log.Info("checkout session created", slog.String("type", models.PurchaseSingle))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"checkout_url": url,
	}))
}
