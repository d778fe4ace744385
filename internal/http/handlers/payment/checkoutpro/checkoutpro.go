// Package checkoutpro реализует HTTP-обработчик оформления подписки.
package checkoutpro

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dataweaveai/condition-report/internal/http/middlewarectx"
	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
)

// Service описывает интерфейс создания checkout-сессии подписки.
type Service interface {
	CreateProCheckout(ctx context.Context, user *models.UserContext, billing string) (string, error)
}

// Handler обрабатывает оформление подписки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkoutpro"
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

	// Тело опционально: без него оформляется месячная подписка.
	var req models.CheckoutProRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	url, err := h.service.CreateProCheckout(r.Context(), user, req.Billing)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not create checkout session"))
		return
	}

	log.Info("checkout session created", slog.String("type", models.PurchasePro), slog.String("billing", req.Billing))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"checkout_url": url,
	}))
}
