// Package verify реализует клиентский путь реконсиляции оплаты.
//
// После редиректа из checkout фронтенд передаёт session_id, обработчик
// сверяет сессию у платёжного провайдера и начисляет покупку. Повторный
// вызов по той же сессии безвреден: журнал идемпотентности схлопывает
// его в no-op.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dataweaveai/condition-report/internal/http/middlewarectx"
	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/services/entitlement"
	"github.com/dataweaveai/condition-report/internal/services/payment"
)

// Service описывает интерфейс верификации оплаты.
type Service interface {
	VerifySession(ctx context.Context, user *models.UserContext, sessionID string) (entitlement.Decision, error)
}

// Handler обрабатывает верификацию оплаты.
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

// ServeHTTP godoc
// @Summary Верифицировать оплату
// @Description Сверяет checkout-сессию с платёжным провайдером и начисляет покупку ровно один раз.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body models.VerifyPaymentRequest true "Идентификатор checkout-сессии"
// @Success 200 {object} map[string]any "Обновлённое решение о праве на генерацию"
// @Failure 400 {object} response.ErrorResponse "Сессия не оплачена"
// @Failure 403 {object} response.ErrorResponse "Сессия другого устройства"
// @Failure 502 {object} response.ErrorResponse "Платёжный провайдер недоступен"
// @Router /verify-payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
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

	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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

	decision, err := h.service.VerifySession(r.Context(), user, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotPaid):
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("session is not paid"))
		case errors.Is(err, payment.ErrForbidden):
			log.Warn("session fingerprint mismatch", slog.String("session_id", req.SessionID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("session belongs to another device"))
		default:
			log.Error("failed to verify payment", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("could not verify payment"))
		}
		return
	}

	log.Info("payment verified", slog.String("session_id", req.SessionID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"entitlement": decision,
	}))
}
