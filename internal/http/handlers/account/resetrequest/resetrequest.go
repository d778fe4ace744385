// Package resetrequest реализует HTTP-обработчик запроса сброса пароля.
// Ответ одинаков для существующих и несуществующих почт.
package resetrequest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
)

// Service описывает интерфейс запроса сброса пароля.
type Service interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

// Handler обрабатывает запрос сброса пароля.
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
	const op = "handlers.account.resetrequest"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.ResetRequest
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

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		// Ошибка не раскрывается клиенту, чтобы ответ не зависел от
		// существования почты.
		log.Error("failed to process reset request", sl.Err(err))
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"sent": true,
	}))
}
