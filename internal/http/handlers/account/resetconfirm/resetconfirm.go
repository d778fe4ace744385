// Package resetconfirm реализует HTTP-обработчик установки нового пароля.
package resetconfirm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/services/account"
)

// Service описывает интерфейс установки нового пароля.
type Service interface {
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler обрабатывает установку нового пароля по токену сброса.
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
	const op = "handlers.account.resetconfirm"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.ResetConfirmRequest
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

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, account.ErrTokenInvalid) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("token is invalid or expired"))
			return
		}
		log.Error("failed to reset password", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reset password"))
		return
	}

	log.Info("password reset completed")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"reset": true,
	}))
}
