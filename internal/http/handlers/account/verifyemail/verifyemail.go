// Package verifyemail реализует HTTP-обработчик подтверждения почты.
package verifyemail

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

// Service описывает интерфейс подтверждения почты.
type Service interface {
	VerifyEmail(ctx context.Context, token string) error
}

// Handler обрабатывает подтверждение почты.
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
	const op = "handlers.account.verifyemail"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.VerifyEmailRequest
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

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, account.ErrTokenInvalid) {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("token is invalid or expired"))
			return
		}
		log.Error("failed to verify email", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not verify email"))
		return
	}

	log.Info("email verified")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"verified": true,
	}))
}
