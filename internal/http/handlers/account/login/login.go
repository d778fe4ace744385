// Package login реализует HTTP-обработчик входа в аккаунт.
// Неизвестная почта и неверный пароль дают одинаковый ответ 401.
package login

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
	"github.com/dataweaveai/condition-report/internal/services/account"
)

// Service описывает интерфейс входа.
type Service interface {
	Login(ctx context.Context, fingerprint string, req *models.LoginRequest) (*models.Account, error)
}

// Handler обрабатывает вход в аккаунт.
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
	const op = "handlers.account.login"
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

	var req models.LoginRequest
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

	acc, err := h.service.Login(r.Context(), user.Fingerprint, &req)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid credentials"))
			return
		}
		log.Error("failed to login", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not login"))
		return
	}

	log.Info("login succeeded", slog.String("email", acc.Email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"email":   acc.Email,
		"name":    acc.Name,
		"company": acc.Company,
		"plan":    acc.Plan,
	}))
}
