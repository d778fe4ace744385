// Package update реализует HTTP-обработчик обновления профиля аккаунта.
package update

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
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Service описывает интерфейс обновления профиля.
type Service interface {
	Update(ctx context.Context, fingerprint string, req *models.UpdateAccountRequest) error
}

// Handler обрабатывает обновление профиля.
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
	const op = "handlers.account.update"
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
	if !user.LoggedIn {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("not logged in"))
		return
	}

	var req models.UpdateAccountRequest
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

	if err := h.service.Update(r.Context(), user.Fingerprint, &req); err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("account not found"))
			return
		}
		log.Error("failed to update profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update profile"))
		return
	}

	log.Info("profile updated")
	render.JSON(w, r, response.OKWithData(map[string]any{
		"name":    req.Name,
		"company": req.Company,
	}))
}
