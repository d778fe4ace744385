// Package profile реализует HTTP-обработчик чтения профиля аккаунта.
package profile

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

// Service описывает интерфейс чтения профиля.
type Service interface {
	Profile(ctx context.Context, user *models.UserContext) (int, error)
}

// Handler обрабатывает чтение профиля.
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
	const op = "handlers.account.profile"
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

	count, err := h.service.Profile(r.Context(), user)
	if err != nil {
		log.Error("failed to read profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read profile"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"email":        user.Email,
		"name":         user.AccountName,
		"company":      user.AccountCompany,
		"plan":         user.Plan,
		"report_count": count,
	}))
}
