// Package share реализует HTTP-обработчик выдачи share-ссылки на отчёт.
package share

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/middlewarectx"
	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/services/report"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Service описывает интерфейс выдачи share-токена.
type Service interface {
	CreateShareToken(ctx context.Context, user *models.UserContext, reportID string) (*models.ShareToken, error)
}

// Handler обрабатывает выдачу share-ссылок.
type Handler struct {
	log     *slog.Logger
	service Service
	baseURL string
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service, baseURL string) *Handler {
	return &Handler{
		log:     log,
		service: service,
		baseURL: baseURL,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.share"
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

	id := chi.URLParam(r, "id")
	share, err := h.service.CreateShareToken(r.Context(), user, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoRows):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("report not found"))
		case errors.Is(err, report.ErrForbidden):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
		default:
			log.Error("failed to create share token", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create share link"))
		}
		return
	}

	log.Info("share link created", slog.String("report_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"share_url":  h.baseURL + "/share/" + share.Token,
		"expires_at": share.ExpiresAt,
	}))
}
