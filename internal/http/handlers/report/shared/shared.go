// Package shared реализует анонимное скачивание отчёта по share-токену.
// Неизвестный и истёкший токены для клиента неразличимы.
package shared

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Service описывает интерфейс разрешения share-токена.
type Service interface {
	ResolveShareToken(ctx context.Context, token string) ([]byte, *models.Report, error)
}

// Handler обрабатывает анонимное скачивание по share-ссылке.
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
	const op = "handlers.report.shared"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	tokenValue := chi.URLParam(r, "token")
	data, res, err := h.service.ResolveShareToken(r.Context(), tokenValue)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("link is invalid or expired"))
			return
		}
		log.Error("failed to resolve share token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load shared report"))
		return
	}

	log.Info("shared report downloaded", slog.String("report_id", res.ID))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="condition-report.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write pdf response", sl.Err(err))
	}
}
