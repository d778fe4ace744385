// Package pdfdownload реализует HTTP-обработчик скачивания PDF-артефакта.
package pdfdownload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// Service описывает интерфейс выдачи PDF-артефакта.
type Service interface {
	PDF(ctx context.Context, user *models.UserContext, id string) ([]byte, error)
}

// Handler обрабатывает скачивание PDF.
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
	const op = "handlers.report.pdfdownload"
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
	data, err := h.service.PDF(r.Context(), user, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoRows):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("report not found"))
		case errors.Is(err, report.ErrForbidden):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
		default:
			log.Error("failed to read report pdf", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not read report pdf"))
		}
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="condition-report-`+id+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write pdf response", sl.Err(err))
	}
}
