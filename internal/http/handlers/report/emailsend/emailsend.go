// Package emailsend реализует HTTP-обработчик отправки отчёта почтой.
// Письмо уходит не из обработчика: задание публикуется в очередь, а
// доставку выполняет отдельный сервис report-sender.
package emailsend

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
	"github.com/dataweaveai/condition-report/internal/services/report"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Service описывает интерфейс постановки письма в очередь.
type Service interface {
	EmailReport(ctx context.Context, user *models.UserContext, reportID, email string) error
}

// Handler обрабатывает запросы на отправку отчёта почтой.
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
	const op = "handlers.report.emailsend"
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

	var req models.EmailReportRequest
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

	if err := h.service.EmailReport(r.Context(), user, req.ReportID, req.Email); err != nil {
		switch {
		case errors.Is(err, repository.ErrNoRows):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("report not found"))
		case errors.Is(err, report.ErrForbidden):
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("access denied"))
		default:
			log.Error("failed to queue email", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not queue email"))
		}
		return
	}

	log.Info("email queued", slog.String("report_id", req.ReportID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"queued": true,
	}))
}
