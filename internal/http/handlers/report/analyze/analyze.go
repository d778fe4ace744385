// Package analyze реализует HTTP-обработчик генерации отчёта.
//
// Handler принимает JSON-запрос со списком комнат и загруженных фотографий,
// валидирует его и запускает генерацию: анализ комнат, сборку PDF и
// атомарное сохранение с расходом кредита. Отказ по лимиту возвращается
// со статусом 402 и решением пейволла в теле.
package analyze

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
)

// Service описывает интерфейс генерации отчёта.
type Service interface {
	Analyze(ctx context.Context, user *models.UserContext, req *models.AnalyzeRequest) (*models.Report, error)
}

// Handler обрабатывает запросы генерации отчёта.
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

// ServeHTTP godoc
// @Summary Сгенерировать отчёт
// @Description Анализирует фотографии комнат и собирает PDF-отчёт. При исчерпанном лимите возвращает 402 с решением пейволла.
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body models.AnalyzeRequest true "Комнаты с фотографиями и сведения об объекте"
// @Success 200 {object} map[string]any "Сгенерированный отчёт"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 402 {object} map[string]any "Лимит генераций исчерпан"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /analyze [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.analyze"
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

	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.service.Analyze(r.Context(), user, &req)
	if err != nil {
		var paywall *report.PaywallError
		if errors.As(err, &paywall) {
			log.Info("generation denied", slog.String("reason", paywall.Decision.Reason))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.OKWithData(map[string]any{
				"entitlement": paywall.Decision,
			}))
			return
		}
		log.Error("failed to generate report", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not generate report"))
		return
	}

	log.Info("report generated", slog.String("report_id", result.ID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"report": result,
	}))
}
