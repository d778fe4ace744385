// Package status реализует HTTP-обработчик статуса пользователя.
//
// Handler собирает в один ответ контекст пользователя, решение о праве
// на генерацию и список недавних отчётов устройства. Фронтенд строит по
// этому ответу и шапку аккаунта, и пейволл.
package status

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
	"github.com/dataweaveai/condition-report/internal/services/entitlement"
)

const reportListLimit = 20

// Service описывает интерфейс чтения списка отчётов.
type Service interface {
	List(ctx context.Context, fingerprint string, limit int) ([]models.ReportListItem, error)
}

// Handler обрабатывает запросы статуса пользователя.
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

// ServeHTTP godoc
// @Summary Статус пользователя
// @Description Возвращает план, счётчики, решение о праве на генерацию и список недавних отчётов устройства.
// @Tags User
// @Produce json
// @Success 200 {object} map[string]any "Статус пользователя"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /user/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.status"
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

	reports, err := h.service.List(r.Context(), user.Fingerprint, reportListLimit)
	if err != nil {
		log.Error("failed to list reports", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list reports"))
		return
	}

	decision := entitlement.CanGenerate(user)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"plan":         user.Plan,
		"logged_in":    user.LoggedIn,
		"email":        user.Email,
		"reports_used": user.ReportsUsed,
		"entitlement":  decision,
		"reports":      reports,
	}))
}
