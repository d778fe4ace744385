// Package signup реализует HTTP-обработчик регистрации аккаунта.
//
// Handler валидирует почту и пароль, создает учётную запись и привязывает
// к ней текущее устройство. Занятая почта возвращается как 409.
package signup

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

// Service описывает интерфейс регистрации.
type Service interface {
	Signup(ctx context.Context, fingerprint string, req *models.SignupRequest) (*models.Account, error)
}

// Handler обрабатывает регистрацию аккаунтов.
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
// @Summary Зарегистрировать аккаунт
// @Description Создает учётную запись и привязывает текущее устройство. Занятая почта возвращает 409.
// @Tags Accounts
// @Accept json
// @Produce json
// @Param request body models.SignupRequest true "Почта, пароль и имя"
// @Success 200 {object} map[string]any "Созданный аккаунт"
// @Failure 409 {object} response.ErrorResponse "Почта уже зарегистрирована"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /account/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.signup"
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

	var req models.SignupRequest
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

	created, err := h.service.Signup(r.Context(), user.Fingerprint, &req)
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email is already registered"))
			return
		}
		log.Error("failed to create account", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create account"))
		return
	}

	log.Info("account created", slog.String("email", created.Email))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"email": created.Email,
		"name":  created.Name,
		"plan":  created.Plan,
	}))
}
