// Package upload реализует HTTP-обработчик загрузки фотографий комнаты.
//
// Handler принимает multipart-форму с файлами, сохраняет их в каталоге
// загрузок и возвращает список путей для последующего запроса анализа.
// Загрузка доступна только пользователю с правом на генерацию.
package upload

import (
	"io"
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

// Лимиты на размер одного файла и формы целиком.
const (
	maxFileSize = 10 << 20
	maxFormSize = 50 << 20
)

// Service описывает интерфейс сохранения загруженного файла.
type Service interface {
	SavePhoto(filename string, data []byte) (models.UploadedPhotoItem, error)
}

// Handler обрабатывает загрузку фотографий.
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
// @Summary Загрузить фотографии комнаты
// @Description Принимает multipart-форму с файлами в поле photos и возвращает пути сохранённых файлов.
// @Tags Reports
// @Accept mpfd
// @Produce json
// @Success 200 {object} map[string]any "Список сохранённых файлов"
// @Failure 400 {object} response.ErrorResponse "Некорректная форма"
// @Failure 402 {object} response.ErrorResponse "Лимит генераций исчерпан"
// @Router /upload-photos [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.photo.upload"
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

	decision := entitlement.CanGenerate(user)
	if !decision.Allowed {
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.OKWithData(map[string]any{"entitlement": decision}))
		return
	}

	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		log.Error("failed to parse multipart form", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid multipart form"))
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("no photos provided"))
		return
	}

	roomName := r.FormValue("room_name")
	saved := make([]models.UploadedPhotoItem, 0, len(files))
	for _, header := range files {
		if header.Size > maxFileSize {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("file too large: "+header.Filename))
			return
		}
		file, err := header.Open()
		if err != nil {
			log.Error("failed to open uploaded file", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unreadable file: "+header.Filename))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			log.Error("failed to read uploaded file", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unreadable file: "+header.Filename))
			return
		}
		item, err := h.service.SavePhoto(header.Filename, data)
		if err != nil {
			log.Error("failed to save photo", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not save photo"))
			return
		}
		saved = append(saved, item)
	}

	log.Info("photos uploaded", slog.Int("count", len(saved)), slog.String("room", roomName))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"room_name": roomName,
		"photos":    saved,
	}))
}
