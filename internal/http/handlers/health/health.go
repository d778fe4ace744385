package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/response"
)

// Pinger контракт проверки готовности базы данных.
type Pinger interface {
	CheckDatabaseReady(ctx context.Context) error
}

type Handler struct {
	log    *slog.Logger
	pinger Pinger
}

func New(log *slog.Logger, pinger Pinger) *Handler {
	return &Handler{
		log:    log,
		pinger: pinger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.CheckDatabaseReady(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status": "ok",
	}))
}
