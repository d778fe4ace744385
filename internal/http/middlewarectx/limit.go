package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/dataweaveai/condition-report/internal/http/response"
)

// RateLimitMiddleware ограничивает частоту запросов группы маршрутов.
// Параметры подбираются по маршруту: загрузка фото терпимее, аккаунтные
// операции строже.
func RateLimitMiddleware(log *slog.Logger, limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests", slog.String("path", r.URL.Path))
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
