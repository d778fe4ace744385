// Package middlewarectx содержит HTTP middleware для разрешения личности
// вызывающего и ограничения частоты запросов.
//
// IdentityMiddleware извлекает отпечаток устройства из заголовка X-Fingerprint
// (или выводит его из IP, когда заголовок не прислан), разрешает его через
// Identity Resolver в единый контекст пользователя и кладёт результат
// в контекст запроса для дальнейшего использования в обработчиках.
//
// Неизвестный отпечаток — не ошибка: он становится анонимным free-пользователем.
package middlewarectx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/dataweaveai/condition-report/internal/http/response"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserCtx — ключ для контекста пользователя в контексте запроса
	UserCtx Key = "user"
)

// Service описывает интерфейс Identity Resolver.
type Service interface {
	Resolve(ctx context.Context, fingerprint string) (*models.UserContext, error)
}

// Fingerprint возвращает отпечаток вызывающего: заголовок X-Fingerprint,
// затем query-параметр fp (для скачиваний по прямой ссылке из браузера),
// иначе стабильный хэш от IP.
func Fingerprint(r *http.Request) string {
	if fp := r.Header.Get("X-Fingerprint"); fp != "" {
		return fp
	}
	if fp := r.URL.Query().Get("fp"); fp != "" {
		return fp
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:16]
}

// UserFromContext достаёт контекст пользователя, положенный IdentityMiddleware.
func UserFromContext(ctx context.Context) (*models.UserContext, bool) {
	user, ok := ctx.Value(UserCtx).(*models.UserContext)
	return user, ok
}

// IdentityMiddleware возвращает HTTP middleware, который разрешает отпечаток
// вызывающего в контекст пользователя.
//
// База данных — жёсткая зависимость: при её недоступности запрос завершается
// ошибкой, а не продолжается с пустым пользователем.
func IdentityMiddleware(identity Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.IdentityMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			fp := Fingerprint(r)
			user, err := identity.Resolve(r.Context(), fp)
			if err != nil {
				log.Error("failed to resolve user identity", sl.Err(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("service temporarily unavailable"))
				return
			}

			ctx := context.WithValue(r.Context(), UserCtx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
