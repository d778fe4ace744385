// Package conditionreport предоставляет маршруты для основного приложения.
package conditionreport

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/dataweaveai/condition-report/internal/config"
	accountlogin "github.com/dataweaveai/condition-report/internal/http/handlers/account/login"
	accountprofile "github.com/dataweaveai/condition-report/internal/http/handlers/account/profile"
	accountresetconfirm "github.com/dataweaveai/condition-report/internal/http/handlers/account/resetconfirm"
	accountresetrequest "github.com/dataweaveai/condition-report/internal/http/handlers/account/resetrequest"
	accountsignup "github.com/dataweaveai/condition-report/internal/http/handlers/account/signup"
	accountupdate "github.com/dataweaveai/condition-report/internal/http/handlers/account/update"
	accountverifyemail "github.com/dataweaveai/condition-report/internal/http/handlers/account/verifyemail"
	"github.com/dataweaveai/condition-report/internal/http/handlers/health"
	paymentcheckoutpro "github.com/dataweaveai/condition-report/internal/http/handlers/payment/checkoutpro"
	paymentcheckoutsingle "github.com/dataweaveai/condition-report/internal/http/handlers/payment/checkoutsingle"
	paymentverify "github.com/dataweaveai/condition-report/internal/http/handlers/payment/verify"
	paymentwebhook "github.com/dataweaveai/condition-report/internal/http/handlers/payment/webhook"
	photoupload "github.com/dataweaveai/condition-report/internal/http/handlers/photo/upload"
	reportanalyze "github.com/dataweaveai/condition-report/internal/http/handlers/report/analyze"
	reportemailsend "github.com/dataweaveai/condition-report/internal/http/handlers/report/emailsend"
	reportpdf "github.com/dataweaveai/condition-report/internal/http/handlers/report/pdfdownload"
	reportread "github.com/dataweaveai/condition-report/internal/http/handlers/report/read"
	reportshare "github.com/dataweaveai/condition-report/internal/http/handlers/report/share"
	reportshared "github.com/dataweaveai/condition-report/internal/http/handlers/report/shared"
	reportsignature "github.com/dataweaveai/condition-report/internal/http/handlers/report/signature"
	userstatus "github.com/dataweaveai/condition-report/internal/http/handlers/user/status"
	"github.com/dataweaveai/condition-report/internal/http/middlewarectx"
	accountservice "github.com/dataweaveai/condition-report/internal/services/account"
	identityservice "github.com/dataweaveai/condition-report/internal/services/identity"
	paymentservice "github.com/dataweaveai/condition-report/internal/services/payment"
	reportservice "github.com/dataweaveai/condition-report/internal/services/report"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage,
	identityService *identityservice.Service,
	reportService *reportservice.Service,
	paymentService *paymentservice.Service,
	accountService *accountservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с определением личности по отпечатку устройства
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware(identityService, logger))

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(20), 40))
				r.Get("/user/status", userstatus.New(logger, reportService).ServeHTTP)
				r.Post("/upload-photos", photoupload.New(logger, reportService).ServeHTTP)
				r.Get("/report/{id}", reportread.New(logger, reportService).ServeHTTP)
				r.Get("/report/{id}/pdf", reportpdf.New(logger, reportService).ServeHTTP)
			})

			// Дорогие операции идут с жёстким лимитом
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(2), 5))
				r.Post("/analyze", reportanalyze.New(logger, reportService).ServeHTTP)
				r.Post("/report/{id}/signature", reportsignature.New(logger, reportService).ServeHTTP)
				r.Post("/report/{id}/share", reportshare.New(logger, reportService, cfg.BaseURL).ServeHTTP)
				r.Post("/email-report", reportemailsend.New(logger, reportService).ServeHTTP)
				r.Post("/checkout/single", paymentcheckoutsingle.New(logger, paymentService).ServeHTTP)
				r.Post("/checkout/pro", paymentcheckoutpro.New(logger, paymentService).ServeHTTP)
				r.Post("/verify-payment", paymentverify.New(logger, paymentService).ServeHTTP)
			})

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(5), 10))
				r.Post("/account/signup", accountsignup.New(logger, accountService).ServeHTTP)
				r.Post("/account/login", accountlogin.New(logger, accountService).ServeHTTP)
				r.Get("/account", accountprofile.New(logger, accountService).ServeHTTP)
				r.Put("/account", accountupdate.New(logger, accountService).ServeHTTP)
				r.Post("/account/verify-email", accountverifyemail.New(logger, accountService).ServeHTTP)
				r.Post("/account/reset-request", accountresetrequest.New(logger, accountService).ServeHTTP)
				r.Post("/account/reset-confirm", accountresetconfirm.New(logger, accountService).ServeHTTP)
			})
		})

		// Webhook endpoint (личность определяется метаданными сессии)
		r.Post("/webhook", paymentwebhook.New(logger, paymentService).ServeHTTP)
	})

	// Анонимное скачивание по share-ссылке
	r.Get("/share/{token}", reportshared.New(logger, reportService).ServeHTTP)

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
