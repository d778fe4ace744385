// Package conditionreport собирает основное приложение: подключения к
// базе, кэшу и брокеру, клиенты внешних сервисов, бизнес-сервисы,
// HTTP-сервер и фоновую очистку артефактов.
package conditionreport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/dataweaveai/condition-report/internal/cache"
	"github.com/dataweaveai/condition-report/internal/config"
	"github.com/dataweaveai/condition-report/internal/mail"
	"github.com/dataweaveai/condition-report/internal/migrations"
	"github.com/dataweaveai/condition-report/internal/pdf"
	"github.com/dataweaveai/condition-report/internal/rabbitmq"
	accountservice "github.com/dataweaveai/condition-report/internal/services/account"
	identityservice "github.com/dataweaveai/condition-report/internal/services/identity"
	paymentservice "github.com/dataweaveai/condition-report/internal/services/payment"
	reportservice "github.com/dataweaveai/condition-report/internal/services/report"
	sweeperservice "github.com/dataweaveai/condition-report/internal/services/sweeper"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
	"github.com/dataweaveai/condition-report/internal/stripeclient"
	"github.com/dataweaveai/condition-report/internal/vision"
)

type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	rabbit  *amqp.Connection
	sweeper *sweeperservice.Service
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	channel, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetReportQueues())
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.FileStorage.UploadDir, cfg.FileStorage.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	stripeClient := stripeclient.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	visionClient := vision.New(cfg.Anthropic.APIKey, cfg.Anthropic.PrimaryModel, cfg.Anthropic.FallbackModel)
	mailClient := mail.New(cfg.Resend.APIKey, cfg.Resend.From)
	renderer := pdf.New(cfg.FileStorage.ReportDir)

	identityService := identityservice.New(db)
	paymentService := paymentservice.New(db, stripeClient, cfg.Stripe, cfg.BaseURL, logger)
	reportService := reportservice.New(db, visionClient, renderer, cacheRedis, channel,
		cfg.FileStorage.UploadDir, cfg.FileStorage.ReportDir, cfg.Analysis.Workers, logger)
	accountService := accountservice.New(db, paymentService, mailClient, cfg.BaseURL, logger)

	sweeper := sweeperservice.New(
		[]string{cfg.FileStorage.UploadDir, cfg.FileStorage.ReportDir},
		cfg.Sweeper.Interval, cfg.Sweeper.Retention, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db, identityService,
		reportService, paymentService, accountService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:  srv,
		logger:  logger,
		db:      db,
		rabbit:  rabbitConn,
		sweeper: sweeper,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.rabbit.Close()
		a.db.DB.Close()
		return err
	}
}
