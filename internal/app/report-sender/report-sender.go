// Package reportsender собирает сервис доставки отчётов почтой:
// потребитель очереди заданий и клиент транзакционной почты.
package reportsender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/dataweaveai/condition-report/internal/config"
	"github.com/dataweaveai/condition-report/internal/mail"
	"github.com/dataweaveai/condition-report/internal/rabbitmq"
	senderservice "github.com/dataweaveai/condition-report/internal/services/reportsender"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetReportQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	mailClient := mail.New(cfg.Resend.APIKey, cfg.Resend.From)
	senderService := senderservice.New(db, mailClient, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.EmailQueue, a.senderService.HandleMessage)
	if err != nil {
		a.logger.Error("failed to start email queue consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("report-sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
