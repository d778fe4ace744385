// Package reportsender потребляет задания на доставку отчётов из
// очереди и отправляет письма с PDF-вложением.
package reportsender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dataweaveai/condition-report/internal/models"
)

// Repository контракт хранилища для чтения отчётов.
type Repository interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
}

// Mailer контракт отправки письма с отчётом.
type Mailer interface {
	SendReport(ctx context.Context, to, propertyAddress, reportType string, pdf []byte) error
}

type Service struct {
	repo   Repository
	mailer Mailer
	log    *slog.Logger
}

func New(repo Repository, mailer Mailer, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		log:    log,
	}
}

// HandleMessage обрабатывает одно задание из очереди. Возврат ошибки
// ведёт к nack и повторной доставке, поэтому непоправимые задания
// (битый JSON) подтверждаются без отправки.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	const op = "reportsender.HandleMessage"

	var job models.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		s.log.Error("dropping malformed email job", "body", string(body))
		return nil
	}

	report, err := s.repo.GetReport(ctx, job.ReportID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	pdf, err := os.ReadFile(report.PDFPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	address := report.PropertyInfo.Address
	if address == "" {
		address = "your property"
	}
	if err := s.mailer.SendReport(ctx, job.Email, address, report.ReportType, pdf); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("report emailed", "report_id", job.ReportID)
	return nil
}
