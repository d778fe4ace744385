package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dataweaveai/condition-report/internal/models"
)

// ErrCreditExhausted возвращается CreateReportAndConsume, когда защищённое
// списание не нашло доступного кредита: к моменту записи другой запрос
// успел израсходовать последний.
var ErrCreditExhausted = errors.New("generation credit exhausted")

// CreateReportAndConsume сохраняет отчёт и списывает кредит генерации в
// одной транзакции. Любой сбой, включая исчерпанный кредит, откатывает
// обе операции: reports_used никогда не растёт без сохранённого отчёта.
func (s *Storage) CreateReportAndConsume(ctx context.Context, report *models.Report, isPro bool) error {
	const op = "storage.CreateReportAndConsume"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	propertyInfo, err := json.Marshal(report.PropertyInfo)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rooms, err := json.Marshal(report.Rooms)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	consumed, err := consumeCreditTx(ctx, tx, report.Fingerprint, isPro)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !consumed {
		return fmt.Errorf("%s: %w", op, ErrCreditExhausted)
	}

	insert := `INSERT INTO reports (id, fingerprint, email, report_type, property_info, rooms, pdf_path)
			   VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.ExecContext(ctx, insert,
		report.ID, report.Fingerprint, report.Email, report.ReportType,
		propertyInfo, rooms, report.PDFPath); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetReport возвращает отчёт по идентификатору.
func (s *Storage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	const op = "storage.GetReport"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, fingerprint, email, report_type, property_info, rooms, pdf_path, created_at
			  FROM reports
			  WHERE id = $1`
	r := &models.Report{}
	var email sql.NullString
	var propertyInfo, rooms []byte
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Fingerprint, &email,
		&r.ReportType, &propertyInfo, &rooms, &r.PDFPath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if email.Valid {
		r.Email = &email.String
	}
	if err = json.Unmarshal(propertyInfo, &r.PropertyInfo); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal(rooms, &r.Rooms); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// ListReportsByFingerprint возвращает краткий список отчётов устройства,
// свежие первыми, не более limit записей.
func (s *Storage) ListReportsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]models.ReportListItem, error) {
	const op = "storage.ListReportsByFingerprint"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, report_type, property_info, created_at
			  FROM reports
			  WHERE fingerprint = $1
			  ORDER BY created_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ReportListItem
	for rows.Next() {
		var item models.ReportListItem
		var propertyInfo []byte
		var createdAt sql.NullTime
		if err = rows.Scan(&item.ID, &item.ReportType, &propertyInfo, &createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var info models.PropertyInfo
		if err = json.Unmarshal(propertyInfo, &info); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.Address = info.Address
		if createdAt.Valid {
			item.Date = createdAt.Time.Format("January 02, 2006")
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
