package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dataweaveai/condition-report/internal/models"
)

// CreateShareToken сохраняет share-ссылку. Несколько одновременных ссылок
// на один отчёт допустимы, каждая со своим сроком.
func (s *Storage) CreateShareToken(ctx context.Context, token *models.ShareToken) error {
	const op = "storage.CreateShareToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO share_tokens (token, report_id, fingerprint, expires_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query,
		token.Token, token.ReportID, token.Fingerprint, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetShareToken возвращает действующую share-ссылку по токену.
// Неизвестный и просроченный токены неразличимы для вызывающего:
// оба дают ErrNoRows. Просроченная запись при этом удаляется лениво.
func (s *Storage) GetShareToken(ctx context.Context, token string) (*models.ShareToken, error) {
	const op = "storage.GetShareToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT token, report_id, fingerprint, expires_at FROM share_tokens WHERE token = $1`
	t := &models.ShareToken{}
	err := s.DB.QueryRowContext(ctx, query, token).Scan(&t.Token, &t.ReportID, &t.Fingerprint, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		// Неудача удаления не мешает отказу: запись попадёт под
		// удаление при следующем обращении.
		_ = s.DeleteShareToken(ctx, token)
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	return t, nil
}

// DeleteShareToken удаляет просроченную share-ссылку. Просроченные записи
// не вычищаются фоном, а удаляются лениво при обращении.
func (s *Storage) DeleteShareToken(ctx context.Context, token string) error {
	const op = "storage.DeleteShareToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM share_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
