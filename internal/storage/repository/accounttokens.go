package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dataweaveai/condition-report/internal/models"
)

// CreateAccountToken сохраняет одноразовый токен аккаунта.
func (s *Storage) CreateAccountToken(ctx context.Context, token *models.AccountToken) error {
	const op = "storage.CreateAccountToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO account_tokens (token, email, purpose, expires_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query,
		token.Token, token.Email, token.Purpose, token.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeAccountToken гасит токен и возвращает почту аккаунта.
// Условное обновление пропускает только живой непогашенный токен, поэтому
// повторное использование возвращает ErrNoRows. Вслед за этим гасятся все
// остальные невыданные токены того же назначения для той же почты.
func (s *Storage) ConsumeAccountToken(ctx context.Context, token, purpose string) (string, error) {
	const op = "storage.ConsumeAccountToken"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	consume := `UPDATE account_tokens
			    SET consumed = TRUE
			    WHERE token = $1 AND purpose = $2 AND consumed = FALSE AND expires_at > CURRENT_TIMESTAMP
			    RETURNING email`
	var email string
	err := s.DB.QueryRowContext(ctx, consume, token, purpose).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	void := `UPDATE account_tokens
			 SET consumed = TRUE
			 WHERE email = $1 AND purpose = $2 AND consumed = FALSE`
	if _, err = s.DB.ExecContext(ctx, void, email, purpose); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return email, nil
}
