package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dataweaveai/condition-report/internal/models"
)

const accountColumns = `id, email, password_hash, name, company, plan,
			      stripe_customer_id, fingerprint, email_verified, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	a := &models.Account{}
	var customerID, fingerprint sql.NullString
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Company,
		&a.Plan, &customerID, &fingerprint, &a.EmailVerified,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if customerID.Valid {
		a.StripeCustomerID = &customerID.String
	}
	if fingerprint.Valid {
		a.Fingerprint = &fingerprint.String
	}
	return a, nil
}

// CreateAccount сохраняет новый аккаунт. Уникальность почты обеспечивает
// ограничение базы; нарушение возвращается как ошибка.
func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (email, password_hash, name, company, plan,
			      stripe_customer_id, fingerprint)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		account.Email, account.PasswordHash, account.Name, account.Company,
		account.Plan, account.StripeCustomerID, account.Fingerprint).Scan(&account.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccountByEmail возвращает аккаунт по почте.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAccountByFingerprint находит аккаунт, привязанный к отпечатку:
// сначала прямое поле accounts.fingerprint, затем свежайшая запись
// в таблице межустройственных сессий.
func (s *Storage) GetAccountByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error) {
	const op = "storage.GetAccountByFingerprint"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	direct := `SELECT ` + accountColumns + ` FROM accounts WHERE fingerprint = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, direct, fingerprint))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	viaSessions := `SELECT ` + accountColumns + `
			        FROM accounts
			        WHERE email = (SELECT email FROM account_sessions
			                       WHERE fingerprint = $1
			                       ORDER BY created_at DESC LIMIT 1)`
	a, err = scanAccount(s.DB.QueryRowContext(ctx, viaSessions, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// LinkSession фиксирует связку аккаунт-устройство и запоминает отпечаток
// как последний увиденный у аккаунта.
func (s *Storage) LinkSession(ctx context.Context, email, fingerprint string) error {
	const op = "storage.LinkSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	insert := `INSERT INTO account_sessions (email, fingerprint) VALUES ($1, $2)
			   ON CONFLICT (email, fingerprint) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, insert, email, fingerprint); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	update := `UPDATE accounts SET fingerprint = $1, updated_at = CURRENT_TIMESTAMP WHERE email = $2`
	if _, err := s.DB.ExecContext(ctx, update, fingerprint, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAccountFingerprints возвращает все отпечатки, привязанные к аккаунту.
func (s *Storage) ListAccountFingerprints(ctx context.Context, email string) ([]string, error) {
	const op = "storage.ListAccountFingerprints"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT fingerprint FROM account_sessions WHERE email = $1`
	rows, err := s.DB.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var fp string
		if err = rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, fp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateAccountProfile обновляет имя и компанию аккаунта, привязанного к отпечатку.
func (s *Storage) UpdateAccountProfile(ctx context.Context, fingerprint, name, company string) error {
	const op = "storage.UpdateAccountProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET name = $1, company = $2, updated_at = CURRENT_TIMESTAMP
			  WHERE fingerprint = $3`
	res, err := s.DB.ExecContext(ctx, query, name, company, fingerprint)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	return nil
}

// SetAccountPlan устанавливает план аккаунта и customer id провайдера.
func (s *Storage) SetAccountPlan(ctx context.Context, email, plan string, stripeCustomerID *string) error {
	const op = "storage.SetAccountPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET plan = $1,
			      stripe_customer_id = COALESCE($2, stripe_customer_id),
			      updated_at = CURRENT_TIMESTAMP
			  WHERE email = $3`
	if _, err := s.DB.ExecContext(ctx, query, plan, stripeCustomerID, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateAccountPassword заменяет bcrypt-хэш пароля аккаунта.
func (s *Storage) UpdateAccountPassword(ctx context.Context, email, passwordHash string) error {
	const op = "storage.UpdateAccountPassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE email = $2`
	if _, err := s.DB.ExecContext(ctx, query, passwordHash, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetEmailVerified помечает почту аккаунта подтверждённой.
func (s *Storage) SetEmailVerified(ctx context.Context, email string) error {
	const op = "storage.SetEmailVerified"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET email_verified = TRUE, updated_at = CURRENT_TIMESTAMP WHERE email = $1`
	if _, err := s.DB.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountReportsForAccount считает отчёты по всем отпечаткам аккаунта
// плюс текущему отпечатку запроса.
func (s *Storage) CountReportsForAccount(ctx context.Context, email, fingerprint string) (int, error) {
	const op = "storage.CountReportsForAccount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM reports
			  WHERE fingerprint IN (SELECT fingerprint FROM account_sessions WHERE email = $1)
			     OR fingerprint = $2`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, email, fingerprint).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
