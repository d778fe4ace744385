package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dataweaveai/condition-report/internal/models"
)

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var email, customerID, subscriptionID sql.NullString
	if err := row.Scan(&u.Fingerprint, &email, &u.Plan, &u.ReportsUsed,
		&u.SingleReportsPurchased, &customerID, &subscriptionID,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if customerID.Valid {
		u.StripeCustomerID = &customerID.String
	}
	if subscriptionID.Valid {
		u.StripeSubscriptionID = &subscriptionID.String
	}
	return u, nil
}

const userColumns = `fingerprint, email, plan, reports_used,
			      single_reports_purchased, stripe_customer_id, stripe_subscription_id,
			      created_at, updated_at`

// GetOrCreateUser возвращает запись устройства, создавая её при первом
// обращении с неизвестным отпечатком. Вставка-если-нет устойчива к гонке
// двух первых запросов с одного устройства.
func (s *Storage) GetOrCreateUser(ctx context.Context, fingerprint string) (*models.User, error) {
	const op = "storage.GetOrCreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	insert := `INSERT INTO users (fingerprint, plan, reports_used, single_reports_purchased)
			   VALUES ($1, 'free', 0, 0)
			   ON CONFLICT (fingerprint) DO NOTHING
			   RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, insert, fingerprint))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE fingerprint = $1`
	u, err = scanUser(s.DB.QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByFingerprint возвращает запись устройства без создания.
func (s *Storage) GetUserByFingerprint(ctx context.Context, fingerprint string) (*models.User, error) {
	const op = "storage.GetUserByFingerprint"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE fingerprint = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// LinkEmailToUser привязывает почту аккаунта к записи устройства при входе
// или регистрации. План повышается до переданного, но никогда не понижается:
// pro на записи устройства сохраняется.
func (s *Storage) LinkEmailToUser(ctx context.Context, fingerprint, email, plan string, stripeCustomerID *string) error {
	const op = "storage.LinkEmailToUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (fingerprint, email, plan)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (fingerprint) DO UPDATE SET
			      email = EXCLUDED.email,
			      plan = CASE WHEN users.plan = 'pro' THEN users.plan ELSE EXCLUDED.plan END,
			      stripe_customer_id = COALESCE($4, users.stripe_customer_id),
			      updated_at = CURRENT_TIMESTAMP`
	if _, err := s.DB.ExecContext(ctx, query, fingerprint, email, plan, stripeCustomerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// consumeCreditTx выполняет атомарное списание кредита генерации внутри
// транзакции создания отчёта. Для pro-пользователя это простой инкремент;
// иначе инкремент защищён условием "пробный не израсходован или остался
// купленный кредит", так что из двух одновременных генераций с одним
// кредитом пройдёт ровно одна.
func consumeCreditTx(ctx context.Context, tx *sql.Tx, fingerprint string, isPro bool) (bool, error) {
	var query string
	if isPro {
		query = `UPDATE users
			     SET reports_used = reports_used + 1, updated_at = CURRENT_TIMESTAMP
			     WHERE fingerprint = $1`
	} else {
		query = `UPDATE users
			     SET reports_used = reports_used + 1, updated_at = CURRENT_TIMESTAMP
			     WHERE fingerprint = $1
			       AND (reports_used = 0 OR single_reports_purchased > reports_used - 1)`
	}
	res, err := tx.ExecContext(ctx, query, fingerprint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddSingleReportCredit начисляет один купленный разовый кредит.
func (s *Storage) AddSingleReportCredit(ctx context.Context, fingerprint string) error {
	const op = "storage.AddSingleReportCredit"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET single_reports_purchased = single_reports_purchased + 1,
			      updated_at = CURRENT_TIMESTAMP
			  WHERE fingerprint = $1`
	if _, err := s.DB.ExecContext(ctx, query, fingerprint); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetUserPlan устанавливает план записи устройства и, при наличии,
// идентификаторы покупателя и подписки.
func (s *Storage) SetUserPlan(ctx context.Context, fingerprint, plan string, stripeCustomerID, stripeSubscriptionID *string) error {
	const op = "storage.SetUserPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET plan = $1,
			      stripe_customer_id = COALESCE($2, stripe_customer_id),
			      stripe_subscription_id = COALESCE($3, stripe_subscription_id),
			      updated_at = CURRENT_TIMESTAMP
			  WHERE fingerprint = $4`
	if _, err := s.DB.ExecContext(ctx, query, plan, stripeCustomerID, stripeSubscriptionID, fingerprint); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DowngradeByCustomerID переводит на free все записи устройств и аккаунтов,
// привязанные к покупателю. Вызывается при отмене подписки этого продукта.
func (s *Storage) DowngradeByCustomerID(ctx context.Context, stripeCustomerID string) error {
	const op = "storage.DowngradeByCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	usersQuery := `UPDATE users
			       SET plan = 'free', stripe_subscription_id = NULL, updated_at = CURRENT_TIMESTAMP
			       WHERE stripe_customer_id = $1`
	if _, err := s.DB.ExecContext(ctx, usersQuery, stripeCustomerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	accountsQuery := `UPDATE accounts
			          SET plan = 'free', updated_at = CURRENT_TIMESTAMP
			          WHERE stripe_customer_id = $1`
	if _, err := s.DB.ExecContext(ctx, accountsQuery, stripeCustomerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
