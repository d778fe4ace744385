package repository

import (
	"context"
	"fmt"
)

// ClaimPaymentSession пытается занять checkout-сессию в журнале
// идемпотентности. Возвращает true, если сессия занята этим вызовом,
// и false, если её уже обработал другой путь (verify или вебхук).
//
// Вставка-если-нет по первичному ключу — единственная точка, на которой
// держится гарантия "ровно одно начисление" при гонке двух уведомлений.
func (s *Storage) ClaimPaymentSession(ctx context.Context, sessionID, fingerprint, purchaseType string) (bool, error) {
	const op = "storage.ClaimPaymentSession"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO processed_stripe_sessions (session_id, fingerprint, purchase_type)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (session_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, sessionID, fingerprint, purchaseType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
