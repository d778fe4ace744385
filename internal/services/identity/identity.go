// Package identity собирает контекст пользователя запроса: запись
// устройства по отпечатку плюс привязанный аккаунт, если устройство
// когда-либо входило в него. Контекст собирается заново на каждый
// запрос и нигде не кэшируется, поэтому смена плана видна сразу.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Repository контракт хранилища для разрешения личности.
type Repository interface {
	GetOrCreateUser(ctx context.Context, fingerprint string) (*models.User, error)
	GetAccountByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve возвращает контекст пользователя по отпечатку устройства.
// План из аккаунта перекрывает план устройства, счётчики использования
// всегда берутся из записи устройства.
func (s *Service) Resolve(ctx context.Context, fingerprint string) (*models.UserContext, error) {
	const op = "identity.Resolve"

	user, err := s.repo.GetOrCreateUser(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uctx := &models.UserContext{
		Fingerprint:            user.Fingerprint,
		Plan:                   user.Plan,
		ReportsUsed:            user.ReportsUsed,
		SingleReportsPurchased: user.SingleReportsPurchased,
	}
	if user.Email != nil {
		uctx.Email = *user.Email
	}
	if user.StripeCustomerID != nil {
		uctx.StripeCustomerID = *user.StripeCustomerID
	}

	account, err := s.repo.GetAccountByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return uctx, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uctx.LoggedIn = true
	uctx.Email = account.Email
	uctx.AccountName = account.Name
	uctx.AccountCompany = account.Company
	if account.Plan == models.PlanPro {
		uctx.Plan = models.PlanPro
	}
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		uctx.StripeCustomerID = *account.StripeCustomerID
	}
	return uctx, nil
}
