// Package account реализует учётные записи: регистрацию, вход,
// привязку устройств, профиль, подтверждение почты и сброс пароля.
// Вход и регистрация наследуют план и счётчики существующей записи
// устройства и при плане free пытаются восстановить подписку по
// записям платёжного провайдера.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dataweaveai/condition-report/internal/lib/password"
	"github.com/dataweaveai/condition-report/internal/lib/sl"
	"github.com/dataweaveai/condition-report/internal/lib/token"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// Ошибки учётных записей.
var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
)

// Repository контракт хранилища для учётных записей.
type Repository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	LinkSession(ctx context.Context, email, fingerprint string) error
	UpdateAccountProfile(ctx context.Context, fingerprint, name, company string) error
	UpdateAccountPassword(ctx context.Context, email, passwordHash string) error
	SetEmailVerified(ctx context.Context, email string) error
	CountReportsForAccount(ctx context.Context, email, fingerprint string) (int, error)
	GetUserByFingerprint(ctx context.Context, fingerprint string) (*models.User, error)
	LinkEmailToUser(ctx context.Context, fingerprint, email, plan string, stripeCustomerID *string) error
	CreateAccountToken(ctx context.Context, token *models.AccountToken) error
	ConsumeAccountToken(ctx context.Context, token, purpose string) (string, error)
}

// SelfHealer контракт восстановления подписки по платёжным записям.
type SelfHealer interface {
	SelfHeal(ctx context.Context, email, fingerprint string) (bool, error)
}

// Mailer контракт отправки служебных писем.
type Mailer interface {
	SendVerification(ctx context.Context, to, verifyURL string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

type Service struct {
	repo    Repository
	healer  SelfHealer
	mailer  Mailer
	baseURL string
	log     *slog.Logger
}

func New(repo Repository, healer SelfHealer, mailer Mailer, baseURL string, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		healer:  healer,
		mailer:  mailer,
		baseURL: baseURL,
		log:     log,
	}
}

// Signup создаёт учётную запись и привязывает к ней текущее устройство.
// План и платёжный идентификатор наследуются от записи устройства, при
// плане free дополнительно запускается самовосстановление подписки.
// Письмо подтверждения отправляется в фоне, его неудача не срывает
// регистрацию.
func (s *Service) Signup(ctx context.Context, fingerprint string, req *models.SignupRequest) (*models.Account, error) {
	const op = "account.Signup"

	existing, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account := &models.Account{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Plan:         models.PlanFree,
		Fingerprint:  &fingerprint,
	}

	user, err := s.repo.GetUserByFingerprint(ctx, fingerprint)
	if err != nil && !errors.Is(err, repository.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user != nil {
		account.Plan = user.Plan
		account.StripeCustomerID = user.StripeCustomerID
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.LinkSession(ctx, req.Email, fingerprint); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.LinkEmailToUser(ctx, fingerprint, req.Email, account.Plan, account.StripeCustomerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if account.Plan != models.PlanPro {
		healed, err := s.healer.SelfHeal(ctx, req.Email, fingerprint)
		if err != nil {
			s.log.Warn("self-heal failed on signup", "email", req.Email, sl.Err(err))
		} else if healed {
			account.Plan = models.PlanPro
		}
	}

	if err := s.sendVerification(ctx, req.Email); err != nil {
		s.log.Warn("failed to send verification email", "email", req.Email, sl.Err(err))
	}

	s.log.Info("account created", "email", req.Email)
	return account, nil
}

// Login проверяет пароль и привязывает устройство к аккаунту.
// Неизвестная почта и неверный пароль для клиента неразличимы.
func (s *Service) Login(ctx context.Context, fingerprint string, req *models.LoginRequest) (*models.Account, error) {
	const op = "account.Login"

	account, err := s.repo.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.Verify(account.PasswordHash, req.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if account.Plan != models.PlanPro {
		healed, err := s.healer.SelfHeal(ctx, req.Email, fingerprint)
		if err != nil {
			s.log.Warn("self-heal failed on login", "email", req.Email, sl.Err(err))
		} else if healed {
			account.Plan = models.PlanPro
		}
	}

	if err := s.repo.LinkSession(ctx, req.Email, fingerprint); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.LinkEmailToUser(ctx, fingerprint, req.Email, account.Plan, account.StripeCustomerID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("account login", "email", req.Email)
	return account, nil
}

// Profile возвращает число отчётов, доступных аккаунту с этого устройства.
func (s *Service) Profile(ctx context.Context, user *models.UserContext) (int, error) {
	const op = "account.Profile"

	count, err := s.repo.CountReportsForAccount(ctx, user.Email, user.Fingerprint)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// Update обновляет имя и компанию в профиле.
func (s *Service) Update(ctx context.Context, fingerprint string, req *models.UpdateAccountRequest) error {
	const op = "account.Update"

	if err := s.repo.UpdateAccountProfile(ctx, fingerprint, req.Name, req.Company); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// VerifyEmail подтверждает почту одноразовым токеном.
func (s *Service) VerifyEmail(ctx context.Context, tokenValue string) error {
	const op = "account.VerifyEmail"

	email, err := s.repo.ConsumeAccountToken(ctx, tokenValue, models.TokenPurposeVerify)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetEmailVerified(ctx, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email verified", "email", email)
	return nil
}

// RequestPasswordReset отправляет письмо сброса, если аккаунт существует.
// Ответ одинаков в обоих случаях, чтобы не раскрывать наличие почты.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "account.RequestPasswordReset"

	_, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	value, err := token.New(32)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	accountToken := &models.AccountToken{
		Token:     value,
		Email:     email,
		Purpose:   models.TokenPurposeReset,
		ExpiresAt: time.Now().UTC().Add(models.ResetTokenTTL),
	}
	if err := s.repo.CreateAccountToken(ctx, accountToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resetURL := s.baseURL + "/reset-password?token=" + value
	if err := s.mailer.SendPasswordReset(ctx, email, resetURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetPassword устанавливает новый пароль по токену сброса.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	const op = "account.ResetPassword"

	email, err := s.repo.ConsumeAccountToken(ctx, tokenValue, models.TokenPurposeReset)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdateAccountPassword(ctx, email, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset", "email", email)
	return nil
}

func (s *Service) sendVerification(ctx context.Context, email string) error {
	const op = "account.sendVerification"

	value, err := token.New(32)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	accountToken := &models.AccountToken{
		Token:     value,
		Email:     email,
		Purpose:   models.TokenPurposeVerify,
		ExpiresAt: time.Now().UTC().Add(models.VerifyTokenTTL),
	}
	if err := s.repo.CreateAccountToken(ctx, accountToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	verifyURL := s.baseURL + "/verify-email?token=" + value
	if err := s.mailer.SendVerification(ctx, email, verifyURL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
