package account

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataweaveai/condition-report/internal/lib/password"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
)

// MockRepository реализует интерфейс account.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if res := args.Get(0); res != nil {
		return res.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) LinkSession(ctx context.Context, email, fingerprint string) error {
	args := m.Called(ctx, email, fingerprint)
	return args.Error(0)
}

func (m *MockRepository) UpdateAccountProfile(ctx context.Context, fingerprint, name, company string) error {
	args := m.Called(ctx, fingerprint, name, company)
	return args.Error(0)
}

func (m *MockRepository) UpdateAccountPassword(ctx context.Context, email, passwordHash string) error {
	args := m.Called(ctx, email, passwordHash)
	return args.Error(0)
}

func (m *MockRepository) SetEmailVerified(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockRepository) CountReportsForAccount(ctx context.Context, email, fingerprint string) (int, error) {
	args := m.Called(ctx, email, fingerprint)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetUserByFingerprint(ctx context.Context, fingerprint string) (*models.User, error) {
	args := m.Called(ctx, fingerprint)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) LinkEmailToUser(ctx context.Context, fingerprint, email, plan string, stripeCustomerID *string) error {
	args := m.Called(ctx, fingerprint, email, plan, stripeCustomerID)
	return args.Error(0)
}

func (m *MockRepository) CreateAccountToken(ctx context.Context, token *models.AccountToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRepository) ConsumeAccountToken(ctx context.Context, token, purpose string) (string, error) {
	args := m.Called(ctx, token, purpose)
	return args.String(0), args.Error(1)
}

// MockHealer реализует интерфейс account.SelfHealer
type MockHealer struct {
	mock.Mock
}

func (m *MockHealer) SelfHeal(ctx context.Context, email, fingerprint string) (bool, error) {
	args := m.Called(ctx, email, fingerprint)
	return args.Bool(0), args.Error(1)
}

// MockMailer реализует интерфейс account.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerification(ctx context.Context, to, verifyURL string) error {
	args := m.Called(ctx, to, verifyURL)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	args := m.Called(ctx, to, resetURL)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func notFound() error {
	return fmt.Errorf("account: %w", repository.ErrNoRows)
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	req := &models.SignupRequest{Email: "new@example.com", Password: "secret123", Name: "Jamie"}

	t.Run("занятая почта возвращает ErrEmailTaken", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "new@example.com").
			Return(&models.Account{Email: "new@example.com"}, nil)

		svc := New(repo, new(MockHealer), new(MockMailer), "https://example.com", testLogger())
		_, err := svc.Signup(ctx, "fp-1", req)
		require.ErrorIs(t, err, ErrEmailTaken)
		repo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	})

	t.Run("аккаунт наследует план и платёжный id устройства", func(t *testing.T) {
		customerID := "cus_1"
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "new@example.com").Return(nil, notFound())
		repo.On("GetUserByFingerprint", mock.Anything, "fp-1").
			Return(&models.User{Fingerprint: "fp-1", Plan: models.PlanPro, StripeCustomerID: &customerID}, nil)
		repo.On("CreateAccount", mock.Anything, mock.Anything).Return(nil)
		repo.On("LinkSession", mock.Anything, "new@example.com", "fp-1").Return(nil)
		repo.On("LinkEmailToUser", mock.Anything, "fp-1", "new@example.com", models.PlanPro, &customerID).Return(nil)
		repo.On("CreateAccountToken", mock.Anything, mock.Anything).Return(nil)

		mailer := new(MockMailer)
		mailer.On("SendVerification", mock.Anything, "new@example.com", mock.Anything).Return(nil)
		healer := new(MockHealer)

		svc := New(repo, healer, mailer, "https://example.com", testLogger())
		account, err := svc.Signup(ctx, "fp-1", req)
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, account.Plan)
		// Pro не требует самовосстановления
		healer.AssertNotCalled(t, "SelfHeal", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("самовосстановление повышает план при регистрации", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "new@example.com").Return(nil, notFound())
		repo.On("GetUserByFingerprint", mock.Anything, "fp-1").Return(nil, notFound())
		repo.On("CreateAccount", mock.Anything, mock.Anything).Return(nil)
		repo.On("LinkSession", mock.Anything, "new@example.com", "fp-1").Return(nil)
		repo.On("LinkEmailToUser", mock.Anything, "fp-1", "new@example.com", models.PlanFree, (*string)(nil)).Return(nil)
		repo.On("CreateAccountToken", mock.Anything, mock.Anything).Return(nil)

		mailer := new(MockMailer)
		mailer.On("SendVerification", mock.Anything, "new@example.com", mock.Anything).Return(nil)
		healer := new(MockHealer)
		healer.On("SelfHeal", mock.Anything, "new@example.com", "fp-1").Return(true, nil)

		svc := New(repo, healer, mailer, "https://example.com", testLogger())
		account, err := svc.Signup(ctx, "fp-1", req)
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, account.Plan)
	})

	t.Run("неудача письма подтверждения не срывает регистрацию", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "new@example.com").Return(nil, notFound())
		repo.On("GetUserByFingerprint", mock.Anything, "fp-1").Return(nil, notFound())
		repo.On("CreateAccount", mock.Anything, mock.Anything).Return(nil)
		repo.On("LinkSession", mock.Anything, "new@example.com", "fp-1").Return(nil)
		repo.On("LinkEmailToUser", mock.Anything, "fp-1", "new@example.com", models.PlanFree, (*string)(nil)).Return(nil)
		repo.On("CreateAccountToken", mock.Anything, mock.Anything).Return(nil)

		mailer := new(MockMailer)
		mailer.On("SendVerification", mock.Anything, "new@example.com", mock.Anything).
			Return(fmt.Errorf("smtp down"))
		healer := new(MockHealer)
		healer.On("SelfHeal", mock.Anything, "new@example.com", "fp-1").Return(false, nil)

		svc := New(repo, healer, mailer, "https://example.com", testLogger())
		_, err := svc.Signup(ctx, "fp-1", req)
		require.NoError(t, err)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	hash, err := password.Hash("correct-password")
	require.NoError(t, err)

	t.Run("неизвестная почта и неверный пароль неразличимы", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "ghost@example.com").Return(nil, notFound())
		repo.On("GetAccountByEmail", mock.Anything, "user@example.com").
			Return(&models.Account{Email: "user@example.com", PasswordHash: hash}, nil)

		svc := New(repo, new(MockHealer), new(MockMailer), "https://example.com", testLogger())

		_, errGhost := svc.Login(ctx, "fp-1", &models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
		require.ErrorIs(t, errGhost, ErrInvalidCredentials)

		_, errWrong := svc.Login(ctx, "fp-1", &models.LoginRequest{Email: "user@example.com", Password: "wrong"})
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})

	t.Run("успешный вход привязывает устройство", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "user@example.com").
			Return(&models.Account{Email: "user@example.com", PasswordHash: hash, Plan: models.PlanFree}, nil)
		repo.On("LinkSession", mock.Anything, "user@example.com", "fp-1").Return(nil)
		repo.On("LinkEmailToUser", mock.Anything, "fp-1", "user@example.com", models.PlanFree, (*string)(nil)).Return(nil)

		healer := new(MockHealer)
		healer.On("SelfHeal", mock.Anything, "user@example.com", "fp-1").Return(false, nil)

		svc := New(repo, healer, new(MockMailer), "https://example.com", testLogger())
		account, err := svc.Login(ctx, "fp-1", &models.LoginRequest{Email: "user@example.com", Password: "correct-password"})
		require.NoError(t, err)
		assert.Equal(t, models.PlanFree, account.Plan)
		repo.AssertExpectations(t)
	})

	t.Run("самовосстановление повышает план при входе", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "user@example.com").
			Return(&models.Account{Email: "user@example.com", PasswordHash: hash, Plan: models.PlanFree}, nil)
		repo.On("LinkSession", mock.Anything, "user@example.com", "fp-1").Return(nil)
		repo.On("LinkEmailToUser", mock.Anything, "fp-1", "user@example.com", models.PlanPro, (*string)(nil)).Return(nil)

		healer := new(MockHealer)
		healer.On("SelfHeal", mock.Anything, "user@example.com", "fp-1").Return(true, nil)

		svc := New(repo, healer, new(MockMailer), "https://example.com", testLogger())
		account, err := svc.Login(ctx, "fp-1", &models.LoginRequest{Email: "user@example.com", Password: "correct-password"})
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, account.Plan)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("неизвестная почта не создаёт токен и не выдаёт ошибку", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "ghost@example.com").Return(nil, notFound())

		svc := New(repo, new(MockHealer), new(MockMailer), "https://example.com", testLogger())
		err := svc.RequestPasswordReset(ctx, "ghost@example.com")
		require.NoError(t, err)
		repo.AssertNotCalled(t, "CreateAccountToken", mock.Anything, mock.Anything)
	})

	t.Run("существующая почта получает письмо со ссылкой", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetAccountByEmail", mock.Anything, "user@example.com").
			Return(&models.Account{Email: "user@example.com"}, nil)
		repo.On("CreateAccountToken", mock.Anything, mock.MatchedBy(func(tok *models.AccountToken) bool {
			return tok.Email == "user@example.com" && tok.Purpose == models.TokenPurposeReset
		})).Return(nil)

		mailer := new(MockMailer)
		mailer.On("SendPasswordReset", mock.Anything, "user@example.com", mock.MatchedBy(func(url string) bool {
			return len(url) > len("https://example.com/reset-password?token=")
		})).Return(nil)

		svc := New(repo, new(MockHealer), mailer, "https://example.com", testLogger())
		err := svc.RequestPasswordReset(ctx, "user@example.com")
		require.NoError(t, err)
		mailer.AssertExpectations(t)
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("просроченный токен возвращает ErrTokenInvalid", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ConsumeAccountToken", mock.Anything, "stale", models.TokenPurposeVerify).
			Return("", notFound())

		svc := New(repo, new(MockHealer), new(MockMailer), "https://example.com", testLogger())
		err := svc.VerifyEmail(ctx, "stale")
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("валидный токен подтверждает почту", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ConsumeAccountToken", mock.Anything, "tok-1", models.TokenPurposeVerify).
			Return("user@example.com", nil)
		repo.On("SetEmailVerified", mock.Anything, "user@example.com").Return(nil)

		svc := New(repo, new(MockHealer), new(MockMailer), "https://example.com", testLogger())
		err := svc.VerifyEmail(ctx, "tok-1")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
