package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dataweaveai/condition-report/internal/config"
	"github.com/dataweaveai/condition-report/internal/models"
)

// MockRepository реализует интерфейс payment.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ClaimPaymentSession(ctx context.Context, sessionID, fingerprint, purchaseType string) (bool, error) {
	args := m.Called(ctx, sessionID, fingerprint, purchaseType)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) AddSingleReportCredit(ctx context.Context, fingerprint string) error {
	args := m.Called(ctx, fingerprint)
	return args.Error(0)
}

func (m *MockRepository) SetUserPlan(ctx context.Context, fingerprint, plan string, customerID, subscriptionID *string) error {
	args := m.Called(ctx, fingerprint, plan, customerID, subscriptionID)
	return args.Error(0)
}

func (m *MockRepository) DowngradeByCustomerID(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

func (m *MockRepository) GetAccountByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error) {
	args := m.Called(ctx, fingerprint)
	if res := args.Get(0); res != nil {
		return res.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) SetAccountPlan(ctx context.Context, email, plan string, customerID *string) error {
	args := m.Called(ctx, email, plan, customerID)
	return args.Error(0)
}

// MockStripe реализует интерфейс payment.StripeClient
type MockStripe struct {
	mock.Mock
}

func (m *MockStripe) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	args := m.Called(params)
	if res := args.Get(0); res != nil {
		return res.(*stripe.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStripe) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	args := m.Called(id)
	if res := args.Get(0); res != nil {
		return res.(*stripe.CheckoutSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStripe) FindCustomerByEmail(email string) (*stripe.Customer, error) {
	args := m.Called(email)
	if res := args.Get(0); res != nil {
		return res.(*stripe.Customer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStripe) FindActiveSubscription(customerID string, priceIDs []string) (*stripe.Subscription, error) {
	args := m.Called(customerID, priceIDs)
	if res := args.Get(0); res != nil {
		return res.(*stripe.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStripe) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	args := m.Called(payload, sigHeader)
	return args.Get(0).(stripe.Event), args.Error(1)
}

func testConfig() config.Stripe {
	return config.Stripe{
		PriceSingle:  "price_single",
		PriceMonthly: "price_monthly",
		PriceAnnual:  "price_annual",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestVerifySession(t *testing.T) {
	user := &models.UserContext{Fingerprint: "fp-1", ReportsUsed: 1}

	tests := []struct {
		name      string
		session   *stripe.CheckoutSession
		setupRepo func(*MockRepository)
		wantErr   error
	}{
		{
			name: "оплаченная сессия начисляет кредит",
			session: &stripe.CheckoutSession{
				ID:            "cs_1",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				Metadata:      map[string]string{"fingerprint": "fp-1", "type": models.PurchaseSingle},
			},
			setupRepo: func(m *MockRepository) {
				m.On("ClaimPaymentSession", mock.Anything, "cs_1", "fp-1", models.PurchaseSingle).Return(true, nil)
				m.On("AddSingleReportCredit", mock.Anything, "fp-1").Return(nil)
			},
		},
		{
			name: "повторная верификация не начисляет второй раз",
			session: &stripe.CheckoutSession{
				ID:            "cs_1",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				Metadata:      map[string]string{"fingerprint": "fp-1", "type": models.PurchaseSingle},
			},
			setupRepo: func(m *MockRepository) {
				m.On("ClaimPaymentSession", mock.Anything, "cs_1", "fp-1", models.PurchaseSingle).Return(false, nil)
			},
		},
		{
			name: "неоплаченная сессия отклоняется",
			session: &stripe.CheckoutSession{
				ID:            "cs_2",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
				Metadata:      map[string]string{"fingerprint": "fp-1"},
			},
			setupRepo: func(_ *MockRepository) {},
			wantErr:   ErrNotPaid,
		},
		{
			name: "сессия чужого устройства отклоняется",
			session: &stripe.CheckoutSession{
				ID:            "cs_3",
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				Metadata:      map[string]string{"fingerprint": "fp-other", "type": models.PurchaseSingle},
			},
			setupRepo: func(_ *MockRepository) {},
			wantErr:   ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupRepo(repo)
			stripeMock := new(MockStripe)
			stripeMock.On("GetCheckoutSession", tt.session.ID).Return(tt.session, nil)

			svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
			_, err := svc.VerifySession(context.Background(), user, tt.session.ID)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestHandleWebhook_SubscriptionDeleted(t *testing.T) {
	makeEvent := func(t *testing.T, priceID string) stripe.Event {
		sub := map[string]any{
			"id":       "sub_1",
			"customer": map[string]any{"id": "cus_1"},
			"items": map[string]any{
				"data": []map[string]any{
					{"price": map[string]any{"id": priceID}},
				},
			},
		}
		raw, err := json.Marshal(sub)
		require.NoError(t, err)
		return stripe.Event{
			Type: "customer.subscription.deleted",
			Data: &stripe.EventData{Raw: raw},
		}
	}

	t.Run("отмена подписки этого продукта понижает план", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("DowngradeByCustomerID", mock.Anything, "cus_1").Return(nil)
		stripeMock := new(MockStripe)
		stripeMock.On("ConstructWebhookEvent", mock.Anything, "sig").Return(makeEvent(t, "price_monthly"), nil)

		svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
		require.NoError(t, svc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
		repo.AssertExpectations(t)
	})

	t.Run("отмена подписки чужого продукта игнорируется", func(t *testing.T) {
		repo := new(MockRepository)
		stripeMock := new(MockStripe)
		stripeMock.On("ConstructWebhookEvent", mock.Anything, "sig").Return(makeEvent(t, "price_other_product"), nil)

		svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
		require.NoError(t, svc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
		repo.AssertNotCalled(t, "DowngradeByCustomerID", mock.Anything, mock.Anything)
	})
}

func TestHandleWebhook_CheckoutCompleted_Pro(t *testing.T) {
	sess := map[string]any{
		"id":             "cs_pro",
		"payment_status": "paid",
		"metadata":       map[string]string{"fingerprint": "fp-1", "type": models.PurchasePro},
		"customer":       map[string]any{"id": "cus_1"},
		"subscription":   map[string]any{"id": "sub_1"},
	}
	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	event := stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}

	repo := new(MockRepository)
	repo.On("ClaimPaymentSession", mock.Anything, "cs_pro", "fp-1", models.PurchasePro).Return(true, nil)
	repo.On("SetUserPlan", mock.Anything, "fp-1", models.PlanPro, mock.Anything, mock.Anything).Return(nil)
	repo.On("GetAccountByFingerprint", mock.Anything, "fp-1").
		Return(&models.Account{Email: "user@example.com"}, nil)
	repo.On("SetAccountPlan", mock.Anything, "user@example.com", models.PlanPro, mock.Anything).Return(nil)

	stripeMock := new(MockStripe)
	stripeMock.On("ConstructWebhookEvent", mock.Anything, "sig").Return(event, nil)

	svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
	repo.AssertExpectations(t)
}

func TestSelfHeal(t *testing.T) {
	t.Run("активная подписка на цену продукта восстанавливает план", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("SetUserPlan", mock.Anything, "fp-1", models.PlanPro, mock.Anything, mock.Anything).Return(nil)
		repo.On("SetAccountPlan", mock.Anything, "user@example.com", models.PlanPro, mock.Anything).Return(nil)

		stripeMock := new(MockStripe)
		stripeMock.On("FindCustomerByEmail", "user@example.com").Return(&stripe.Customer{ID: "cus_1"}, nil)
		stripeMock.On("FindActiveSubscription", "cus_1", []string{"price_monthly", "price_annual"}).
			Return(&stripe.Subscription{ID: "sub_1"}, nil)

		svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
		healed, err := svc.SelfHeal(context.Background(), "user@example.com", "fp-1")
		require.NoError(t, err)
		assert.True(t, healed)
		repo.AssertExpectations(t)
	})

	t.Run("без покупателя план не меняется", func(t *testing.T) {
		repo := new(MockRepository)
		stripeMock := new(MockStripe)
		stripeMock.On("FindCustomerByEmail", "user@example.com").Return(nil, nil)

		svc := New(repo, stripeMock, testConfig(), "http://localhost:8080", testLogger())
		healed, err := svc.SelfHeal(context.Background(), "user@example.com", "fp-1")
		require.NoError(t, err)
		assert.False(t, healed)
		repo.AssertNotCalled(t, "SetUserPlan", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
