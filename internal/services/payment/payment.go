// Package payment отвечает за продажу отчётов: создание checkout-сессий,
// реконсиляцию оплат по двум независимым путям (клиентская верификация и
// вебхук) и самовосстановление подписки по записям платёжного провайдера.
// Оба пути реконсиляции сходятся в applyCredit, где журнал идемпотентности
// гарантирует ровно одно начисление на сессию.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/dataweaveai/condition-report/internal/config"
	"github.com/dataweaveai/condition-report/internal/models"
	"github.com/dataweaveai/condition-report/internal/services/entitlement"
	"github.com/dataweaveai/condition-report/internal/storage/repository"
	"github.com/dataweaveai/condition-report/internal/stripeclient"
)

// Ошибки верификации оплаты.
var (
	ErrNotPaid   = errors.New("session is not paid")
	ErrForbidden = errors.New("session belongs to another device")
)

// Repository контракт хранилища для начисления покупок.
type Repository interface {
	ClaimPaymentSession(ctx context.Context, sessionID, fingerprint, purchaseType string) (bool, error)
	AddSingleReportCredit(ctx context.Context, fingerprint string) error
	SetUserPlan(ctx context.Context, fingerprint, plan string, stripeCustomerID, stripeSubscriptionID *string) error
	DowngradeByCustomerID(ctx context.Context, stripeCustomerID string) error
	GetAccountByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error)
	SetAccountPlan(ctx context.Context, email, plan string, stripeCustomerID *string) error
}

// StripeClient контракт платёжного провайдера.
type StripeClient interface {
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)
	FindCustomerByEmail(email string) (*stripe.Customer, error)
	FindActiveSubscription(customerID string, priceIDs []string) (*stripe.Subscription, error)
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type Service struct {
	repo    Repository
	stripe  StripeClient
	cfg     config.Stripe
	baseURL string
	log     *slog.Logger
}

func New(repo Repository, stripeClient StripeClient, cfg config.Stripe, baseURL string, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		stripe:  stripeClient,
		cfg:     cfg,
		baseURL: baseURL,
		log:     log,
	}
}

// CreateSingleCheckout создаёт сессию покупки одного отчёта.
func (s *Service) CreateSingleCheckout(ctx context.Context, user *models.UserContext) (string, error) {
	const op = "payment.CreateSingleCheckout"

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.PriceSingle),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.baseURL + "/?payment=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/?payment=cancelled"),
	}
	params.Context = ctx
	params.AddMetadata("fingerprint", user.Fingerprint)
	params.AddMetadata("type", models.PurchaseSingle)
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// CreateProCheckout создаёт сессию оформления подписки. billing выбирает
// месячную или годовую цену, по умолчанию месячную.
func (s *Service) CreateProCheckout(ctx context.Context, user *models.UserContext, billing string) (string, error) {
	const op = "payment.CreateProCheckout"

	price := s.cfg.PriceMonthly
	if billing == "annual" {
		price = s.cfg.PriceAnnual
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(price),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.baseURL + "/?payment=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/?payment=cancelled"),
	}
	params.Context = ctx
	params.AddMetadata("fingerprint", user.Fingerprint)
	params.AddMetadata("type", models.PurchasePro)
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := s.stripe.CreateCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// VerifySession клиентский путь реконсиляции: после редиректа из
// checkout фронтенд передаёт session_id, сервис читает сессию у
// провайдера и начисляет покупку. Сессия чужого устройства отклоняется.
func (s *Service) VerifySession(ctx context.Context, user *models.UserContext, sessionID string) (entitlement.Decision, error) {
	const op = "payment.VerifySession"

	sess, err := s.stripe.GetCheckoutSession(sessionID)
	if err != nil {
		return entitlement.Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return entitlement.Decision{}, fmt.Errorf("%s: %w", op, ErrNotPaid)
	}
	if fp := sess.Metadata["fingerprint"]; fp != "" && fp != user.Fingerprint {
		return entitlement.Decision{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.applyCredit(ctx, sess, user.Fingerprint); err != nil {
		return entitlement.Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	updated := *user
	if sess.Metadata["type"] == models.PurchasePro {
		updated.Plan = models.PlanPro
	} else {
		updated.SingleReportsPurchased++
	}
	return entitlement.CanGenerate(&updated), nil
}

// HandleWebhook серверный путь реконсиляции. Обрабатывает завершённые
// checkout-сессии и отмену подписок; отмена подписки на чужую цену
// (другой продукт того же Stripe-аккаунта) игнорируется.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	const op = "payment.HandleWebhook"

	event, err := s.stripe.ConstructWebhookEvent(payload, sigHeader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil
		}
		fingerprint := sess.Metadata["fingerprint"]
		if fingerprint == "" {
			s.log.Warn("checkout session without fingerprint metadata", "session_id", sess.ID)
			return nil
		}
		if err := s.applyCredit(ctx, &sess, fingerprint); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !stripeclient.SubscriptionMatchesPrices(&sub, s.cfg.SubscriptionPriceIDs()) {
			s.log.Info("ignoring subscription event for foreign price", "subscription_id", sub.ID)
			return nil
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil
		}
		if err := s.repo.DowngradeByCustomerID(ctx, sub.Customer.ID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("subscription cancelled, plan downgraded", "customer_id", sub.Customer.ID)

	default:
		s.log.Debug("ignoring webhook event", "type", event.Type)
	}
	return nil
}

// applyCredit начисляет покупку ровно один раз. Первый вызов по сессии
// захватывает запись в журнале идемпотентности, все последующие видят
// занятую запись и выходят без начисления.
func (s *Service) applyCredit(ctx context.Context, sess *stripe.CheckoutSession, fingerprint string) error {
	const op = "payment.applyCredit"

	purchaseType := sess.Metadata["type"]
	if purchaseType == "" {
		purchaseType = models.PurchaseSingle
	}

	claimed, err := s.repo.ClaimPaymentSession(ctx, sess.ID, fingerprint, purchaseType)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !claimed {
		s.log.Info("payment session already processed", "session_id", sess.ID)
		return nil
	}

	switch purchaseType {
	case models.PurchasePro:
		var customerID, subscriptionID *string
		if sess.Customer != nil && sess.Customer.ID != "" {
			customerID = &sess.Customer.ID
		}
		if sess.Subscription != nil && sess.Subscription.ID != "" {
			subscriptionID = &sess.Subscription.ID
		}
		if err := s.repo.SetUserPlan(ctx, fingerprint, models.PlanPro, customerID, subscriptionID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		account, err := s.repo.GetAccountByFingerprint(ctx, fingerprint)
		if err != nil && !errors.Is(err, repository.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if account != nil {
			if err := s.repo.SetAccountPlan(ctx, account.Email, models.PlanPro, customerID); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		s.log.Info("pro plan activated", "fingerprint", fingerprint, "session_id", sess.ID)

	default:
		if err := s.repo.AddSingleReportCredit(ctx, fingerprint); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info("single report credit added", "fingerprint", fingerprint, "session_id", sess.ID)
	}
	return nil
}

// SelfHeal восстанавливает подписку по записям платёжного провайдера:
// если у покупателя с этой почтой есть активная подписка на цену ЭТОГО
// продукта, план устройства и аккаунта поднимается до pro. Вызывается
// при входе и регистрации, когда локальный план free. Ошибки провайдера
// здесь не фатальны и только логируются вызывающей стороной.
func (s *Service) SelfHeal(ctx context.Context, email, fingerprint string) (bool, error) {
	const op = "payment.SelfHeal"

	customer, err := s.stripe.FindCustomerByEmail(email)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if customer == nil {
		return false, nil
	}

	sub, err := s.stripe.FindActiveSubscription(customer.ID, s.cfg.SubscriptionPriceIDs())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return false, nil
	}

	customerID := customer.ID
	subscriptionID := sub.ID
	if err := s.repo.SetUserPlan(ctx, fingerprint, models.PlanPro, &customerID, &subscriptionID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetAccountPlan(ctx, email, models.PlanPro, &customerID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan restored from provider records", "email", email)
	return true, nil
}
