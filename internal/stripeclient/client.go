// Package stripeclient оборачивает SDK платёжного провайдера в узкий
// набор вызовов, который использует реконсиляция платежей: создание и
// чтение checkout-сессий, поиск покупателя по почте, поиск активной
// подписки с фильтром по ценам продукта и проверка подписи вебхука.
package stripeclient

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Client обёртка над stripe-go с ключом продукта и секретом вебхука.
type Client struct {
	webhookSecret string
}

// New настраивает глобальный ключ SDK и возвращает клиента.
func New(secretKey, webhookSecret string) *Client {
	stripe.Key = secretKey
	return &Client{webhookSecret: webhookSecret}
}

// CreateCheckoutSession создаёт checkout-сессию.
func (c *Client) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	const op = "stripeclient.CreateCheckoutSession"
	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// GetCheckoutSession возвращает checkout-сессию по идентификатору.
func (c *Client) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	const op = "stripeclient.GetCheckoutSession"
	sess, err := checkoutsession.Get(id, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// FindCustomerByEmail возвращает первого покупателя с такой почтой
// или nil, если покупатель не найден.
func (c *Client) FindCustomerByEmail(email string) (*stripe.Customer, error) {
	const op = "stripeclient.FindCustomerByEmail"
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	iter := customer.List(params)
	for iter.Next() {
		return iter.Customer(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nil, nil
}

// FindActiveSubscription возвращает активную подписку покупателя,
// цена которой принадлежит набору цен ЭТОГО продукта. Подписка на чужую
// цену игнорируется: общий Stripe-аккаунт нескольких продуктов не должен
// давать здесь pro.
func (c *Client) FindActiveSubscription(customerID string, priceIDs []string) (*stripe.Subscription, error) {
	const op = "stripeclient.FindActiveSubscription"
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	iter := subscription.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		if SubscriptionMatchesPrices(sub, priceIDs) {
			return sub, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return nil, nil
}

// ConstructWebhookEvent проверяет подпись вебхука и разбирает событие.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	const op = "stripeclient.ConstructWebhookEvent"
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}

// SubscriptionMatchesPrices сообщает, входит ли хотя бы одна позиция
// подписки в набор цен продукта.
func SubscriptionMatchesPrices(sub *stripe.Subscription, priceIDs []string) bool {
	if sub == nil || sub.Items == nil {
		return false
	}
	for _, item := range sub.Items.Data {
		if item == nil || item.Price == nil {
			continue
		}
		for _, id := range priceIDs {
			if item.Price.ID == id {
				return true
			}
		}
	}
	return false
}
