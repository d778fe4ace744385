package models

import "time"

// Account представляет учётную запись с почтой и паролем. К одному аккаунту
// может быть привязано несколько отпечатков устройств (таблица account_sessions),
// что даёт доступ к подписке с нескольких устройств.
type Account struct {
	ID               int64
	Email            string
	PasswordHash     string
	Name             string
	Company          string
	Plan             string
	StripeCustomerID *string
	Fingerprint      *string // Последний увиденный отпечаток, для быстрого поиска
	EmailVerified    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Назначения одноразовых токенов аккаунта.
const (
	TokenPurposeVerify = "verify"
	TokenPurposeReset  = "reset"
)

// Сроки жизни одноразовых токенов.
const (
	VerifyTokenTTL = 24 * time.Hour
	ResetTokenTTL  = time.Hour
)

// AccountToken одноразовый токен подтверждения почты или сброса пароля.
// Использование токена гасит все остальные невыданные токены того же
// назначения для того же аккаунта.
type AccountToken struct {
	Token     string
	Email     string
	Purpose   string
	ExpiresAt time.Time
	Consumed  bool
}
