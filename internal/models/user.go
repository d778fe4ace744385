// Package models содержит доменные структуры сервиса condition-report:
// пользователей, аккаунты, отчёты и платёжные сущности, а также
// вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Планы доступа пользователя.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// User представляет запись пользователя, привязанную к отпечатку устройства.
// Счётчики использования и покупок ведутся именно здесь: пробный отчёт
// и разовые кредиты расходуются на устройство, а не на аккаунт.
type User struct {
	Fingerprint            string     // Опознавательный ключ устройства
	Email                  *string    // Почта привязанного аккаунта, если есть
	Plan                   string     // free или pro
	ReportsUsed            int        // Сколько отчётов сгенерировано (не убывает)
	SingleReportsPurchased int        // Сколько разовых кредитов куплено
	StripeCustomerID       *string    // Идентификатор покупателя у платёжного провайдера
	StripeSubscriptionID   *string    // Идентификатор активной подписки, если есть
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// UserContext объединяет запись устройства и привязанный аккаунт в единый
// контекст запроса. План и stripe customer id берутся из аккаунта, когда он
// привязан; счётчики — всегда из записи устройства.
type UserContext struct {
	Fingerprint            string
	Email                  string
	Plan                   string
	ReportsUsed            int
	SingleReportsPurchased int
	StripeCustomerID       string
	LoggedIn               bool
	AccountName            string
	AccountCompany         string
}

// IsPro сообщает, действует ли подписка.
func (u *UserContext) IsPro() bool {
	return u.Plan == PlanPro
}
