package models

import "time"

// Виды покупок, которые различает реконсиляция платежей.
const (
	PurchaseSingle = "single"
	PurchasePro    = "pro"
)

// ProcessedSession запись в журнале идемпотентности: одна строка на
// checkout-сессию. Вставка-если-нет по первичному ключу session_id и есть
// тот механизм, который схлопывает гонку verify-запроса и вебхука в
// ровно одно начисление.
type ProcessedSession struct {
	SessionID    string
	Fingerprint  string
	PurchaseType string
	ProcessedAt  time.Time
}
