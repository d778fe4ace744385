// Package entitlement решает, разрешена ли пользователю генерация
// отчёта и доступ к уже существующему отчёту. Решения принимаются по
// свежему контексту пользователя и никогда не кэшируются.
package entitlement

import (
	"time"

	"github.com/dataweaveai/condition-report/internal/models"
)

// Причины решений о генерации.
const (
	ReasonPro            = "pro"
	ReasonFreeTrial      = "free_trial"
	ReasonSinglePurchase = "single_purchase"
	ReasonLimitReached   = "limit_reached"
)

// FreeTrialRoomCap предел комнат в пробном отчёте. Комнаты сверх
// предела молча отбрасываются, а не вызывают отказ.
const FreeTrialRoomCap = 4

// Decision результат проверки права на генерацию отчёта.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason"`
	RoomCap   int    `json:"room_cap,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
}

// CanGenerate проверяет право на генерацию в порядке старшинства:
// подписка, затем нетронутый пробный отчёт, затем разовый кредит.
func CanGenerate(user *models.UserContext) Decision {
	if user.IsPro() {
		return Decision{Allowed: true, Reason: ReasonPro}
	}
	if user.ReportsUsed == 0 {
		return Decision{Allowed: true, Reason: ReasonFreeTrial, RoomCap: FreeTrialRoomCap}
	}
	if remaining := user.SingleReportsPurchased - (user.ReportsUsed - 1); remaining > 0 {
		return Decision{Allowed: true, Reason: ReasonSinglePurchase, Remaining: remaining}
	}
	return Decision{Allowed: false, Reason: ReasonLimitReached}
}

// CanAccess проверяет право на чтение отчёта. Доступ даёт владение
// отпечатком, почта привязанного аккаунта или действующий share-токен
// этого отчёта.
func CanAccess(report *models.Report, user *models.UserContext, share *models.ShareToken) bool {
	if share != nil && share.ReportID == report.ID && share.ExpiresAt.After(time.Now().UTC()) {
		return true
	}
	if user == nil {
		return false
	}
	if report.Fingerprint == user.Fingerprint {
		return true
	}
	if report.Email != nil && user.LoggedIn && *report.Email == user.Email {
		return true
	}
	return false
}
