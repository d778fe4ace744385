package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dataweaveai/condition-report/internal/models"
)

func TestCanGenerate(t *testing.T) {
	tests := []struct {
		name          string
		user          models.UserContext
		wantAllowed   bool
		wantReason    string
		wantRoomCap   int
		wantRemaining int
	}{
		{
			name:        "подписка разрешает без ограничений",
			user:        models.UserContext{Plan: models.PlanPro, ReportsUsed: 100},
			wantAllowed: true,
			wantReason:  ReasonPro,
		},
		{
			name:        "новый пользователь получает пробный отчёт",
			user:        models.UserContext{Plan: models.PlanFree, ReportsUsed: 0},
			wantAllowed: true,
			wantReason:  ReasonFreeTrial,
			wantRoomCap: FreeTrialRoomCap,
		},
		{
			name:          "купленный кредит действует после пробного",
			user:          models.UserContext{Plan: models.PlanFree, ReportsUsed: 1, SingleReportsPurchased: 2},
			wantAllowed:   true,
			wantReason:    ReasonSinglePurchase,
			wantRemaining: 2,
		},
		{
			name:          "последний кредит",
			user:          models.UserContext{Plan: models.PlanFree, ReportsUsed: 2, SingleReportsPurchased: 2},
			wantAllowed:   true,
			wantReason:    ReasonSinglePurchase,
			wantRemaining: 1,
		},
		{
			name:        "лимит исчерпан без покупок",
			user:        models.UserContext{Plan: models.PlanFree, ReportsUsed: 1},
			wantAllowed: false,
			wantReason:  ReasonLimitReached,
		},
		{
			name:        "лимит исчерпан после всех кредитов",
			user:        models.UserContext{Plan: models.PlanFree, ReportsUsed: 3, SingleReportsPurchased: 2},
			wantAllowed: false,
			wantReason:  ReasonLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanGenerate(&tt.user)
			assert.Equal(t, tt.wantAllowed, got.Allowed)
			assert.Equal(t, tt.wantReason, got.Reason)
			assert.Equal(t, tt.wantRoomCap, got.RoomCap)
			assert.Equal(t, tt.wantRemaining, got.Remaining)
		})
	}
}

func TestCanAccess(t *testing.T) {
	email := "owner@example.com"
	report := &models.Report{
		ID:          "rep-1",
		Fingerprint: "fp-owner",
		Email:       &email,
	}

	tests := []struct {
		name  string
		user  *models.UserContext
		share *models.ShareToken
		want  bool
	}{
		{
			name: "владелец отпечатка имеет доступ",
			user: &models.UserContext{Fingerprint: "fp-owner"},
			want: true,
		},
		{
			name: "аккаунт с почтой отчёта имеет доступ с другого устройства",
			user: &models.UserContext{Fingerprint: "fp-other", Email: email, LoggedIn: true},
			want: true,
		},
		{
			name: "почта без входа в аккаунт не дает доступ",
			user: &models.UserContext{Fingerprint: "fp-other", Email: email, LoggedIn: false},
			want: false,
		},
		{
			name: "чужой пользователь не имеет доступа",
			user: &models.UserContext{Fingerprint: "fp-stranger", Email: "other@example.com", LoggedIn: true},
			want: false,
		},
		{
			name: "действующий share-токен дает доступ анониму",
			share: &models.ShareToken{
				ReportID:  "rep-1",
				ExpiresAt: time.Now().UTC().Add(time.Hour),
			},
			want: true,
		},
		{
			name: "истёкший share-токен не дает доступ",
			share: &models.ShareToken{
				ReportID:  "rep-1",
				ExpiresAt: time.Now().UTC().Add(-time.Hour),
			},
			want: false,
		},
		{
			name: "share-токен другого отчёта не дает доступ",
			share: &models.ShareToken{
				ReportID:  "rep-2",
				ExpiresAt: time.Now().UTC().Add(time.Hour),
			},
			want: false,
		},
		{
			name: "без пользователя и токена доступа нет",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(report, tt.user, tt.share))
		})
	}
}
