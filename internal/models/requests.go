package models

// AnalyzeRoomRequest комната с загруженными фотографиями в запросе анализа.
type AnalyzeRoomRequest struct {
	RoomName string              `json:"room_name" validate:"required"`
	Photos   []UploadedPhotoItem `json:"photos" validate:"required,min=1"`
}

// UploadedPhotoItem описание одного загруженного файла.
type UploadedPhotoItem struct {
	Filename string `json:"filename"`
	Path     string `json:"path" validate:"required"`
	Size     int    `json:"size"`
}

// AnalyzeRequest используется для приёма данных из JSON-запроса на анализ.
type AnalyzeRequest struct {
	Rooms        []AnalyzeRoomRequest `json:"rooms" validate:"required,min=1,dive"`
	PropertyInfo PropertyInfo         `json:"property_info"`
	ReportType   string               `json:"report_type" validate:"omitempty,oneof=Move-In Move-Out Periodic"`
}

// SignatureRequest запрос на прикрепление подписи к отчёту.
// Ожидается data-url с PNG-изображением подписи.
type SignatureRequest struct {
	Signature string `json:"signature" validate:"required"`
}

// EmailReportRequest запрос на отправку отчёта на почту.
type EmailReportRequest struct {
	ReportID string `json:"report_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// VerifyPaymentRequest запрос клиентской верификации оплаты после
// редиректа из checkout.
type VerifyPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CheckoutProRequest выбор расчётного периода подписки.
type CheckoutProRequest struct {
	Billing string `json:"billing" validate:"omitempty,oneof=monthly annual"`
}

// SignupRequest запрос на создание аккаунта.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
}

// LoginRequest запрос на вход в аккаунт.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateAccountRequest запрос на обновление профиля.
type UpdateAccountRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
}

// VerifyEmailRequest подтверждение почты одноразовым токеном.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResetRequest запрос письма для сброса пароля.
type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetConfirmRequest установка нового пароля по токену сброса.
type ResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// EmailJob задание на доставку отчёта почтой, публикуемое в очередь
// и потребляемое сервисом report-sender.
type EmailJob struct {
	ReportID string `json:"report_id"`
	Email    string `json:"email"`
}
