package models

import "time"

// Типы инспекций.
const (
	ReportTypeMoveIn   = "Move-In"
	ReportTypeMoveOut  = "Move-Out"
	ReportTypePeriodic = "Periodic"
)

// Оценки состояния, которые возвращает vision-модель.
const (
	RatingGood = "Good"
	RatingFair = "Fair"
	RatingPoor = "Poor"
	RatingNA   = "N/A"
)

// PropertyInfo структурированные сведения об объекте недвижимости.
type PropertyInfo struct {
	Address      string `json:"address,omitempty"`
	Unit         string `json:"unit,omitempty"`
	TenantName   string `json:"tenant_name,omitempty"`
	LandlordName string `json:"landlord_name,omitempty"`
}

// ChecklistItem одна позиция чек-листа комнаты с оценкой и заметками.
type ChecklistItem struct {
	Name   string `json:"name"`
	Rating string `json:"rating"`
	Notes  string `json:"notes"`
}

// RoomAnalysis структурированный ответ vision-модели по одной комнате.
type RoomAnalysis struct {
	OverallRating string          `json:"overall_rating"`
	Items         []ChecklistItem `json:"items"`
	Summary       string          `json:"summary"`
	Flags         []string        `json:"flags"`
}

// RoomResult результат анализа комнаты внутри отчёта: имя, разбор модели
// и пути к фотографиям, попавшим в PDF.
type RoomResult struct {
	Name       string       `json:"name"`
	Analysis   RoomAnalysis `json:"analysis"`
	PhotoPaths []string     `json:"photo_paths,omitempty"`
	PhotoCount int          `json:"photo_count"`
}

// Report сгенерированный отчёт о состоянии объекта. После создания
// неизменяем; единственное исключение — более поздняя подпись, которая
// перегенерирует PDF-артефакт на том же месте.
type Report struct {
	ID           string       `json:"id"`
	Fingerprint  string       `json:"fingerprint"`
	Email        *string      `json:"email,omitempty"`
	ReportType   string       `json:"report_type"`
	PropertyInfo PropertyInfo `json:"property_info"`
	Rooms        []RoomResult `json:"rooms"`
	PDFPath      string       `json:"pdf_path"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ReportListItem краткая запись отчёта для списка на статусе пользователя.
type ReportListItem struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Address    string `json:"address"`
	ReportType string `json:"report_type"`
}

// ShareToken срок действия share-ссылки.
const ShareTokenTTL = 7 * 24 * time.Hour

// ShareToken выдаёт доступ на чтение PDF ровно одного отчёта без проверки
// личности, до истечения срока. Отзыв не предусмотрен — только истечение.
type ShareToken struct {
	Token       string
	ReportID    string
	Fingerprint string
	ExpiresAt   time.Time
}
