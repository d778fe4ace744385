package vision

import (
	"encoding/json"
	"strings"

	"github.com/dataweaveai/condition-report/internal/models"
)

// parseAnalysis разбирает ответ модели. Модель иногда оборачивает JSON
// в markdown-ограждение, поэтому ограждение срезается до разбора. Если
// JSON разобрать не удалось, текст целиком становится заметкой с
// рейтингом Fair, чтобы отчёт всё равно собрался.
func parseAnalysis(text string) *models.RoomAnalysis {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var analysis models.RoomAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil || analysis.OverallRating == "" {
		return &models.RoomAnalysis{
			OverallRating: models.RatingFair,
			Items: []models.ChecklistItem{{
				Name:   "General Condition",
				Rating: models.RatingFair,
				Notes:  cleaned,
			}},
			Summary: "Automated analysis returned an unstructured response.",
			Flags:   []string{},
		}
	}
	if analysis.Flags == nil {
		analysis.Flags = []string{}
	}
	return &analysis
}

// ErrorAnalysis возвращает заглушку для комнаты, анализ которой не
// удался совсем. Отчёт при этом не прерывается.
func ErrorAnalysis(errMsg string) *models.RoomAnalysis {
	return &models.RoomAnalysis{
		OverallRating: models.RatingNA,
		Items: []models.ChecklistItem{{
			Name:   "General Condition",
			Rating: models.RatingNA,
			Notes:  "Analysis unavailable: " + errMsg,
		}},
		Summary: "This room could not be analyzed. Please review the photos manually.",
		Flags:   []string{"Automated analysis failed for this room"},
	}
}
