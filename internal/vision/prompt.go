package vision

import "fmt"

// ChecklistItems фиксированный порядок позиций осмотра в отчёте.
var ChecklistItems = []string{
	"Walls",
	"Ceiling",
	"Flooring",
	"Windows",
	"Doors",
	"Lighting/Electrical",
	"Cleanliness",
	"Fixtures & Appliances",
}

func inspectionInstruction(inspectionType string) string {
	switch inspectionType {
	case "Move-Out":
		return "This is a MOVE-OUT inspection. Pay close attention to damage beyond normal wear and tear, cleanliness issues, and anything a landlord might charge against a deposit."
	case "Periodic":
		return "This is a PERIODIC inspection. Note maintenance issues, safety concerns, and changes in condition that should be addressed."
	default:
		return "This is a MOVE-IN inspection. Document the existing condition thoroughly so the tenant is not later blamed for pre-existing issues."
	}
}

func buildPrompt(roomName, inspectionType string) string {
	return fmt.Sprintf(`You are a professional property inspector. Analyze the attached photos of the room "%s".

%s

For each of the following checklist items, assign a rating of "Good", "Fair", "Poor", or "N/A" (if not visible in the photos) and write a brief note:
- Walls
- Ceiling
- Flooring
- Windows
- Doors
- Lighting/Electrical
- Cleanliness
- Fixtures & Appliances

Also provide an overall rating for the room ("Good", "Fair", or "Poor"), a 2-3 sentence summary of the room's condition, and a list of flags: specific issues that need attention (empty list if none).

Respond ONLY with JSON in exactly this format:
{
  "overall_rating": "Good",
  "items": [{"name": "Walls", "rating": "Good", "notes": "..."}],
  "summary": "...",
  "flags": ["..."]
}`, roomName, inspectionInstruction(inspectionType))
}
