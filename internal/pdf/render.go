// Package pdf собирает PDF-отчёт о состоянии объекта: титул, сведения
// об объекте, по секции на комнату с фотографиями и чек-листом, блок
// подписи и дисклеймер.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/dataweaveai/condition-report/internal/models"
)

const (
	pageWidth  = 210.0
	marginX    = 15.0
	contentW   = pageWidth - 2*marginX
	maxPhotos  = 3
)

// Renderer собирает PDF-артефакты отчётов. signatureDir каталог, где
// лежат PNG-подписи с именем {reportID}_sig.png.
type Renderer struct {
	signatureDir string
}

func New(signatureDir string) *Renderer {
	return &Renderer{signatureDir: signatureDir}
}

// Render собирает PDF отчёта и возвращает его байты.
func (r *Renderer) Render(report *models.Report) ([]byte, error) {
	const op = "pdf.Render"

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(marginX, 15, marginX)
	doc.SetAutoPageBreak(true, 20)
	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(150, 150, 150)
		doc.CellFormat(0, 10, fmt.Sprintf("Report %s  |  Page %d", report.ID, doc.PageNo()),
			"", 0, "C", false, 0, "")
	})
	doc.AddPage()

	r.renderHeader(doc, report)
	r.renderPropertyInfo(doc, report)
	for _, room := range report.Rooms {
		r.renderRoom(doc, &room)
	}
	r.renderSignature(doc, report)
	r.renderDisclaimer(doc)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

// RenderToFile собирает PDF и записывает его по указанному пути.
func (r *Renderer) RenderToFile(report *models.Report, path string) error {
	const op = "pdf.RenderToFile"

	data, err := r.Render(report)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Renderer) renderHeader(doc *fpdf.Fpdf, report *models.Report) {
	doc.SetFont("Helvetica", "B", 22)
	doc.SetTextColor(30, 30, 30)
	doc.CellFormat(0, 12, "Property Condition Report", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 12)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 8, fmt.Sprintf("%s Inspection  |  %s",
		report.ReportType, report.CreatedAt.Format("January 2, 2006")), "", 1, "C", false, 0, "")
	doc.Ln(4)
}

func (r *Renderer) renderPropertyInfo(doc *fpdf.Fpdf, report *models.Report) {
	info := report.PropertyInfo
	rows := [][2]string{
		{"Address", info.Address},
		{"Unit", info.Unit},
		{"Tenant", info.TenantName},
		{"Landlord", info.LandlordName},
	}

	doc.SetFillColor(245, 245, 245)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		doc.SetFont("Helvetica", "B", 10)
		doc.SetTextColor(60, 60, 60)
		doc.CellFormat(35, 8, row[0], "1", 0, "L", true, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(contentW-35, 8, row[1], "1", 1, "L", false, 0, "")
	}
	doc.Ln(6)
}

func (r *Renderer) renderRoom(doc *fpdf.Fpdf, room *models.RoomResult) {
	if doc.GetY() > 220 {
		doc.AddPage()
	}

	doc.SetFont("Helvetica", "B", 14)
	doc.SetTextColor(30, 30, 30)
	doc.CellFormat(contentW-40, 9, room.Name, "", 0, "L", false, 0, "")

	red, green, blue := ratingColor(room.Analysis.OverallRating)
	doc.SetFont("Helvetica", "B", 11)
	doc.SetTextColor(red, green, blue)
	doc.CellFormat(40, 9, "Overall: "+room.Analysis.OverallRating, "", 1, "R", false, 0, "")

	doc.SetDrawColor(200, 200, 200)
	doc.Line(marginX, doc.GetY(), pageWidth-marginX, doc.GetY())
	doc.Ln(2)

	r.renderRoomPhotos(doc, room)

	if room.Analysis.Summary != "" {
		doc.SetFont("Helvetica", "", 10)
		doc.SetTextColor(60, 60, 60)
		doc.MultiCell(contentW, 5, room.Analysis.Summary, "", "L", false)
		doc.Ln(2)
	}

	r.renderChecklist(doc, room.Analysis.Items)

	if len(room.Analysis.Flags) > 0 {
		doc.SetFont("Helvetica", "B", 10)
		doc.SetTextColor(180, 60, 40)
		doc.CellFormat(0, 6, "Flags:", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		for _, flag := range room.Analysis.Flags {
			doc.MultiCell(contentW, 5, "  - "+flag, "", "L", false)
		}
	}
	doc.Ln(6)
}

func (r *Renderer) renderRoomPhotos(doc *fpdf.Fpdf, room *models.RoomResult) {
	paths := room.PhotoPaths
	if len(paths) > maxPhotos {
		paths = paths[:maxPhotos]
	}
	shown := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			shown = append(shown, p)
		}
	}
	if len(shown) == 0 {
		return
	}

	gap := 3.0
	photoW := (contentW - gap*float64(len(shown)-1)) / float64(len(shown))
	photoH := photoW * 0.75
	if photoH > 60 {
		photoH = 60
	}
	startY := doc.GetY()
	x := marginX
	for _, p := range shown {
		doc.ImageOptions(p, x, startY, photoW, photoH, false,
			fpdf.ImageOptions{ReadDpi: true}, 0, "")
		x += photoW + gap
	}
	doc.SetY(startY + photoH + 3)
}

func (r *Renderer) renderChecklist(doc *fpdf.Fpdf, items []models.ChecklistItem) {
	if len(items) == 0 {
		return
	}

	doc.SetFont("Helvetica", "B", 9)
	doc.SetTextColor(255, 255, 255)
	doc.SetFillColor(70, 70, 70)
	doc.CellFormat(50, 7, "Item", "1", 0, "L", true, 0, "")
	doc.CellFormat(20, 7, "Rating", "1", 0, "C", true, 0, "")
	doc.CellFormat(contentW-70, 7, "Notes", "1", 1, "L", true, 0, "")

	doc.SetFont("Helvetica", "", 9)
	for i, item := range items {
		fill := i%2 == 1
		doc.SetFillColor(248, 248, 248)

		note := item.Notes
		if len(note) > 110 {
			note = note[:107] + "..."
		}

		doc.SetTextColor(40, 40, 40)
		doc.CellFormat(50, 7, item.Name, "1", 0, "L", fill, 0, "")
		red, green, blue := ratingColor(item.Rating)
		doc.SetTextColor(red, green, blue)
		doc.CellFormat(20, 7, item.Rating, "1", 0, "C", fill, 0, "")
		doc.SetTextColor(40, 40, 40)
		doc.CellFormat(contentW-70, 7, note, "1", 1, "L", fill, 0, "")
	}
	doc.Ln(3)
}

func (r *Renderer) renderSignature(doc *fpdf.Fpdf, report *models.Report) {
	if doc.GetY() > 230 {
		doc.AddPage()
	}

	doc.SetFont("Helvetica", "B", 12)
	doc.SetTextColor(30, 30, 30)
	doc.CellFormat(0, 8, "Tenant Signature", "", 1, "L", false, 0, "")

	sigPath := fmt.Sprintf("%s/%s_sig.png", r.signatureDir, report.ID)
	if _, err := os.Stat(sigPath); err == nil {
		doc.ImageOptions(sigPath, marginX, doc.GetY(), 70, 25, false,
			fpdf.ImageOptions{ReadDpi: true}, 0, "")
		doc.SetY(doc.GetY() + 27)
		doc.SetFont("Helvetica", "", 9)
		doc.SetTextColor(90, 90, 90)
		doc.CellFormat(0, 5, "Signed on "+time.Now().Format("January 2, 2006"), "", 1, "L", false, 0, "")
	} else {
		doc.Ln(14)
		doc.SetDrawColor(120, 120, 120)
		doc.Line(marginX, doc.GetY(), marginX+80, doc.GetY())
		doc.Line(marginX+100, doc.GetY(), marginX+150, doc.GetY())
		doc.SetFont("Helvetica", "", 9)
		doc.SetTextColor(90, 90, 90)
		doc.CellFormat(100, 6, "Signature", "", 0, "L", false, 0, "")
		doc.CellFormat(50, 6, "Date", "", 1, "L", false, 0, "")
	}
	doc.Ln(6)
}

func (r *Renderer) renderDisclaimer(doc *fpdf.Fpdf) {
	doc.SetFont("Helvetica", "I", 8)
	doc.SetTextColor(130, 130, 130)
	doc.MultiCell(contentW, 4,
		"This report was generated from photographs using automated visual analysis. "+
			"Ratings reflect conditions visible in the provided photos only and do not "+
			"constitute a professional inspection. Both parties should review the report "+
			"and note any disagreements in writing.", "", "L", false)
}

func ratingColor(rating string) (int, int, int) {
	switch rating {
	case models.RatingGood:
		return 34, 139, 34
	case models.RatingFair:
		return 218, 165, 32
	case models.RatingPoor:
		return 200, 40, 40
	default:
		return 130, 130, 130
	}
}
