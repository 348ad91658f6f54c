package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"rfpmanager/models"

	"github.com/jung-kurt/gofpdf"
)

const dateLayout = "02-Jan-2006"

// RFPPDF печатная версия RFP: реквизиты, требования, поставщики и история.
func RFPPDF(rfp *models.RFP, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(rfp.Title, true)
	pdf.SetCreationDate(now)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("RFP %s - page %d/{nb}", rfp.ID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetMargins(10, 10, 10)

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(190, 9, tr(rfp.Title), "", "", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(95, 6, fmt.Sprintf("Status: %s", rfp.Status))
	pdf.Cell(95, 6, fmt.Sprintf("Deadline: %s", rfp.Deadline.Format(dateLayout)))
	pdf.Ln(6)
	pdf.Cell(95, 6, fmt.Sprintf("Budget: %.2f %s", rfp.Budget.Amount, rfp.Budget.Currency))
	if rfp.ProjectTimeline != "" {
		pdf.Cell(95, 6, tr("Timeline: "+rfp.ProjectTimeline))
	}
	pdf.Ln(10)

	section(pdf, "Description")
	pdf.MultiCell(190, 5, tr(rfp.Description), "", "", false)
	pdf.Ln(4)

	if len(rfp.Requirements) > 0 {
		section(pdf, "Requirements")
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(130, 7, "Requirement", "1", 0, "L", true, 0, "")
		pdf.CellFormat(30, 7, "Priority", "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, 7, "Required", "1", 1, "C", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, r := range rfp.Requirements {
			required := "no"
			if r.IsRequired {
				required = "yes"
			}
			pdf.CellFormat(130, 7, tr(fit(r.Description, 75)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 7, string(r.Priority), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 7, required, "1", 1, "C", false, 0, "")
		}
		pdf.Ln(4)
	}

	if len(rfp.Vendors) > 0 {
		section(pdf, "Vendors")
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(100, 7, "Vendor", "1", 0, "L", true, 0, "")
		pdf.CellFormat(40, 7, "Status", "1", 0, "C", true, 0, "")
		pdf.CellFormat(50, 7, "Sent", "1", 1, "C", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, v := range rfp.Vendors {
			name := v.VendorID
			if v.Vendor != nil {
				name = v.Vendor.Name + " <" + v.Vendor.Email + ">"
			}
			sent := "-"
			if v.SentAt != nil {
				sent = v.SentAt.Format(dateLayout)
			}
			pdf.CellFormat(100, 7, tr(fit(name, 55)), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 7, string(v.Status), "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 7, sent, "1", 1, "C", false, 0, "")
		}
		pdf.Ln(4)
	}

	if len(rfp.Timeline) > 0 {
		section(pdf, "History")
		pdf.SetFont("Arial", "", 9)
		for _, e := range rfp.Timeline {
			pdf.MultiCell(190, 5, tr(fmt.Sprintf("%s  %s: %s", e.Date.Format("02-Jan-2006 15:04"), e.Event, e.Description)), "", "", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(190, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
}

// fit обрезает строку под ширину ячейки
func fit(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
