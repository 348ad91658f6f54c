package export

import (
	"fmt"
	"strings"

	"rfpmanager/models"

	"github.com/xuri/excelize/v2"
)

const proposalsSheet = "Proposals"

var proposalColumns = []string{"Vendor", "Company", "Email", "Price", "Currency", "Status", "Score", "Summary", "Submitted"}

// ProposalsXLSX таблица предложений по RFP, одна строка на предложение.
func ProposalsXLSX(rfp *models.RFP, proposals []models.Proposal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", proposalsSheet); err != nil {
		return nil, err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Family: "Arial"},
	})
	if err != nil {
		return nil, fmt.Errorf("title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Family: "Arial",
			Color:  "#FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	f.SetCellValue(proposalsSheet, "A1", rfp.Title)
	f.SetCellStyle(proposalsSheet, "A1", "A1", titleStyle)
	f.SetCellValue(proposalsSheet, "A2", "Budget")
	f.SetCellValue(proposalsSheet, "B2", rfp.Budget.Amount)
	f.SetCellValue(proposalsSheet, "C2", rfp.Budget.Currency)

	const headerRow = 4
	header := make([]interface{}, len(proposalColumns))
	for i, c := range proposalColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(proposalsSheet, fmt.Sprintf("A%d", headerRow), &header); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(proposalColumns))
	f.SetCellStyle(proposalsSheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, headerRow), headerStyle)

	for i, p := range proposals {
		var name, company, email string
		if p.Vendor != nil {
			name, company, email = p.Vendor.Name, p.Vendor.Company, p.Vendor.Email
		}
		var score interface{} = ""
		summary := ""
		if p.Analysis != nil {
			score = p.Analysis.Score
			summary = p.Analysis.Summary
		}
		row := []interface{}{
			name, company, email,
			p.Price.Amount, p.Price.Currency,
			string(p.Status), score, summary,
			p.SubmittedAt.Format("2006-01-02 15:04"),
		}
		cell := fmt.Sprintf("A%d", headerRow+1+i)
		if err := f.SetSheetRow(proposalsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	widths := map[string]float64{"A": 24, "B": 24, "C": 28, "D": 12, "E": 10, "F": 14, "G": 8, "H": 60, "I": 18}
	for col, w := range widths {
		if err := f.SetColWidth(proposalsSheet, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename безопасное имя файла для Content-Disposition
func Filename(prefix, id, ext string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, strings.ToLower(id))
	return fmt.Sprintf("%s_%s.%s", prefix, clean, ext)
}
