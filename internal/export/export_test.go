package export_test

import (
	"bytes"
	"testing"
	"time"

	"rfpmanager/internal/export"
	"rfpmanager/models"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sampleRFP() *models.RFP {
	r := models.NewRFP("Office Laptops – 2024", "20 laptops, 16GB RAM, café delivery", "u1", now)
	r.ID = "5f1d9c3b2a1e4f6789abc123"
	r.Deadline = now.AddDate(0, 0, 30)
	r.Budget = models.Money{Amount: 50000, Currency: "USD"}
	r.Requirements = []models.Requirement{{Description: "16GB RAM", IsRequired: true, Priority: models.PriorityHigh}}
	r.MarkVendor("5f1d9c3b2a1e4f6789abc999", models.VendorSent, now)
	r.Vendors[0].Vendor = &models.VendorSummary{Name: "Acme", Email: "sales@acme.test"}
	return r
}

func TestRFPPDF(t *testing.T) {
	out, err := export.RFPPDF(sampleRFP(), now)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestProposalsXLSX(t *testing.T) {
	proposals := []models.Proposal{
		{
			Vendor:      &models.VendorSummary{Name: "Acme", Company: "Acme Inc", Email: "sales@acme.test"},
			Price:       models.Money{Amount: 45000, Currency: "USD"},
			Status:      models.ProposalReceived,
			Analysis:    &models.ProposalAnalysis{Score: 80, Summary: "Good"},
			SubmittedAt: now,
		},
		{
			VendorID:    "v2",
			Price:       models.Money{Amount: 40000, Currency: "USD"},
			Status:      models.ProposalReceived,
			SubmittedAt: now,
		},
	}

	out, err := export.ProposalsXLSX(sampleRFP(), proposals)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Proposals")
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, "Office Laptops – 2024", rows[0][0])
	require.Equal(t, []string{"Vendor", "Company", "Email", "Price", "Currency", "Status", "Score", "Summary", "Submitted"}, rows[3])
	require.Equal(t, "Acme", rows[4][0])
	require.Equal(t, "45000", rows[4][3])
	require.Equal(t, "80", rows[4][6])
	require.Equal(t, "2024-05-01 10:00", rows[4][8])
	require.Equal(t, "40000", rows[5][3])
}

func TestFilename(t *testing.T) {
	require.Equal(t, "rfp_5f1d9c3b2a1e4f6789abc123.pdf", export.Filename("rfp", "5F1D9C3B2A1E4F6789ABC123", "pdf"))
	require.Equal(t, "proposals_abc.xlsx", export.Filename("proposals", "a/b\"c", "xlsx"))
}
