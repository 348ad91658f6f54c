package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"rfpmanager/internal/handlers"
	"rfpmanager/models"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeProposalHandler(t *testing.T) {
	store := newMockStorage()
	acme := addVendor(store, "Acme", "sales@acme.test", true)
	rfp := addRFP(store, models.StatusInReview)
	p := addProposal(store, rfp.ID, acme.ID, 100, 0)
	p.Analysis = nil
	h := newHandler(store, handlers.Deps{})
	params := map[string]string{"rfpId": rfp.ID}

	w := httptest.NewRecorder()
	h.AnalyzeProposalHandler(w, request(http.MethodPost, "/", `{}`, user, params))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Proposal text is required", decode(t, w, nil).Error)

	w = httptest.NewRecorder()
	h.AnalyzeProposalHandler(w, request(http.MethodPost, "/", `{"proposalText":"offer"}`, user, map[string]string{"rfpId": models.NewID()}))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "RFP not found", decode(t, w, nil).Error)

	// анализ по proposalId сохраняется в предложении
	w = httptest.NewRecorder()
	h.AnalyzeProposalHandler(w, request(http.MethodPost, "/", `{"proposalId":"`+p.ID+`"}`, user, params))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Analysis models.ProposalAnalysis `json:"analysis"`
		Source   string                  `json:"source"`
	}
	decode(t, w, &res)
	require.Equal(t, "fallback", res.Source)
	require.Zero(t, res.Analysis.Score)
	require.NotNil(t, store.proposals[p.ID].Analysis)
	require.Equal(t, "Manual review required", store.proposals[p.ID].Analysis.Summary)

	// предложение другого RFP
	w = httptest.NewRecorder()
	other := addRFP(store, models.StatusInReview)
	h.AnalyzeProposalHandler(w, request(http.MethodPost, "/", `{"proposalId":"`+p.ID+`"}`, user, map[string]string{"rfpId": other.ID}))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Proposal not found", decode(t, w, nil).Error)
}

func TestExecutiveSummaryHandler(t *testing.T) {
	store := newMockStorage()
	acme := addVendor(store, "Acme", "sales@acme.test", true)
	rfp := addRFP(store, models.StatusEvaluating)
	h := newHandler(store, handlers.Deps{})
	params := map[string]string{"rfpId": rfp.ID}

	w := httptest.NewRecorder()
	h.ExecutiveSummaryHandler(w, request(http.MethodGet, "/", "", user, params))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "No proposals found for this RFP", decode(t, w, nil).Error)

	addProposal(store, rfp.ID, acme.ID, 1200, 64)
	w = httptest.NewRecorder()
	h.ExecutiveSummaryHandler(w, request(http.MethodGet, "/", "", user, params))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Summary        string `json:"summary"`
		Source         string `json:"source"`
		RFPTitle       string `json:"rfpTitle"`
		TotalProposals int    `json:"totalProposals"`
		Vendors        []struct {
			Name    string   `json:"name"`
			Company string   `json:"company"`
			Score   *float64 `json:"score"`
		} `json:"vendors"`
	}
	decode(t, w, &res)
	require.Equal(t, "fallback", res.Source)
	require.Contains(t, res.Summary, "Office laptops")
	require.Equal(t, "Office laptops", res.RFPTitle)
	require.Equal(t, 1, res.TotalProposals)
	require.Len(t, res.Vendors, 1)
	require.Equal(t, "Acme", res.Vendors[0].Name)
	require.Equal(t, 64.0, *res.Vendors[0].Score)
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("document", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/extract-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractDocumentHandler(t *testing.T) {
	h := newHandler(newMockStorage(), handlers.Deps{})

	w := httptest.NewRecorder()
	h.ExtractDocumentHandler(w, multipartRequest(t, map[string]string{"mimeType": "text/plain"}, "", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "No document file uploaded", decode(t, w, nil).Error)

	w = httptest.NewRecorder()
	h.ExtractDocumentHandler(w, multipartRequest(t, map[string]string{"mimeType": "image/png"}, "scan.png", []byte("\x89PNG")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Unsupported file type: image/png", decode(t, w, nil).Error)

	// CreateFormFile ставит application/octet-stream, поэтому mimeType обязателен
	w = httptest.NewRecorder()
	h.ExtractDocumentHandler(w, multipartRequest(t, map[string]string{"mimeType": "application/pdf"}, "broken.pdf", []byte("not a pdf")))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = httptest.NewRecorder()
	h.ExtractDocumentHandler(w, multipartRequest(t, map[string]string{"mimeType": "text/plain"}, "brief.txt", []byte("  Need 5 office chairs  ")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Text  string `json:"text"`
		Draft struct {
			Source string `json:"source"`
		} `json:"draft"`
	}
	decode(t, w, &res)
	require.Equal(t, "Need 5 office chairs", res.Text)
	require.Equal(t, "fallback", res.Draft.Source)
}
