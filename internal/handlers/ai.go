package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"rfpmanager/db"
	"rfpmanager/internal/ai"
	"rfpmanager/models"
)

const maxDocumentSize = 10 << 20

type analyzeRequest struct {
	ProposalText string `json:"proposalText"`
	ProposalID   string `json:"proposalId"`
}

// AnalyzeProposalHandler POST /api/ai/analyze-proposal/{rfpId}
// Если передан proposalId, анализ сохраняется в предложении.
func (h *Handler) AnalyzeProposalHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to analyze proposal")
		return
	}
	var req analyzeRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to analyze proposal")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	var proposal *models.Proposal
	if req.ProposalID != "" {
		id := models.NormalizeID(req.ProposalID)
		if models.IsValidID(id) {
			proposal, err = h.Store.GetProposal(ctx, id)
		}
		if !models.IsValidID(id) || errors.Is(err, db.ErrNotFound) || (proposal != nil && proposal.RFPID != rfpID) {
			writeError(w, http.StatusNotFound, "Proposal not found", nil)
			return
		}
		if err != nil {
			h.respondError(w, err, "Failed to analyze proposal")
			return
		}
		if strings.TrimSpace(req.ProposalText) == "" {
			req.ProposalText = proposal.ProposalText
		}
	}
	if strings.TrimSpace(req.ProposalText) == "" {
		writeError(w, http.StatusBadRequest, "Proposal text is required", nil)
		return
	}

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to analyze proposal")
		return
	}

	res := h.AI.AnalyzeProposal(ctx, req.ProposalText, rfp)
	if proposal != nil {
		analysis := res.Analysis
		proposal.Analysis = &analysis
		if err := h.Store.UpdateProposal(ctx, proposal); err != nil {
			h.respondError(w, err, "Failed to analyze proposal")
			return
		}
	}

	writeData(w, http.StatusOK, res)
}

type vendorScore struct {
	Name    string   `json:"name"`
	Company string   `json:"company"`
	Score   *float64 `json:"score"`
}

type executiveSummaryResponse struct {
	ai.SummaryResult
	RFPTitle       string        `json:"rfpTitle"`
	TotalProposals int           `json:"totalProposals"`
	Vendors        []vendorScore `json:"vendors"`
}

// ExecutiveSummaryHandler GET /api/ai/executive-summary/{rfpId}
func (h *Handler) ExecutiveSummaryHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to generate executive summary")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, proposals, err := h.loadProposals(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to generate executive summary")
		return
	}
	if len(proposals) == 0 {
		writeError(w, http.StatusNotFound, "No proposals found for this RFP", nil)
		return
	}

	vendors := make([]vendorScore, 0, len(proposals))
	for _, p := range proposals {
		var vs vendorScore
		if p.Vendor != nil {
			vs.Name, vs.Company = p.Vendor.Name, p.Vendor.Company
		}
		if p.Analysis != nil {
			score := p.Analysis.Score
			vs.Score = &score
		}
		vendors = append(vendors, vs)
	}

	writeData(w, http.StatusOK, executiveSummaryResponse{
		SummaryResult:  h.AI.ExecutiveSummary(ctx, rfp, proposals),
		RFPTitle:       rfp.Title,
		TotalProposals: len(proposals),
		Vendors:        vendors,
	})
}

type extractResponse struct {
	Text  string         `json:"text"`
	Draft ai.DraftResult `json:"draft"`
}

// ExtractDocumentHandler POST /api/ai/extract-document, multipart: document + mimeType
func (h *Handler) ExtractDocumentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize+(1<<20))
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		writeError(w, http.StatusBadRequest, "No document file uploaded", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No document file uploaded", nil)
		return
	}
	defer file.Close()

	if header.Size > maxDocumentSize {
		writeError(w, http.StatusBadRequest, "File is too large (max 10MB)", nil)
		return
	}
	mimeType := strings.TrimSpace(r.FormValue("mimeType"))
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if mimeType == "" {
		writeError(w, http.StatusBadRequest, "MIME type is required", nil)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxDocumentSize+1))
	if err != nil {
		h.respondError(w, err, "Failed to read document")
		return
	}

	text, err := ai.ExtractText(data, mimeType)
	if errors.Is(err, ai.ErrUnsupportedType) {
		writeError(w, http.StatusBadRequest, "Unsupported file type: "+mimeType, nil)
		return
	}
	if err != nil {
		h.Logger.Printf("extract %s (%s): %v", header.Filename, mimeType, err)
		writeError(w, http.StatusUnprocessableEntity, "Failed to extract text from document", nil)
		return
	}
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "Document contains no text", nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	writeData(w, http.StatusOK, extractResponse{Text: text, Draft: h.AI.DraftRFP(ctx, text)})
}
