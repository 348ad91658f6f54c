package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"rfpmanager/db"
	"rfpmanager/internal/ai"
	"rfpmanager/models"
)

type submitProposalRequest struct {
	VendorID     string              `json:"vendorId"`
	ProposalText string              `json:"proposalText" validate:"required"`
	Price        ai.Amount           `json:"price"`
	Currency     string              `json:"currency" validate:"omitempty,len=3"`
	Attachments  []models.Attachment `json:"attachments" validate:"dive"`
}

// SubmitProposalHandler POST /api/rfp/{rfpId}/proposals
// Поставщик подает от своего имени, остальные указывают vendorId.
func (h *Handler) SubmitProposalHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to submit proposal")
		return
	}
	var req submitProposalRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to submit proposal")
		return
	}

	user := identity(r)
	vendorID := models.NormalizeID(req.VendorID)
	if user.Role == models.RoleVendor {
		if user.VendorID == "" {
			writeError(w, http.StatusForbidden, "Account is not linked to a vendor", nil)
			return
		}
		vendorID = user.VendorID
	}
	if !models.IsValidID(vendorID) {
		writeError(w, http.StatusBadRequest, "Valid vendorId is required", nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to submit proposal")
		return
	}
	if rfp.IsClosed() {
		writeError(w, http.StatusBadRequest, "RFP is closed for proposals", nil)
		return
	}
	vendor, err := h.loadVendor(ctx, vendorID)
	if err != nil {
		h.respondError(w, err, "Failed to submit proposal")
		return
	}

	now := h.now()
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = rfp.Budget.Currency
	}
	attachments := req.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	p := &models.Proposal{
		ID:           models.NewID(),
		RFPID:        rfp.ID,
		VendorID:     vendor.ID,
		Vendor:       vendor.Summary(),
		ProposalText: req.ProposalText,
		Price:        models.Money{Amount: float64(req.Price), Currency: currency},
		Status:       models.ProposalReceived,
		Notes:        []models.Note{},
		Attachments:  attachments,
		SubmittedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	analysis := h.AI.AnalyzeProposal(ctx, req.ProposalText, rfp).Analysis
	p.Analysis = &analysis

	if err := h.Store.CreateProposal(ctx, p); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			err = newAPIError(http.StatusConflict, "Proposal already submitted for this vendor")
		}
		h.respondError(w, err, "Failed to submit proposal")
		return
	}

	rfp.MarkVendor(vendor.ID, models.VendorSubmitted, now)
	rfp.AddEvent(models.EventProposal, "Proposal submitted by "+vendor.Name, user.ID, now)
	if err := h.Store.UpdateRFP(ctx, rfp); err != nil {
		// предложение уже сохранено, историю RFP не откатываем
		h.Logger.Printf("update rfp %s after proposal %s: %v", rfp.ID, p.ID, err)
	}

	writeData(w, http.StatusCreated, p)
}

// GetProposalsHandler GET /api/rfp/{rfpId}/proposals
func (h *Handler) GetProposalsHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to get proposals")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	_, proposals, err := h.loadProposals(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to get proposals")
		return
	}

	writeData(w, http.StatusOK, proposals)
}

type updateProposalStatusRequest struct {
	Status models.ProposalStatus `json:"status" validate:"required"`
	Note   string                `json:"note"`
}

// UpdateProposalStatusHandler PUT /api/proposals/{proposalId}/status, только admin
func (h *Handler) UpdateProposalStatusHandler(w http.ResponseWriter, r *http.Request) {
	proposalID, err := idParam(r, "proposalId", "proposal")
	if err != nil {
		h.respondError(w, err, "Failed to update proposal status")
		return
	}
	var req updateProposalStatusRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to update proposal status")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status: "+string(req.Status), nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	p, err := h.Store.GetProposal(ctx, proposalID)
	if errors.Is(err, db.ErrNotFound) {
		err = newAPIError(http.StatusNotFound, "Proposal not found")
	}
	if err != nil {
		h.respondError(w, err, "Failed to update proposal status")
		return
	}
	if !models.CanTransitionProposal(p.Status, req.Status) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid status transition from %s to %s", p.Status, req.Status), nil)
		return
	}

	now := h.now()
	p.Status = req.Status
	if note := strings.TrimSpace(req.Note); note != "" {
		p.Notes = append(p.Notes, models.Note{Text: note, CreatedAt: now, CreatedBy: identity(r).ID})
	}
	p.UpdatedAt = now
	if err := h.Store.UpdateProposal(ctx, p); err != nil {
		h.respondError(w, err, "Failed to update proposal status")
		return
	}

	writeData(w, http.StatusOK, p)
}

// CompareProposalsHandler GET /api/rfp/{rfpId}/compare и /api/ai/compare-proposals/{rfpId}
func (h *Handler) CompareProposalsHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to compare proposals")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, proposals, err := h.loadProposals(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to compare proposals")
		return
	}
	if len(proposals) < 2 {
		writeError(w, http.StatusBadRequest, "At least two proposals are required for comparison", nil)
		return
	}

	writeData(w, http.StatusOK, h.AI.CompareProposals(ctx, rfp, proposals))
}

// loadProposals RFP и его предложения; 404, если RFP нет
func (h *Handler) loadProposals(ctx context.Context, rfpID string) (*models.RFP, []models.Proposal, error) {
	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		return nil, nil, err
	}
	proposals, err := h.Store.ListProposalsForRFP(ctx, rfpID)
	if err != nil {
		return nil, nil, err
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}

	return rfp, proposals, nil
}
