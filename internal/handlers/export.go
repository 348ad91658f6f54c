package handlers

import (
	"net/http"
	"strconv"

	"rfpmanager/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportRFPPDFHandler GET /api/rfp/{rfpId}/export.pdf
func (h *Handler) ExportRFPPDFHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to export RFP")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to export RFP")
		return
	}
	if err := h.populateVendors(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to export RFP")
		return
	}

	out, err := export.RFPPDF(rfp, h.now())
	if err != nil {
		h.respondError(w, err, "Failed to export RFP")
		return
	}

	writeFile(w, "application/pdf", export.Filename("rfp", rfp.ID, "pdf"), out)
}

// ExportProposalsXLSXHandler GET /api/rfp/{rfpId}/proposals/export.xlsx
func (h *Handler) ExportProposalsXLSXHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to export proposals")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, proposals, err := h.loadProposals(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to export proposals")
		return
	}

	out, err := export.ProposalsXLSX(rfp, proposals)
	if err != nil {
		h.respondError(w, err, "Failed to export proposals")
		return
	}

	writeFile(w, xlsxContentType, export.Filename("proposals", rfp.ID, "xlsx"), out)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
