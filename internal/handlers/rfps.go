package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rfpmanager/db"
	"rfpmanager/internal/ai"
	"rfpmanager/internal/mail"
	"rfpmanager/models"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	defaultDeadline = 30 * 24 * time.Hour
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = defaultLimit
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxLimit {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// requirementInput требование: строка или объект
type requirementInput struct {
	Description string          `json:"description" validate:"required"`
	IsRequired  *bool           `json:"isRequired"`
	Priority    models.Priority `json:"priority" validate:"omitempty,oneof=high medium low"`
	Category    string          `json:"category"`
}

func (ri *requirementInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*ri = requirementInput{Description: s}
		return nil
	}
	type plain requirementInput
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*ri = requirementInput(p)
	return nil
}

func (ri requirementInput) toModel() models.Requirement {
	req := models.Requirement{
		Description: strings.TrimSpace(ri.Description),
		IsRequired:  true,
		Priority:    ri.Priority,
	}
	if ri.Category != "" && !strings.EqualFold(ri.Category, "General") {
		req.Description = ri.Category + ": " + req.Description
	}
	if ri.IsRequired != nil {
		req.IsRequired = *ri.IsRequired
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	return req
}

func toRequirements(in []requirementInput) []models.Requirement {
	out := make([]models.Requirement, 0, len(in))
	for _, ri := range in {
		if strings.TrimSpace(ri.Description) == "" {
			continue
		}
		out = append(out, ri.toModel())
	}
	return out
}

type createRFPRequest struct {
	Title        string             `json:"title" validate:"required,max=200"`
	Description  string             `json:"description" validate:"required"`
	Budget       ai.Amount          `json:"budget"`
	Currency     string             `json:"currency" validate:"omitempty,len=3"`
	Deadline     *time.Time         `json:"deadline"`
	Timeline     string             `json:"timeline"`
	Requirements []requirementInput `json:"requirements" validate:"dive"`
}

// CreateRFPHandler POST /api/rfp
func (h *Handler) CreateRFPHandler(w http.ResponseWriter, r *http.Request) {
	var req createRFPRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		if missingTitleOrDescription(err) {
			err.(*apiError).Message = "Title and description are required fields"
		}
		h.respondError(w, err, "Failed to create RFP")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	now := h.now()
	rfp := models.NewRFP(strings.TrimSpace(req.Title), strings.TrimSpace(req.Description), identity(r).ID, now)
	rfp.Deadline = now.Add(defaultDeadline)
	if req.Deadline != nil && !req.Deadline.IsZero() {
		rfp.Deadline = *req.Deadline
	}
	rfp.Budget.Amount = float64(req.Budget)
	if req.Currency != "" {
		rfp.Budget.Currency = strings.ToUpper(req.Currency)
	}
	rfp.ProjectTimeline = req.Timeline
	rfp.Requirements = toRequirements(req.Requirements)

	if err := h.Store.CreateRFP(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to create RFP")
		return
	}

	writeData(w, http.StatusCreated, rfp)
}

// GetRFPsHandler GET /api/rfp?status=sent,in_review&search=&limit=&offset=
func (h *Handler) GetRFPsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	// статус может прийти несколько раз или через запятую
	var statuses []string
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !models.RFPStatus(s).Valid() {
				writeError(w, http.StatusBadRequest, "Invalid status: "+s, nil)
				return
			}
			statuses = append(statuses, s)
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfps, err := h.Store.ListRFPs(ctx, db.RFPFilter{
		Statuses: statuses,
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:    params.Limit,
		Offset:   params.Offset,
	})
	if err != nil {
		h.respondError(w, err, "Failed to get RFPs")
		return
	}
	if rfps == nil {
		rfps = []models.RFP{}
	}

	writeData(w, http.StatusOK, rfps)
}

// GetRFPHandler GET /api/rfp/{rfpId}, поставщики подставляются кратким описанием
func (h *Handler) GetRFPHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to get RFP")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to get RFP")
		return
	}
	if err := h.populateVendors(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to get RFP")
		return
	}

	writeData(w, http.StatusOK, rfp)
}

type updateStatusRequest struct {
	Status models.RFPStatus `json:"status" validate:"required"`
}

// UpdateRFPStatusHandler PUT /api/rfp/{rfpId}/status, только admin
func (h *Handler) UpdateRFPStatusHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to update RFP status")
		return
	}
	var req updateStatusRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to update RFP status")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status: "+string(req.Status), nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to update RFP status")
		return
	}
	if !models.CanTransition(rfp.Status, req.Status) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid status transition from %s to %s", rfp.Status, req.Status), nil)
		return
	}

	rfp.SetStatus(req.Status, identity(r).ID, h.now())
	if err := h.Store.UpdateRFP(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to update RFP status")
		return
	}

	writeData(w, http.StatusOK, rfp)
}

type parseRequest struct {
	Text string `json:"text" validate:"required"`
}

// ParseRFPHandler POST /api/rfp/parse и /api/ai/parse-rfp, только предпросмотр без сохранения
func (h *Handler) ParseRFPHandler(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := h.decodeBody(w, r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		if err == nil || isValidation(err) {
			err = newAPIError(http.StatusBadRequest, "Text input is required")
		}
		h.respondError(w, err, "Failed to parse RFP")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	writeData(w, http.StatusOK, h.AI.DraftRFP(ctx, req.Text))
}

type naturalRFPRequest struct {
	Text         string             `json:"text"`
	Title        string             `json:"title" validate:"max=200"`
	Description  string             `json:"description"`
	Budget       ai.Amount          `json:"budget"`
	Timeline     string             `json:"timeline"`
	Requirements []requirementInput `json:"requirements"`
}

// CreateNaturalRFPHandler POST /api/rfp/natural
// Если заголовок не передан, черновик строится по тексту.
func (h *Handler) CreateNaturalRFPHandler(w http.ResponseWriter, r *http.Request) {
	var req naturalRFPRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to create RFP")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Text input is required", nil)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	budget := float64(req.Budget)
	timeline := req.Timeline
	requirements := toRequirements(req.Requirements)

	var meta *models.AIMetadata
	if title == "" {
		res := h.AI.DraftRFP(ctx, text)
		d := res.Draft
		title, description, timeline = d.Title, d.Description, d.Timeline
		budget = float64(d.Budget)
		requirements = d.ModelRequirements()
		if res.Source == ai.SourceCompletion {
			meta = &models.AIMetadata{
				GeneratedTitle:       d.Title,
				GeneratedDescription: d.Description,
			}
			for _, rq := range requirements {
				meta.ExtractedRequirements = append(meta.ExtractedRequirements, rq.Description)
			}
		}
	}
	if title == "" {
		title = "Untitled RFP"
	}
	if description == "" {
		description = "No description provided"
	}

	now := h.now()
	rfp := models.NewRFP(title, description, identity(r).ID, now)
	rfp.Deadline = now.Add(defaultDeadline)
	rfp.Budget.Amount = budget
	rfp.ProjectTimeline = timeline
	rfp.Requirements = requirements
	rfp.NaturalLanguageInput = text
	rfp.AIMetadata = meta

	if err := h.Store.CreateRFP(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to create RFP")
		return
	}

	writeData(w, http.StatusCreated, rfp)
}

type sendRFPRequest struct {
	VendorIDs []string `json:"vendorIds" validate:"required,min=1,dive,required"`
	Message   string   `json:"message"`
}

// SendResult итог отправки одному поставщику
type SendResult struct {
	VendorID  string `json:"vendorId"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SendRFPHandler POST /api/rfp/{rfpId}/send
// Каждому поставщику уходит отдельное письмо, ошибка одного не прерывает остальных.
func (h *Handler) SendRFPHandler(w http.ResponseWriter, r *http.Request) {
	rfpID, err := idParam(r, "rfpId", "RFP")
	if err != nil {
		h.respondError(w, err, "Failed to send RFP")
		return
	}
	var req sendRFPRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to send RFP")
		return
	}

	ids := make([]string, 0, len(req.VendorIDs))
	seen := make(map[string]bool)
	for _, id := range req.VendorIDs {
		id = models.NormalizeID(id)
		if !models.IsValidID(id) {
			writeError(w, http.StatusBadRequest, "Invalid vendor id: "+id, nil)
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	rfp, err := h.loadRFP(ctx, rfpID)
	if err != nil {
		h.respondError(w, err, "Failed to send RFP")
		return
	}
	if rfp.IsClosed() {
		writeError(w, http.StatusBadRequest, "Cannot send a "+string(rfp.Status)+" RFP", nil)
		return
	}

	vendors, err := h.Store.GetVendorsByIDs(ctx, ids)
	if err != nil {
		h.respondError(w, err, "Failed to send RFP")
		return
	}
	byID := make(map[string]*models.Vendor, len(vendors))
	for i := range vendors {
		byID[vendors[i].ID] = &vendors[i]
	}

	user := identity(r).ID
	now := h.now()
	results := make([]SendResult, 0, len(ids))
	sent := 0
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			results = append(results, SendResult{VendorID: id, Error: "Vendor not found"})
			continue
		}
		if !v.IsActive {
			results = append(results, SendResult{VendorID: id, Error: "Vendor is inactive"})
			continue
		}
		if h.Mailer == nil {
			rfp.RecordSend(id, false, now)
			results = append(results, SendResult{VendorID: id, Error: "Email delivery is not configured"})
			continue
		}

		msg, err := mail.RFPInvitation(h.AppURL, v, rfp, req.Message)
		if err == nil {
			var messageID string
			messageID, err = h.Mailer.Send(ctx, msg)
			if err == nil {
				rfp.RecordSend(id, true, now)
				results = append(results, SendResult{VendorID: id, Success: true, MessageID: messageID})
				sent++
				continue
			}
		}
		h.Logger.Printf("send rfp %s to vendor %s: %v", rfp.ID, id, err)
		rfp.RecordSend(id, false, now)
		results = append(results, SendResult{VendorID: id, Error: err.Error()})
	}

	if sent > 0 {
		sentAt := now
		body := req.Message
		if body == "" {
			body = rfp.Description
		}
		rfp.EmailTemplate = &models.EmailTemplate{
			Subject: mail.RFPSubject(rfp),
			Body:    body,
			SentAt:  &sentAt,
			SentBy:  user,
		}
		rfp.AddEvent(models.EventSent, fmt.Sprintf("RFP sent to %d vendor(s)", sent), user, now)
		if rfp.Status == models.StatusDraft {
			rfp.SetStatus(models.StatusSent, user, now)
		}
	}

	if err := h.Store.UpdateRFP(ctx, rfp); err != nil {
		h.respondError(w, err, "Failed to send RFP")
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"sent":    sent,
		"rfp":     rfp,
	})
}

// loadRFP достает RFP; отсутствие превращается в 404
func (h *Handler) loadRFP(ctx context.Context, id string) (*models.RFP, error) {
	rfp, err := h.Store.GetRFP(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, newAPIError(http.StatusNotFound, "RFP not found")
	}
	return rfp, err
}

// populateVendors подставляет краткие данные поставщиков в привязки RFP
func (h *Handler) populateVendors(ctx context.Context, rfp *models.RFP) error {
	if len(rfp.Vendors) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rfp.Vendors))
	for _, a := range rfp.Vendors {
		ids = append(ids, a.VendorID)
	}
	vendors, err := h.Store.GetVendorsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Vendor, len(vendors))
	for i := range vendors {
		byID[vendors[i].ID] = &vendors[i]
	}
	for i := range rfp.Vendors {
		if v, ok := byID[rfp.Vendors[i].VendorID]; ok {
			rfp.Vendors[i].Vendor = v.Summary()
		}
	}
	return nil
}

func isValidation(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Message == "Validation Error"
}

// missingTitleOrDescription ошибка валидации из-за пустого title или description
func missingTitleOrDescription(err error) bool {
	var apiErr *apiError
	if !isValidation(err) || !errors.As(err, &apiErr) {
		return false
	}
	details, _ := apiErr.Details.([]FieldError)
	for _, d := range details {
		if d.Message == d.Field+" is required" && (d.Field == "title" || d.Field == "description") {
			return true
		}
	}
	return false
}
