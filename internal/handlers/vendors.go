package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rfpmanager/db"
	"rfpmanager/models"
)

const (
	defaultVendorPageSize = 10
	maxVendorPageSize     = 100
)

type vendorRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Company   string   `json:"company" validate:"required,max=200"`
	Phone     string   `json:"phone" validate:"omitempty,max=30"`
	Expertise []string `json:"expertise" validate:"dive,required"`
	Rating    float64  `json:"rating" validate:"gte=0,lte=5"`
	IsActive  *bool    `json:"isActive"`
}

// CreateVendorHandler POST /api/vendors, только admin
func (h *Handler) CreateVendorHandler(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to create vendor")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	email := strings.TrimSpace(req.Email)
	if _, err := h.Store.GetVendorByEmail(ctx, email); err == nil {
		writeError(w, http.StatusBadRequest, "Vendor with this email already exists", nil)
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		h.respondError(w, err, "Failed to create vendor")
		return
	}

	v := &models.Vendor{
		ID:        models.NewID(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Company:   strings.TrimSpace(req.Company),
		Phone:     strings.TrimSpace(req.Phone),
		Expertise: nonNilStrings(req.Expertise),
		Rating:    req.Rating,
		IsActive:  true,
		CreatedBy: identity(r).ID,
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := h.Store.CreateVendor(ctx, v); err != nil {
		// параллельное создание с тем же email
		if errors.Is(err, db.ErrDuplicate) {
			err = newAPIError(http.StatusBadRequest, "Vendor with this email already exists")
		}
		h.respondError(w, err, "Failed to create vendor")
		return
	}

	writeData(w, http.StatusCreated, v)
}

// vendorPage ответ списка поставщиков с пагинацией по страницам
type vendorPage struct {
	Success     bool            `json:"success"`
	Count       int             `json:"count"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Data        []models.Vendor `json:"data"`
}

// GetVendorsHandler GET /api/vendors?search=&page=1&limit=10
func (h *Handler) GetVendorsHandler(w http.ResponseWriter, r *http.Request) {
	page := 1
	limit := defaultVendorPageSize
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxVendorPageSize {
		limit = l
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	vendors, total, err := h.Store.ListVendors(ctx, db.VendorFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.respondError(w, err, "Failed to get vendors")
		return
	}
	if vendors == nil {
		vendors = []models.Vendor{}
	}

	writeJSON(w, http.StatusOK, vendorPage{
		Success:     true,
		Count:       len(vendors),
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Data:        vendors,
	})
}

// GetVendorHandler GET /api/vendors/{vendorId}
func (h *Handler) GetVendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := idParam(r, "vendorId", "vendor")
	if err != nil {
		h.respondError(w, err, "Failed to get vendor")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	v, err := h.loadVendor(ctx, vendorID)
	if err != nil {
		h.respondError(w, err, "Failed to get vendor")
		return
	}

	writeData(w, http.StatusOK, v)
}

// updateVendorRequest частичное обновление, отсутствующие поля не меняются
type updateVendorRequest struct {
	Name      *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Email     *string   `json:"email" validate:"omitempty,email"`
	Company   *string   `json:"company" validate:"omitempty,min=1,max=200"`
	Phone     *string   `json:"phone" validate:"omitempty,max=30"`
	Expertise *[]string `json:"expertise"`
	Rating    *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
	IsActive  *bool     `json:"isActive"`
}

// UpdateVendorHandler PUT /api/vendors/{vendorId}, только admin
func (h *Handler) UpdateVendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := idParam(r, "vendorId", "vendor")
	if err != nil {
		h.respondError(w, err, "Failed to update vendor")
		return
	}
	var req updateVendorRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to update vendor")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	v, err := h.loadVendor(ctx, vendorID)
	if err != nil {
		h.respondError(w, err, "Failed to update vendor")
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != v.Email {
			other, err := h.Store.GetVendorByEmail(ctx, email)
			if err == nil && other.ID != v.ID {
				writeError(w, http.StatusBadRequest, "Email already in use by another vendor", nil)
				return
			}
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				h.respondError(w, err, "Failed to update vendor")
				return
			}
		}
		v.Email = email
	}
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Company != nil {
		v.Company = strings.TrimSpace(*req.Company)
	}
	if req.Phone != nil {
		v.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Expertise != nil {
		v.Expertise = nonNilStrings(*req.Expertise)
	}
	if req.Rating != nil {
		v.Rating = *req.Rating
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := h.Store.UpdateVendor(ctx, v); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			err = newAPIError(http.StatusNotFound, "Vendor not found")
		case errors.Is(err, db.ErrDuplicate):
			err = newAPIError(http.StatusBadRequest, "Email already in use by another vendor")
		}
		h.respondError(w, err, "Failed to update vendor")
		return
	}

	writeData(w, http.StatusOK, v)
}

// DeleteVendorHandler DELETE /api/vendors/{vendorId}, только admin.
// Предложения поставщика удаляются вместе с ним.
func (h *Handler) DeleteVendorHandler(w http.ResponseWriter, r *http.Request) {
	vendorID, err := idParam(r, "vendorId", "vendor")
	if err != nil {
		h.respondError(w, err, "Failed to delete vendor")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.Store.DeleteVendor(ctx, vendorID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = newAPIError(http.StatusNotFound, "Vendor not found")
		}
		h.respondError(w, err, "Failed to delete vendor")
		return
	}

	writeData(w, http.StatusOK, struct{}{})
}

func (h *Handler) loadVendor(ctx context.Context, id string) (*models.Vendor, error) {
	v, err := h.Store.GetVendor(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, newAPIError(http.StatusNotFound, "Vendor not found")
	}
	return v, err
}

func nonNilStrings(s []string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
