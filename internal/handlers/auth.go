package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rfpmanager/db"
	"rfpmanager/internal/auth"
	"rfpmanager/models"
)

type registerRequest struct {
	Name     string      `json:"name" validate:"required,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=user admin vendor"`
	VendorID string      `json:"vendorId"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterHandler POST /api/auth/register
// Роль admin может выдать только admin, либо это первый пользователь в системе.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to register user")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if req.Role == models.RoleAdmin {
		caller, _ := auth.FromContext(r.Context())
		if !caller.IsAdmin() {
			count, err := h.Store.CountUsers(ctx)
			if err != nil {
				h.respondError(w, err, "Failed to register user")
				return
			}
			if count > 0 {
				writeError(w, http.StatusForbidden, "Only admins can create admin accounts", nil)
				return
			}
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.Store.GetUserByEmail(ctx, email); err == nil {
		writeError(w, http.StatusBadRequest, "User already exists", nil)
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		h.respondError(w, err, "Failed to register user")
		return
	}

	var vendorID *string
	if req.VendorID != "" {
		id := models.NormalizeID(req.VendorID)
		if !models.IsValidID(id) {
			writeError(w, http.StatusBadRequest, "Vendor not found", nil)
			return
		}
		if _, err := h.loadVendor(ctx, id); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				apiErr.Status = http.StatusBadRequest
			}
			h.respondError(w, err, "Failed to register user")
			return
		}
		vendorID = &id
	}
	if req.Role == models.RoleVendor && vendorID == nil {
		writeError(w, http.StatusBadRequest, "vendorId is required for vendor accounts", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(w, err, "Failed to register user")
		return
	}
	u := &models.User{
		ID:           models.NewID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
		VendorID:     vendorID,
		IsActive:     true,
	}
	if err := h.Store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			err = newAPIError(http.StatusBadRequest, "User already exists")
		}
		h.respondError(w, err, "Failed to register user")
		return
	}

	token, err := h.Tokens.Generate(u)
	if err != nil {
		h.respondError(w, err, "Failed to register user")
		return
	}

	writeData(w, http.StatusCreated, authResponse{Token: token, User: u})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginHandler POST /api/auth/login
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.respondError(w, err, "Failed to login")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	u, err := h.Store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err != nil {
		h.respondError(w, err, "Failed to login")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) || !u.IsActive {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Tokens.Generate(u)
	if err != nil {
		h.respondError(w, err, "Failed to login")
		return
	}

	writeData(w, http.StatusOK, authResponse{Token: token, User: u})
}

// MeHandler GET /api/auth/me
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	u, err := h.Store.GetUserByID(ctx, identity(r).ID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		h.respondError(w, err, "Failed to get user")
		return
	}

	writeData(w, http.StatusOK, u)
}
