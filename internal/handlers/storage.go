package handlers

import (
	"context"

	"rfpmanager/db"
	"rfpmanager/models"
)

type StorageInterface interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int, error)

	CreateVendor(ctx context.Context, v *models.Vendor) error
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
	GetVendorByEmail(ctx context.Context, email string) (*models.Vendor, error)
	GetVendorsByIDs(ctx context.Context, ids []string) ([]models.Vendor, error)
	ListVendors(ctx context.Context, f db.VendorFilter) ([]models.Vendor, int, error)
	UpdateVendor(ctx context.Context, v *models.Vendor) error
	DeleteVendor(ctx context.Context, id string) error

	CreateRFP(ctx context.Context, r *models.RFP) error
	GetRFP(ctx context.Context, id string) (*models.RFP, error)
	ListRFPs(ctx context.Context, f db.RFPFilter) ([]models.RFP, error)
	UpdateRFP(ctx context.Context, r *models.RFP) error

	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListProposalsForRFP(ctx context.Context, rfpID string) ([]models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
}
