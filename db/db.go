package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rfpmanager/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Connect открывает пул соединений к Postgres и проверяет его.
func Connect(ctx context.Context, connString string) (*sqlx.DB, error) {
	dbConn, err := sqlx.ConnectContext(ctx, "postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	dbConn.SetMaxOpenConns(20)
	dbConn.SetMaxIdleConns(5)
	dbConn.SetConnMaxLifetime(5 * time.Minute)
	return dbConn, nil
}

// mapError переводит ошибки драйвера в ошибки хранилища
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// User (Пользователь)

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	query := `
        INSERT INTO users (id, name, email, password_hash, role, vendor_id, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`
	if u.ID == "" {
		u.ID = models.NewID()
	}
	err := s.db.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.VendorID, u.IsActive).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapError(err)
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT id, name, email, password_hash, role, vendor_id, is_active, created_at, updated_at
              FROM users WHERE id=$1`
	if err := s.db.GetContext(ctx, u, query, id); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT id, name, email, password_hash, role, vendor_id, is_active, created_at, updated_at
              FROM users WHERE email=$1`
	if err := s.db.GetContext(ctx, u, query, email); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM users`)
	return count, err
}

// Vendor (Поставщик)

type vendorRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Company   string         `db:"company"`
	Phone     string         `db:"phone"`
	Expertise pq.StringArray `db:"expertise"`
	Rating    float64        `db:"rating"`
	IsActive  bool           `db:"is_active"`
	CreatedBy string         `db:"created_by"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r vendorRow) toModel() models.Vendor {
	expertise := []string(r.Expertise)
	if expertise == nil {
		expertise = []string{}
	}
	return models.Vendor{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Company:   r.Company,
		Phone:     r.Phone,
		Expertise: expertise,
		Rating:    r.Rating,
		IsActive:  r.IsActive,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const vendorColumns = `id, name, email, company, phone, expertise, rating, is_active, created_by, created_at, updated_at`

func (s *Storage) CreateVendor(ctx context.Context, v *models.Vendor) error {
	query := `
        INSERT INTO vendors (id, name, email, company, phone, expertise, rating, is_active, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at`
	if v.ID == "" {
		v.ID = models.NewID()
	}
	err := s.db.QueryRowContext(ctx, query,
		v.ID, v.Name, v.Email, v.Company, v.Phone, pq.StringArray(v.Expertise), v.Rating, v.IsActive, v.CreatedBy).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	return mapError(err)
}

func (s *Storage) GetVendor(ctx context.Context, id string) (*models.Vendor, error) {
	var row vendorRow
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id=$1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError(err)
	}
	v := row.toModel()
	return &v, nil
}

// GetVendorByEmail ищет поставщика по точному совпадению email.
func (s *Storage) GetVendorByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	var row vendorRow
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE email=$1`
	if err := s.db.GetContext(ctx, &row, query, email); err != nil {
		return nil, mapError(err)
	}
	v := row.toModel()
	return &v, nil
}

func (s *Storage) GetVendorsByIDs(ctx context.Context, ids []string) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	if len(ids) == 0 {
		return vendors, nil
	}
	var rows []vendorRow
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = ANY($1) ORDER BY name ASC`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, r := range rows {
		vendors = append(vendors, r.toModel())
	}
	return vendors, nil
}

type VendorFilter struct {
	Search string
	Limit  int
	Offset int
}

// ListVendors возвращает страницу поставщиков и общее количество по фильтру.
func (s *Storage) ListVendors(ctx context.Context, f VendorFilter) ([]models.Vendor, int, error) {
	var args []interface{}
	filter := ""
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		filter = " WHERE name ILIKE $1 OR email ILIKE $1 OR company ILIKE $1"
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM vendors`+filter, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vendorColumns + ` FROM vendors` + filter + " ORDER BY name ASC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	var rows []vendorRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	vendors := make([]models.Vendor, 0, len(rows))
	for _, r := range rows {
		vendors = append(vendors, r.toModel())
	}
	return vendors, total, nil
}

func (s *Storage) UpdateVendor(ctx context.Context, v *models.Vendor) error {
	query := `
        UPDATE vendors
        SET name=$1, email=$2, company=$3, phone=$4, expertise=$5, rating=$6, is_active=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		v.Name, v.Email, v.Company, v.Phone, pq.StringArray(v.Expertise), v.Rating, v.IsActive, v.ID).
		Scan(&v.UpdatedAt)
	return mapError(err)
}

func (s *Storage) DeleteVendor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vendors WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// RFP

type rfpRow struct {
	ID                   string                           `db:"id"`
	Title                string                           `db:"title"`
	Description          string                           `db:"description"`
	Status               string                           `db:"status"`
	Deadline             time.Time                        `db:"deadline"`
	BudgetAmount         float64                          `db:"budget_amount"`
	BudgetCurrency       string                           `db:"budget_currency"`
	ProjectTimeline      string                           `db:"project_timeline"`
	Requirements         JSONB[[]models.Requirement]      `db:"requirements"`
	Vendors              JSONB[[]models.VendorAssignment] `db:"vendors"`
	Responses            JSONB[[]models.Response]         `db:"responses"`
	Timeline             JSONB[[]models.TimelineEvent]    `db:"timeline"`
	EmailTemplate        JSONB[*models.EmailTemplate]     `db:"email_template"`
	NaturalLanguageInput string                           `db:"natural_language_input"`
	AIMetadata           JSONB[*models.AIMetadata]        `db:"ai_metadata"`
	CreatedBy            string                           `db:"created_by"`
	CreatedAt            time.Time                        `db:"created_at"`
	UpdatedAt            time.Time                        `db:"updated_at"`
}

const rfpColumns = `id, title, description, status, deadline, budget_amount, budget_currency, project_timeline,
        requirements, vendors, responses, timeline, email_template, natural_language_input, ai_metadata,
        created_by, created_at, updated_at`

func newRFPRow(r *models.RFP) rfpRow {
	// данные поставщиков подставляются при чтении, в документ их не пишем
	vendors := make([]models.VendorAssignment, len(r.Vendors))
	for i, a := range r.Vendors {
		a.Vendor = nil
		vendors[i] = a
	}
	return rfpRow{
		ID:                   r.ID,
		Title:                r.Title,
		Description:          r.Description,
		Status:               string(r.Status),
		Deadline:             r.Deadline,
		BudgetAmount:         r.Budget.Amount,
		BudgetCurrency:       r.Budget.Currency,
		ProjectTimeline:      r.ProjectTimeline,
		Requirements:         NewJSONB(nonNil(r.Requirements)),
		Vendors:              NewJSONB(vendors),
		Responses:            NewJSONB(nonNil(r.Responses)),
		Timeline:             NewJSONB(nonNil(r.Timeline)),
		EmailTemplate:        NewJSONB(r.EmailTemplate),
		NaturalLanguageInput: r.NaturalLanguageInput,
		AIMetadata:           NewJSONB(r.AIMetadata),
		CreatedBy:            r.CreatedBy,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (r rfpRow) toModel() *models.RFP {
	return &models.RFP{
		ID:                   r.ID,
		Title:                r.Title,
		Description:          r.Description,
		Status:               models.RFPStatus(r.Status),
		Deadline:             r.Deadline,
		Budget:               models.Money{Amount: r.BudgetAmount, Currency: r.BudgetCurrency},
		ProjectTimeline:      r.ProjectTimeline,
		Requirements:         nonNil(r.Requirements.V),
		Vendors:              nonNil(r.Vendors.V),
		Responses:            nonNil(r.Responses.V),
		Timeline:             nonNil(r.Timeline.V),
		EmailTemplate:        r.EmailTemplate.V,
		NaturalLanguageInput: r.NaturalLanguageInput,
		AIMetadata:           r.AIMetadata.V,
		CreatedBy:            r.CreatedBy,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Storage) CreateRFP(ctx context.Context, r *models.RFP) error {
	if r.ID == "" {
		r.ID = models.NewID()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	query := `
        INSERT INTO rfps (` + rfpColumns + `)
        VALUES (:id, :title, :description, :status, :deadline, :budget_amount, :budget_currency, :project_timeline,
            :requirements, :vendors, :responses, :timeline, :email_template, :natural_language_input, :ai_metadata,
            :created_by, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, query, newRFPRow(r))
	return mapError(err)
}

func (s *Storage) GetRFP(ctx context.Context, id string) (*models.RFP, error) {
	var row rfpRow
	query := `SELECT ` + rfpColumns + ` FROM rfps WHERE id=$1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError(err)
	}
	return row.toModel(), nil
}

type RFPFilter struct {
	Statuses  []string
	Search    string
	CreatedBy string
	Limit     int
	Offset    int
}

func (s *Storage) ListRFPs(ctx context.Context, f RFPFilter) ([]models.RFP, error) {
	var filters []string
	var args []interface{}

	if len(f.Statuses) > 0 {
		args = append(args, pq.Array(f.Statuses))
		filters = append(filters, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		filters = append(filters, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.CreatedBy != "" {
		args = append(args, f.CreatedBy)
		filters = append(filters, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT ` + rfpColumns + ` FROM rfps`
	if len(filters) > 0 {
		query += " WHERE " + strings.Join(filters, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)

	var rows []rfpRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	rfps := make([]models.RFP, 0, len(rows))
	for _, r := range rows {
		rfps = append(rfps, *r.toModel())
	}
	return rfps, nil
}

// UpdateRFP перезаписывает документ RFP целиком (последняя запись побеждает).
func (s *Storage) UpdateRFP(ctx context.Context, r *models.RFP) error {
	r.UpdatedAt = time.Now().UTC()
	query := `
        UPDATE rfps
        SET title=:title, description=:description, status=:status, deadline=:deadline,
            budget_amount=:budget_amount, budget_currency=:budget_currency, project_timeline=:project_timeline,
            requirements=:requirements, vendors=:vendors, responses=:responses, timeline=:timeline,
            email_template=:email_template, natural_language_input=:natural_language_input,
            ai_metadata=:ai_metadata, updated_at=:updated_at
        WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, query, newRFPRow(r))
	if err != nil {
		return mapError(err)
	}
	return expectAffected(res)
}

// Proposal (Предложение)

type proposalRow struct {
	ID            string                          `db:"id"`
	RFPID         string                          `db:"rfp_id"`
	VendorID      string                          `db:"vendor_id"`
	ProposalText  string                          `db:"proposal_text"`
	PriceAmount   float64                         `db:"price_amount"`
	PriceCurrency string                          `db:"price_currency"`
	Analysis      JSONB[*models.ProposalAnalysis] `db:"analysis"`
	Status        string                          `db:"status"`
	Notes         JSONB[[]models.Note]            `db:"notes"`
	Attachments   JSONB[[]models.Attachment]      `db:"attachments"`
	SubmittedAt   time.Time                       `db:"submitted_at"`
	CreatedAt     time.Time                       `db:"created_at"`
	UpdatedAt     time.Time                       `db:"updated_at"`
	VendorName    sql.NullString                  `db:"vendor_name"`
	VendorEmail   sql.NullString                  `db:"vendor_email"`
	VendorCompany sql.NullString                  `db:"vendor_company"`
}

func (r proposalRow) toModel() models.Proposal {
	p := models.Proposal{
		ID:           r.ID,
		RFPID:        r.RFPID,
		VendorID:     r.VendorID,
		ProposalText: r.ProposalText,
		Price:        models.Money{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		Analysis:     r.Analysis.V,
		Status:       models.ProposalStatus(r.Status),
		Notes:        nonNil(r.Notes.V),
		Attachments:  nonNil(r.Attachments.V),
		SubmittedAt:  r.SubmittedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.VendorName.Valid {
		p.Vendor = &models.VendorSummary{
			ID:      r.VendorID,
			Name:    r.VendorName.String,
			Email:   r.VendorEmail.String,
			Company: r.VendorCompany.String,
		}
	}
	return p
}

const proposalSelect = `
        SELECT p.id, p.rfp_id, p.vendor_id, p.proposal_text, p.price_amount, p.price_currency, p.analysis,
            p.status, p.notes, p.attachments, p.submitted_at, p.created_at, p.updated_at,
            v.name AS vendor_name, v.email AS vendor_email, v.company AS vendor_company
        FROM proposals p
        LEFT JOIN vendors v ON v.id = p.vendor_id`

func (s *Storage) CreateProposal(ctx context.Context, p *models.Proposal) error {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	query := `
        INSERT INTO proposals
            (id, rfp_id, vendor_id, proposal_text, price_amount, price_currency, analysis, status, notes, attachments, submitted_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.RFPID, p.VendorID, p.ProposalText, p.Price.Amount, p.Price.Currency,
		NewJSONB(p.Analysis), p.Status, NewJSONB(nonNil(p.Notes)), NewJSONB(nonNil(p.Attachments)), p.SubmittedAt).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (s *Storage) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	var row proposalRow
	if err := s.db.GetContext(ctx, &row, proposalSelect+` WHERE p.id=$1`, id); err != nil {
		return nil, mapError(err)
	}
	p := row.toModel()
	return &p, nil
}

func (s *Storage) ListProposalsForRFP(ctx context.Context, rfpID string) ([]models.Proposal, error) {
	var rows []proposalRow
	if err := s.db.SelectContext(ctx, &rows, proposalSelect+` WHERE p.rfp_id=$1 ORDER BY p.submitted_at ASC`, rfpID); err != nil {
		return nil, err
	}
	proposals := make([]models.Proposal, 0, len(rows))
	for _, r := range rows {
		proposals = append(proposals, r.toModel())
	}
	return proposals, nil
}

func (s *Storage) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	query := `
        UPDATE proposals
        SET proposal_text=$1, price_amount=$2, price_currency=$3, analysis=$4, status=$5, notes=$6,
            attachments=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		p.ProposalText, p.Price.Amount, p.Price.Currency, NewJSONB(p.Analysis), p.Status,
		NewJSONB(nonNil(p.Notes)), NewJSONB(nonNil(p.Attachments)), p.ID).
		Scan(&p.UpdatedAt)
	return mapError(err)
}
