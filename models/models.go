package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID генерирует идентификатор документа (24 hex-символа).
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID проверяет, что строка является корректным идентификатором документа.
func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// NormalizeID приводит hex-идентификатор к нижнему регистру.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Money сумма с валютой (бюджет RFP, цена предложения)
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

const DefaultCurrency = "USD"

// Сущность RFP
type RFP struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description"`
	Status               RFPStatus          `json:"status"`
	Deadline             time.Time          `json:"deadline"`
	Budget               Money              `json:"budget"`
	ProjectTimeline      string             `json:"projectTimeline,omitempty"`
	Requirements         []Requirement      `json:"requirements"`
	Vendors              []VendorAssignment `json:"vendors"`
	Responses            []Response         `json:"responses"`
	Timeline             []TimelineEvent    `json:"timeline"`
	EmailTemplate        *EmailTemplate     `json:"emailTemplate,omitempty"`
	NaturalLanguageInput string             `json:"naturalLanguageInput,omitempty"`
	AIMetadata           *AIMetadata        `json:"aiMetadata,omitempty"`
	CreatedBy            string             `json:"createdBy"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Requirement struct {
	Description string   `json:"description"`
	IsRequired  bool     `json:"isRequired"`
	Priority    Priority `json:"priority"`
}

// VendorAssignment поставщик, которому отправлен RFP
type VendorAssignment struct {
	VendorID    string         `json:"vendor"`
	Vendor      *VendorSummary `json:"vendorInfo,omitempty"`
	Status      VendorStatus   `json:"status"`
	SentAt      *time.Time     `json:"sentAt,omitempty"`
	ViewedAt    *time.Time     `json:"viewedAt,omitempty"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
}

type VendorStatus string

const (
	VendorPending   VendorStatus = "pending"
	VendorSent      VendorStatus = "sent"
	VendorViewed    VendorStatus = "viewed"
	VendorWorking   VendorStatus = "working"
	VendorSubmitted VendorStatus = "submitted"
	VendorDeclined  VendorStatus = "declined"
)

// Response ответ поставщика, пришедший по почте
type Response struct {
	VendorEmail  string       `json:"vendorEmail"`
	Subject      string       `json:"subject,omitempty"`
	ResponseDate time.Time    `json:"responseDate"`
	Content      string       `json:"content"`
	MessageID    string       `json:"messageId,omitempty"`
	Attachments  []Attachment `json:"attachments"`
}

type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,omitempty"`
}

// TimelineEvent запись в истории RFP, только добавляется
type TimelineEvent struct {
	Event       string    `json:"event"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	User        string    `json:"user"`
}

const (
	EventCreated      = "created"
	EventStatusUpdate = "status_update"
	EventSent         = "sent_to_vendors"
	EventResponse     = "vendor_response"
	EventProposal     = "proposal_submitted"

	SystemUser = "system"
)

type EmailTemplate struct {
	Subject string     `json:"subject"`
	Body    string     `json:"body"`
	SentAt  *time.Time `json:"sentAt,omitempty"`
	SentBy  string     `json:"sentBy,omitempty"`
}

type AIMetadata struct {
	GeneratedTitle        string                `json:"generatedTitle,omitempty"`
	GeneratedDescription  string                `json:"generatedDescription,omitempty"`
	ExtractedRequirements []string              `json:"extractedRequirements,omitempty"`
	EvaluationCriteria    []EvaluationCriterion `json:"evaluationCriteria,omitempty"`
}

type EvaluationCriterion struct {
	Criterion string  `json:"criterion"`
	Weight    float64 `json:"weight"`
}

// NewRFP создает черновик RFP и первую запись в истории.
func NewRFP(title, description, createdBy string, now time.Time) *RFP {
	return &RFP{
		ID:           NewID(),
		Title:        title,
		Description:  description,
		Status:       StatusDraft,
		Budget:       Money{Currency: DefaultCurrency},
		Requirements: []Requirement{},
		Vendors:      []VendorAssignment{},
		Responses:    []Response{},
		Timeline: []TimelineEvent{{
			Event:       EventCreated,
			Description: "RFP created",
			Date:        now,
			User:        createdBy,
		}},
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus меняет статус и пишет событие в историю. Возвращает false, если статус не изменился.
func (r *RFP) SetStatus(status RFPStatus, user string, now time.Time) bool {
	if r.Status == status {
		return false
	}
	r.Status = status
	r.AddEvent(EventStatusUpdate, "Status changed to "+string(status), user, now)
	return true
}

func (r *RFP) AddEvent(event, description, user string, now time.Time) {
	r.Timeline = append(r.Timeline, TimelineEvent{
		Event:       event,
		Description: description,
		Date:        now,
		User:        user,
	})
	r.UpdatedAt = now
}

func (r *RFP) AddResponse(resp Response) {
	if resp.Attachments == nil {
		resp.Attachments = []Attachment{}
	}
	r.Responses = append(r.Responses, resp)
}

// Assignment возвращает привязку поставщика к RFP или nil.
func (r *RFP) Assignment(vendorID string) *VendorAssignment {
	for i := range r.Vendors {
		if r.Vendors[i].VendorID == vendorID {
			return &r.Vendors[i]
		}
	}
	return nil
}

// MarkVendor создает или обновляет привязку поставщика и проставляет время по статусу.
func (r *RFP) MarkVendor(vendorID string, status VendorStatus, now time.Time) {
	a := r.Assignment(vendorID)
	if a == nil {
		r.Vendors = append(r.Vendors, VendorAssignment{VendorID: vendorID})
		a = &r.Vendors[len(r.Vendors)-1]
	}
	a.Status = status
	t := now
	switch status {
	case VendorSent:
		a.SentAt = &t
	case VendorViewed:
		a.ViewedAt = &t
	case VendorSubmitted:
		a.SubmittedAt = &t
	}
	r.UpdatedAt = now
}

// RecordSend фиксирует попытку отправки приглашения поставщику.
// Неудача только заводит привязку pending, если ее не было. Успех переводит в sent
// лишь pending и sent, у остальных статусов обновляется только время отправки.
func (r *RFP) RecordSend(vendorID string, delivered bool, now time.Time) {
	a := r.Assignment(vendorID)
	switch {
	case a == nil && delivered:
		r.MarkVendor(vendorID, VendorSent, now)
	case a == nil:
		r.MarkVendor(vendorID, VendorPending, now)
	case !delivered:
	case a.Status == VendorPending || a.Status == VendorSent:
		r.MarkVendor(vendorID, VendorSent, now)
	default:
		t := now
		a.SentAt = &t
		r.UpdatedAt = now
	}
}

// IsClosed true для финальных статусов
func (r *RFP) IsClosed() bool {
	switch r.Status {
	case StatusAwarded, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Сущность Поставщика
type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company"`
	Phone     string    `json:"phone,omitempty"`
	Expertise []string  `json:"expertise"`
	Rating    float64   `json:"rating"`
	IsActive  bool      `json:"isActive"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VendorSummary краткие данные поставщика для вложения в RFP
type VendorSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
}

func (v *Vendor) Summary() *VendorSummary {
	return &VendorSummary{ID: v.ID, Name: v.Name, Email: v.Email, Company: v.Company}
}

// Сущность Предложения
type Proposal struct {
	ID           string            `json:"id"`
	RFPID        string            `json:"rfpId"`
	VendorID     string            `json:"vendorId"`
	Vendor       *VendorSummary    `json:"vendor,omitempty"`
	ProposalText string            `json:"proposalText"`
	Price        Money             `json:"price"`
	Analysis     *ProposalAnalysis `json:"analysis,omitempty"`
	Status       ProposalStatus    `json:"status"`
	Notes        []Note            `json:"notes"`
	Attachments  []Attachment      `json:"attachments"`
	SubmittedAt  time.Time         `json:"submittedAt"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type ProposalAnalysis struct {
	Score          float64  `json:"score"`
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	RiskAssessment string   `json:"riskAssessment,omitempty"`
	Source         string   `json:"source,omitempty"`
}

type Note struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// Сущность Пользователя
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	VendorID     *string   `json:"vendorId" db:"vendor_id"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleVendor Role = "vendor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleVendor:
		return true
	}
	return false
}
