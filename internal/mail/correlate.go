package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"rfpmanager/db"
	"rfpmanager/models"

	gomail "github.com/emersion/go-message/mail"
)

// InboundEmail нормализованное входящее письмо
type InboundEmail struct {
	From        string              `json:"from" validate:"required"`
	To          string              `json:"to,omitempty"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	HTML        string              `json:"html,omitempty"`
	Date        time.Time           `json:"date,omitempty"`
	MessageID   string              `json:"messageId,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// RFP + необязательные разделители + 24 hex-символа
var rfpTokenPattern = regexp.MustCompile(`(?i)RFP[\s:#-]*([a-f0-9]{24})`)

// ExtractRFPID ищет первый токен RFP в тексте и возвращает идентификатор в нижнем регистре.
func ExtractRFPID(text string) (string, bool) {
	m := rfpTokenPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// RFPStore часть хранилища, нужная коррелятору
type RFPStore interface {
	GetRFP(ctx context.Context, id string) (*models.RFP, error)
	UpdateRFP(ctx context.Context, rfp *models.RFP) error
}

type Outcome int

const (
	NotApplicable Outcome = iota
	Attached
)

func (o Outcome) String() string {
	if o == Attached {
		return "attached"
	}
	return "not_applicable"
}

// Result итог обработки письма
type Result struct {
	Outcome Outcome
	RFPID   string
	Reason  string
	RFP     *models.RFP
}

// Correlator сопоставляет входящие письма с RFP и прикрепляет их как ответы.
type Correlator struct {
	store  RFPStore
	logger *log.Logger
	now    func() time.Time
}

func NewCorrelator(store RFPStore, logger *log.Logger) *Correlator {
	return &Correlator{store: store, logger: logger, now: time.Now}
}

// Process прикрепляет письмо к RFP, если в теме или тексте есть его идентификатор.
// Ошибки хранилища возвращаются вызывающему; повторная доставка создает повторный ответ.
func (c *Correlator) Process(ctx context.Context, email InboundEmail) (Result, error) {
	id, ok := ExtractRFPID(email.Subject)
	if !ok {
		id, ok = ExtractRFPID(email.Text)
	}
	if !ok {
		return Result{Outcome: NotApplicable, Reason: "no rfp token"}, nil
	}
	if !models.IsValidID(id) {
		return Result{Outcome: NotApplicable, RFPID: id, Reason: "malformed id"}, nil
	}

	rfp, err := c.store.GetRFP(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		c.logger.Printf("no rfp %s for email from %s (subject %q)", id, email.From, email.Subject)
		return Result{Outcome: NotApplicable, RFPID: id, Reason: "rfp not found"}, nil
	}
	if err != nil {
		return Result{RFPID: id}, fmt.Errorf("load rfp %s: %w", id, err)
	}

	now := c.now()
	sender := senderAddress(email.From)
	content := email.Text
	if strings.TrimSpace(content) == "" && email.HTML != "" {
		content = HTMLToText(email.HTML)
	}
	rfp.AddResponse(models.Response{
		VendorEmail:  sender,
		Subject:      email.Subject,
		ResponseDate: now,
		Content:      content,
		MessageID:    email.MessageID,
		Attachments:  email.Attachments,
	})
	rfp.AddEvent(models.EventResponse, "Response received from "+sender, models.SystemUser, now)
	if rfp.Status == models.StatusSent {
		rfp.SetStatus(models.StatusInReview, models.SystemUser, now)
	}

	if err := c.store.UpdateRFP(ctx, rfp); err != nil {
		return Result{RFPID: id}, fmt.Errorf("save rfp %s: %w", id, err)
	}

	c.logger.Printf("attached email from %s to rfp %s (status %s)", sender, id, rfp.Status)
	return Result{Outcome: Attached, RFPID: id, RFP: rfp}, nil
}

// senderAddress оставляет только адрес из "Name <addr>"
func senderAddress(from string) string {
	from = strings.TrimSpace(from)
	if addr, err := gomail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return from
}
