package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/smtp"
	"strings"
	"time"

	"rfpmanager/internal/config"
	"rfpmanager/models"

	gomail "github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

const senderName = "RFP Manager"

// OutgoingEmail исходящее письмо с текстовой и HTML-версией
type OutgoingEmail struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender отправляет письма. Возвращает Message-ID отправленного письма.
type Sender interface {
	Send(ctx context.Context, msg OutgoingEmail) (string, error)
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender отправка через SMTP с PLAIN-аутентификацией
type SMTPSender struct {
	addr     string
	host     string
	user     string
	password string
	from     string
	send     sendFunc
	now      func() time.Time
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		addr:     cfg.SMTPAddr(),
		host:     cfg.Host,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		send:     smtp.SendMail,
		now:      time.Now,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg OutgoingEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	domain := "rfp-manager.local"
	if at := strings.LastIndex(s.from, "@"); at >= 0 {
		domain = s.from[at+1:]
	}
	messageID := uuid.NewString() + "@" + domain

	body, err := ComposeMessage(s.from, msg, messageID, s.now())
	if err != nil {
		return "", err
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	if err := s.send(s.addr, auth, s.from, []string{msg.To}, body); err != nil {
		return "", fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return messageID, nil
}

// ComposeMessage собирает multipart/alternative сообщение.
func ComposeMessage(from string, msg OutgoingEmail, messageID string, now time.Time) ([]byte, error) {
	var h gomail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*gomail.Address{{Name: senderName, Address: from}})
	h.SetAddressList("To", []*gomail.Address{{Name: msg.ToName, Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline: %w", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		var ph gomail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", part.contentType, err)
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RFPSubject тема письма-приглашения, содержит токен для сопоставления ответов
func RFPSubject(rfp *models.RFP) string {
	return fmt.Sprintf("New RFP: %s [RFP:%s]", rfp.Title, rfp.ID)
}

func SubmitURL(appURL, rfpID string) string {
	return strings.TrimRight(appURL, "/") + "/rfp/" + rfpID + "/submit"
}

var invitationHTML = template.Must(template.New("invitation").Parse(`
<div style="font-family: Arial, sans-serif; line-height: 1.6;">
    <p>Dear {{.VendorName}},</p>
    <p>You have been invited to submit a proposal for the following RFP:</p>
    <h2>{{.Title}}</h2>
    <p>{{.Message}}</p>
    <p>Please submit your proposal by clicking the button below:</p>
    <div style="margin: 25px 0;">
        <a href="{{.Link}}"
           style="background-color: #4CAF50; color: white; padding: 12px 24px; text-align: center;
                  text-decoration: none; display: inline-block; border-radius: 4px; font-weight: bold;">
            Submit Proposal
        </a>
    </div>
    <p>Or copy and paste this link into your browser:</p>
    <p>{{.Link}}</p>
    <p>Best regards,<br>The RFP Manager Team</p>
</div>`))

// RFPInvitation письмо поставщику с приглашением подать предложение.
func RFPInvitation(appURL string, vendor *models.Vendor, rfp *models.RFP, message string) (OutgoingEmail, error) {
	link := SubmitURL(appURL, rfp.ID)
	if message == "" {
		message = rfp.Description
	}

	text := fmt.Sprintf("Dear %s,\n\n"+
		"You have been invited to submit a proposal for the following RFP:\n\n"+
		"Title: %s\n"+
		"Message: %s\n\n"+
		"Please submit your proposal by following this link: %s\n\n"+
		"Best regards,\n"+
		"The RFP Manager Team", vendor.Name, rfp.Title, message, link)

	var html bytes.Buffer
	err := invitationHTML.Execute(&html, map[string]string{
		"VendorName": vendor.Name,
		"Title":      rfp.Title,
		"Message":    message,
		"Link":       link,
	})
	if err != nil {
		return OutgoingEmail{}, fmt.Errorf("render invitation: %w", err)
	}

	return OutgoingEmail{
		To:      vendor.Email,
		ToName:  vendor.Name,
		Subject: RFPSubject(rfp),
		Text:    text,
		HTML:    html.String(),
	}, nil
}
