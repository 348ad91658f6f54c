package mail

import (
	"fmt"
	"io"
	"strings"

	"rfpmanager/models"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// ParseMessage разбирает RFC 5322 сообщение в InboundEmail.
// Вложения не сохраняются, фиксируются только имя, тип и размер.
func ParseMessage(r io.Reader) (InboundEmail, error) {
	var email InboundEmail

	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return email, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	email.Subject, _ = h.Subject()
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	} else {
		email.From = strings.TrimSpace(h.Get("From"))
	}
	if to, err := h.AddressList("To"); err == nil && len(to) > 0 {
		addrs := make([]string, 0, len(to))
		for _, a := range to {
			addrs = append(addrs, a.Address)
		}
		email.To = strings.Join(addrs, ", ")
	}
	email.Date, _ = h.Date()
	email.MessageID, _ = h.MessageID()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		// при неизвестной кодировке часть все равно читается как есть
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return email, fmt.Errorf("read part: %w", err)
		}

		switch ph := p.Header.(type) {
		case *gomail.InlineHeader:
			ct, _, _ := ph.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return email, fmt.Errorf("read inline part: %w", err)
			}
			switch ct {
			case "text/plain", "":
				if email.Text == "" {
					email.Text = string(b)
				}
			case "text/html":
				if email.HTML == "" {
					email.HTML = string(b)
				}
			}
		case *gomail.AttachmentHeader:
			filename, _ := ph.Filename()
			ct, _, _ := ph.ContentType()
			n, err := io.Copy(io.Discard, p.Body)
			if err != nil {
				return email, fmt.Errorf("read attachment: %w", err)
			}
			email.Attachments = append(email.Attachments, models.Attachment{
				Filename: filename,
				MimeType: ct,
				Size:     n,
			})
		}
	}

	if strings.TrimSpace(email.Text) == "" && email.HTML != "" {
		email.Text = HTMLToText(email.HTML)
	}
	return email, nil
}
