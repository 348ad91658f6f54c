package handlers

import (
	"net/http"
	"strings"

	"rfpmanager/internal/mail"
)

type mailboxStatus struct {
	Triggered bool            `json:"triggered"`
	State     string          `json:"state"`
	LastPass  *mail.PassStats `json:"lastPass,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// CheckEmailHandler POST /api/email/check, запускает внеочередной проход по ящику
func (h *Handler) CheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	if h.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "Email processing is not configured", nil)
		return
	}

	if !h.Poller.Trigger() {
		writeJSON(w, http.StatusConflict, envelope{
			Success: false,
			Error:   "Email check already in progress",
			Data:    mailboxStatus{State: h.Poller.State().String(), LastPass: h.Poller.LastPass()},
		})
		return
	}

	writeData(w, http.StatusAccepted, mailboxStatus{
		Triggered: true,
		State:     h.Poller.State().String(),
		LastPass:  h.Poller.LastPass(),
		Message:   "Email check started",
	})
}

// EmailStatusHandler GET /api/email/status
func (h *Handler) EmailStatusHandler(w http.ResponseWriter, r *http.Request) {
	if h.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "Email processing is not configured", nil)
		return
	}
	writeData(w, http.StatusOK, mailboxStatus{State: h.Poller.State().String(), LastPass: h.Poller.LastPass()})
}

type inboundResult struct {
	Outcome string `json:"outcome"`
	RFPID   string `json:"rfpId,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// InboundEmailHandler POST /api/email/inbound, письмо в JSON проходит тот же разбор, что и из IMAP
func (h *Handler) InboundEmailHandler(w http.ResponseWriter, r *http.Request) {
	var email mail.InboundEmail
	if err := h.decodeBody(w, r, &email); err != nil {
		h.respondError(w, err, "Failed to process email")
		return
	}
	if strings.TrimSpace(email.Text) == "" && email.HTML != "" {
		email.Text = mail.HTMLToText(email.HTML)
	}
	if email.Date.IsZero() {
		email.Date = h.now()
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.Correlator.Process(ctx, email)
	if err != nil {
		h.respondError(w, err, "Failed to process email")
		return
	}

	writeData(w, http.StatusOK, inboundResult{Outcome: res.Outcome.String(), RFPID: res.RFPID, Reason: res.Reason})
}
