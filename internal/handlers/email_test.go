package handlers_test

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rfpmanager/internal/handlers"
	"rfpmanager/internal/mail"
	"rfpmanager/models"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakePoller struct {
	accept bool
	calls  int
}

func (f *fakePoller) Trigger() bool {
	f.calls++
	return f.accept
}

func (f *fakePoller) State() mail.State { return mail.StateListening }

func (f *fakePoller) LastPass() *mail.PassStats {
	return &mail.PassStats{StartedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), Fetched: 3, Attached: 1, Ignored: 2}
}

func TestCheckEmailHandler(t *testing.T) {
	h := newHandler(newMockStorage(), handlers.Deps{})
	w := httptest.NewRecorder()
	h.CheckEmailHandler(w, request(http.MethodPost, "/api/email/check", "", admin, nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	poller := &fakePoller{accept: true}
	h = newHandler(newMockStorage(), handlers.Deps{Poller: poller})
	w = httptest.NewRecorder()
	h.CheckEmailHandler(w, request(http.MethodPost, "/api/email/check", "", admin, nil))
	require.Equal(t, http.StatusAccepted, w.Code)
	var status struct {
		Triggered bool            `json:"triggered"`
		State     string          `json:"state"`
		LastPass  *mail.PassStats `json:"lastPass"`
	}
	decode(t, w, &status)
	require.True(t, status.Triggered)
	require.Equal(t, "listening", status.State)
	require.Equal(t, 3, status.LastPass.Fetched)

	poller.accept = false
	w = httptest.NewRecorder()
	h.CheckEmailHandler(w, request(http.MethodPost, "/api/email/check", "", admin, nil))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "Email check already in progress", decode(t, w, nil).Error)
	require.Equal(t, 2, poller.calls)

	w = httptest.NewRecorder()
	h.EmailStatusHandler(w, request(http.MethodGet, "/api/email/status", "", admin, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, poller.calls)
}

func TestInboundEmailHandler(t *testing.T) {
	store := newMockStorage()
	rfp := addRFP(store, models.StatusSent)
	correlator := mail.NewCorrelator(store, log.New(io.Discard, "", 0))
	h := newHandler(store, handlers.Deps{Correlator: correlator})

	body := `{"from":"Acme Sales <sales@acme.test>","subject":"Re: New RFP: Office laptops [RFP:` + rfp.ID + `]","html":"<p>We offer <b>45k</b></p>"}`
	w := httptest.NewRecorder()
	h.InboundEmailHandler(w, request(http.MethodPost, "/api/email/inbound", body, admin, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Outcome string `json:"outcome"`
		RFPID   string `json:"rfpId"`
	}
	decode(t, w, &res)
	require.Equal(t, "attached", res.Outcome)
	require.Equal(t, rfp.ID, res.RFPID)

	stored := store.rfps[rfp.ID]
	require.Equal(t, models.StatusInReview, stored.Status)
	require.Len(t, stored.Responses, 1)
	require.Equal(t, "sales@acme.test", stored.Responses[0].VendorEmail)
	require.Equal(t, "We offer 45k", stored.Responses[0].Content)

	w = httptest.NewRecorder()
	h.InboundEmailHandler(w, request(http.MethodPost, "/api/email/inbound", `{"from":"x@test","subject":"hello"}`, admin, nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res)
	require.Equal(t, "not_applicable", res.Outcome)

	w = httptest.NewRecorder()
	h.InboundEmailHandler(w, request(http.MethodPost, "/api/email/inbound", `{"subject":"no sender"}`, admin, nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlers(t *testing.T) {
	store := newMockStorage()
	acme := addVendor(store, "Acme", "sales@acme.test", true)
	rfp := addRFP(store, models.StatusInReview)
	addProposal(store, rfp.ID, acme.ID, 45000, 80)
	h := newHandler(store, handlers.Deps{})
	params := map[string]string{"rfpId": rfp.ID}

	w := httptest.NewRecorder()
	h.ExportRFPPDFHandler(w, request(http.MethodGet, "/", "", user, params))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Equal(t, "attachment; filename=rfp_"+rfp.ID+".pdf", w.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = httptest.NewRecorder()
	h.ExportProposalsXLSXHandler(w, request(http.MethodGet, "/", "", user, params))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "attachment; filename=proposals_"+rfp.ID+".xlsx", w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Proposals")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, "Acme", rows[4][0])

	w = httptest.NewRecorder()
	h.ExportRFPPDFHandler(w, request(http.MethodGet, "/", "", user, map[string]string{"rfpId": models.NewID()}))
	require.Equal(t, http.StatusNotFound, w.Code)
}
