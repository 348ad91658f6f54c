package mail_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"rfpmanager/db"
	"rfpmanager/internal/mail"
	"rfpmanager/models"

	"github.com/stretchr/testify/require"
)

const rfpID = "5f1d9c3b2a1e4f6789abc123"

// fakeStore хранит RFP в памяти и считает обращения
type fakeStore struct {
	rfps        map[string]*models.RFP
	getCalls    int
	updateCalls int
	getErr      error
	updateErr   error
}

func newFakeStore(rfps ...*models.RFP) *fakeStore {
	s := &fakeStore{rfps: map[string]*models.RFP{}}
	for _, r := range rfps {
		s.rfps[r.ID] = r
	}
	return s
}

func (s *fakeStore) GetRFP(ctx context.Context, id string) (*models.RFP, error) {
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.rfps[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	cp.Responses = append([]models.Response(nil), r.Responses...)
	cp.Timeline = append([]models.TimelineEvent(nil), r.Timeline...)
	return &cp, nil
}

func (s *fakeStore) UpdateRFP(ctx context.Context, r *models.RFP) error {
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	s.rfps[r.ID] = r
	return nil
}

func rfpWithStatus(status models.RFPStatus) *models.RFP {
	r := models.NewRFP("Laptops", "Need laptops", "u1", time.Now())
	r.ID = rfpID
	r.Status = status
	return r
}

func newCorrelator(store mail.RFPStore) *mail.Correlator {
	return mail.NewCorrelator(store, log.New(io.Discard, "", 0))
}

func TestExtractRFPID(t *testing.T) {
	cases := []struct {
		text string
		id   string
		ok   bool
	}{
		{"Re: RFP: 5f1d9c3b2a1e4f6789abc123", rfpID, true},
		{"New RFP: Laptops [RFP:5f1d9c3b2a1e4f6789abc123]", rfpID, true},
		{"rfp 5F1D9C3B2A1E4F6789ABC123 attached", rfpID, true},
		{"RFP#5f1d9c3b2a1e4f6789abc123", rfpID, true},
		{"RFP - 5f1d9c3b2a1e4f6789abc123.", rfpID, true},
		{"RFP5f1d9c3b2a1e4f6789abc123", rfpID, true},
		{"RFP: 5f1d9c3b2a1e4f6789abc1234", rfpID, true}, // берутся первые 24 символа
		{"RFP: 5f1d9c3b2a1e4f6789abc12", "", false},
		{"5f1d9c3b2a1e4f6789abc123 without the token", "", false},
		{"Meeting notes", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		id, ok := mail.ExtractRFPID(c.text)
		require.Equal(t, c.ok, ok, c.text)
		require.Equal(t, c.id, id, c.text)
	}
}

func TestExtractRFPIDFirstMatchWins(t *testing.T) {
	id, ok := mail.ExtractRFPID("RFP:aaaaaaaaaaaaaaaaaaaaaaaa and RFP:bbbbbbbbbbbbbbbbbbbbbbbb")
	require.True(t, ok)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaa", id)
}

func TestProcessSentRFPMovesToReview(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)

	res, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "Re: RFP: 5f1d9c3b2a1e4f6789abc123",
		Text:    "We accept",
		From:    "v@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, mail.Attached, res.Outcome)

	saved := store.rfps[rfpID]
	require.Equal(t, models.StatusInReview, saved.Status)
	require.Len(t, saved.Responses, 1)
	require.Equal(t, "v@x.com", saved.Responses[0].VendorEmail)
	require.Equal(t, "We accept", saved.Responses[0].Content)

	last := saved.Timeline[len(saved.Timeline)-1]
	require.Equal(t, models.EventStatusUpdate, last.Event)
	require.Equal(t, "Status changed to in_review", last.Description)
}

func TestProcessLeavesLaterStatusUnchanged(t *testing.T) {
	for _, status := range []models.RFPStatus{models.StatusInReview, models.StatusEvaluating, models.StatusAwarded, models.StatusDraft} {
		store := newFakeStore(rfpWithStatus(status))
		c := newCorrelator(store)

		res, err := c.Process(context.Background(), mail.InboundEmail{
			Subject: "Re: RFP: 5f1d9c3b2a1e4f6789abc123",
			Text:    "We accept",
			From:    "v@x.com",
		})
		require.NoError(t, err)
		require.Equal(t, mail.Attached, res.Outcome)
		require.Equal(t, status, store.rfps[rfpID].Status)
		require.Len(t, store.rfps[rfpID].Responses, 1)
	}
}

func TestProcessWithoutTokenMakesNoStoreCall(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)

	res, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "Lunch on Friday?",
		Text:    "No identifiers here",
		From:    "v@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, mail.NotApplicable, res.Outcome)
	require.Zero(t, store.getCalls)
	require.Zero(t, store.updateCalls)
}

func TestProcessUnknownRFPIsNotApplicable(t *testing.T) {
	store := newFakeStore()
	c := newCorrelator(store)

	res, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "RFP:aaaaaaaaaaaaaaaaaaaaaaaa",
		From:    "v@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, mail.NotApplicable, res.Outcome)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaa", res.RFPID)
	require.Equal(t, 1, store.getCalls)
	require.Zero(t, store.updateCalls)
}

func TestProcessSearchesBodyAfterSubject(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)

	res, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "Our proposal",
		Text:    "Regarding RFP: 5f1d9c3b2a1e4f6789abc123, price is $40k",
		From:    "Vendor Sales <sales@vendor.test>",
	})
	require.NoError(t, err)
	require.Equal(t, mail.Attached, res.Outcome)
	require.Equal(t, "sales@vendor.test", store.rfps[rfpID].Responses[0].VendorEmail)
}

func TestProcessSubjectTakesPriority(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)

	res, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "RFP: 5f1d9c3b2a1e4f6789abc123",
		Text:    "see also RFP: bbbbbbbbbbbbbbbbbbbbbbbb",
		From:    "v@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, rfpID, res.RFPID)
}

func TestProcessDuplicateDeliveryAppendsTwice(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)
	email := mail.InboundEmail{
		Subject: "Re: RFP: 5f1d9c3b2a1e4f6789abc123",
		Text:    "We accept",
		From:    "v@x.com",
	}

	_, err := c.Process(context.Background(), email)
	require.NoError(t, err)
	_, err = c.Process(context.Background(), email)
	require.NoError(t, err)

	require.Len(t, store.rfps[rfpID].Responses, 2)
	require.Equal(t, models.StatusInReview, store.rfps[rfpID].Status)
}

func TestProcessPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	store.updateErr = errors.New("connection reset")
	c := newCorrelator(store)

	_, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "RFP: 5f1d9c3b2a1e4f6789abc123",
		From:    "v@x.com",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")

	store = newFakeStore()
	store.getErr = errors.New("timeout")
	_, err = newCorrelator(store).Process(context.Background(), mail.InboundEmail{
		Subject: "RFP: 5f1d9c3b2a1e4f6789abc123",
		From:    "v@x.com",
	})
	require.Error(t, err)
}

func TestProcessUsesHTMLWhenTextEmpty(t *testing.T) {
	store := newFakeStore(rfpWithStatus(models.StatusSent))
	c := newCorrelator(store)

	_, err := c.Process(context.Background(), mail.InboundEmail{
		Subject: "RFP: 5f1d9c3b2a1e4f6789abc123",
		HTML:    "<p>Price: <b>$40,000</b></p>",
		From:    "v@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Price: $40,000", store.rfps[rfpID].Responses[0].Content)
}
