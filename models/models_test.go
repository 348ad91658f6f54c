package models_test

import (
	"testing"
	"time"

	"rfpmanager/models"

	"github.com/stretchr/testify/require"
)

func TestNewRFPStartsAsDraftWithCreatedEvent(t *testing.T) {
	now := time.Now()
	rfp := models.NewRFP("Laptops", "Need laptops", "u1", now)

	require.True(t, models.IsValidID(rfp.ID))
	require.Equal(t, models.StatusDraft, rfp.Status)
	require.Equal(t, models.DefaultCurrency, rfp.Budget.Currency)
	require.Len(t, rfp.Timeline, 1)
	require.Equal(t, models.EventCreated, rfp.Timeline[0].Event)
	require.Equal(t, "u1", rfp.Timeline[0].User)
}

func TestSetStatusAppendsTimeline(t *testing.T) {
	now := time.Now()
	rfp := models.NewRFP("t", "d", "u1", now)

	require.True(t, rfp.SetStatus(models.StatusSent, "u1", now))
	require.False(t, rfp.SetStatus(models.StatusSent, "u1", now))

	require.Len(t, rfp.Timeline, 2)
	require.Equal(t, models.EventStatusUpdate, rfp.Timeline[1].Event)
	require.Equal(t, "Status changed to sent", rfp.Timeline[1].Description)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.RFPStatus
		ok       bool
	}{
		{models.StatusDraft, models.StatusSent, true},
		{models.StatusSent, models.StatusInReview, true},
		{models.StatusInReview, models.StatusEvaluating, true},
		{models.StatusEvaluating, models.StatusAwarded, true},
		{models.StatusAwarded, models.StatusCompleted, true},
		{models.StatusDraft, models.StatusCancelled, true},
		{models.StatusInReview, models.StatusSent, false},
		{models.StatusCompleted, models.StatusDraft, false},
		{models.StatusCancelled, models.StatusSent, false},
		{models.StatusDraft, models.StatusAwarded, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, models.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestCanTransitionProposal(t *testing.T) {
	require.True(t, models.CanTransitionProposal(models.ProposalReceived, models.ProposalUnderReview))
	require.True(t, models.CanTransitionProposal(models.ProposalUnderReview, models.ProposalAccepted))
	require.False(t, models.CanTransitionProposal(models.ProposalAccepted, models.ProposalRejected))
	require.False(t, models.CanTransitionProposal(models.ProposalReceived, models.ProposalAccepted))
}

func TestMarkVendorUpserts(t *testing.T) {
	now := time.Now()
	rfp := models.NewRFP("t", "d", "u1", now)
	vendorID := models.NewID()

	rfp.MarkVendor(vendorID, models.VendorSent, now)
	rfp.MarkVendor(vendorID, models.VendorSubmitted, now.Add(time.Hour))

	require.Len(t, rfp.Vendors, 1)
	a := rfp.Assignment(vendorID)
	require.NotNil(t, a)
	require.Equal(t, models.VendorSubmitted, a.Status)
	require.NotNil(t, a.SentAt)
	require.NotNil(t, a.SubmittedAt)
	require.Nil(t, a.ViewedAt)
}

func TestRecordSendKeepsProgress(t *testing.T) {
	now := time.Now()
	rfp := models.NewRFP("t", "d", "u1", now)
	fresh, failed, submitted := models.NewID(), models.NewID(), models.NewID()

	rfp.RecordSend(fresh, false, now)
	require.Equal(t, models.VendorPending, rfp.Assignment(fresh).Status)
	rfp.RecordSend(fresh, true, now)
	require.Equal(t, models.VendorSent, rfp.Assignment(fresh).Status)

	// неудачная повторная отправка не трогает привязку
	rfp.MarkVendor(failed, models.VendorSent, now)
	rfp.RecordSend(failed, false, now.Add(time.Hour))
	require.Equal(t, models.VendorSent, rfp.Assignment(failed).Status)
	require.Equal(t, now, *rfp.Assignment(failed).SentAt)

	rfp.MarkVendor(submitted, models.VendorSubmitted, now)
	rfp.RecordSend(submitted, false, now.Add(time.Hour))
	require.Equal(t, models.VendorSubmitted, rfp.Assignment(submitted).Status)
	rfp.RecordSend(submitted, true, now.Add(2*time.Hour))
	require.Equal(t, models.VendorSubmitted, rfp.Assignment(submitted).Status)
	require.Equal(t, now.Add(2*time.Hour), *rfp.Assignment(submitted).SentAt)
	require.Len(t, rfp.Vendors, 3)
}

func TestIDHelpers(t *testing.T) {
	require.True(t, models.IsValidID("5f1d9c3b2a1e4f6789abc123"))
	require.False(t, models.IsValidID("5f1d9c3b2a1e4f6789abc12"))
	require.False(t, models.IsValidID("zzzzzzzzzzzzzzzzzzzzzzzz"))
	require.Equal(t, "5f1d9c3b2a1e4f6789abc123", models.NormalizeID(" 5F1D9C3B2A1E4F6789ABC123 "))
}
