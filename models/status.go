package models

type RFPStatus string

const (
	StatusDraft      RFPStatus = "draft"
	StatusSent       RFPStatus = "sent"
	StatusInReview   RFPStatus = "in_review"
	StatusEvaluating RFPStatus = "evaluating"
	StatusAwarded    RFPStatus = "awarded"
	StatusCompleted  RFPStatus = "completed"
	StatusCancelled  RFPStatus = "cancelled"
)

// допустимые переходы статусов RFP
var rfpTransitions = map[RFPStatus][]RFPStatus{
	StatusDraft:      {StatusSent, StatusCancelled},
	StatusSent:       {StatusInReview, StatusCancelled},
	StatusInReview:   {StatusEvaluating, StatusCancelled},
	StatusEvaluating: {StatusAwarded, StatusCancelled},
	StatusAwarded:    {StatusCompleted},
}

func (s RFPStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusInReview, StatusEvaluating,
		StatusAwarded, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition проверяет переход статуса RFP.
func CanTransition(from, to RFPStatus) bool {
	for _, s := range rfpTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ProposalStatus string

const (
	ProposalReceived    ProposalStatus = "received"
	ProposalUnderReview ProposalStatus = "under_review"
	ProposalAccepted    ProposalStatus = "accepted"
	ProposalRejected    ProposalStatus = "rejected"
)

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalReceived:    {ProposalUnderReview, ProposalRejected},
	ProposalUnderReview: {ProposalAccepted, ProposalRejected},
}

func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalReceived, ProposalUnderReview, ProposalAccepted, ProposalRejected:
		return true
	}
	return false
}

func CanTransitionProposal(from, to ProposalStatus) bool {
	for _, s := range proposalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
