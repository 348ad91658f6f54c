package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rfpmanager/models"
)

// Source откуда взят результат: ответ модели или запасной вариант
type Source string

const (
	SourceCompletion Source = "completion"
	SourceFallback   Source = "fallback"
)

const (
	fallbackRequirement = "Details to be defined based on description."
	noDescription       = "No description provided"
	manualReview        = "Manual review required"
)

// Completer то, что умеет Client; в тестах подменяется
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Service генерация черновиков и анализ предложений. Ошибки наружу не отдаются,
// вместо них возвращается запасной результат с Source=fallback.
type Service struct {
	llm    Completer
	logger *log.Logger
}

func NewService(llm Completer, logger *log.Logger) *Service {
	return &Service{llm: llm, logger: logger}
}

// Amount сумма, принимает JSON-число или строку вида "$50,000"
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(str)
		if s == "" {
			*a = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid amount %q", s)
	}
	if f < 0 {
		f = 0
	}
	*a = Amount(f)
	return nil
}

type DraftRequirement struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
}

// Draft структурированный черновик RFP
type Draft struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Budget       Amount             `json:"budget"`
	Timeline     string             `json:"timeline"`
	Requirements []DraftRequirement `json:"requirements"`
}

// ModelRequirements переводит требования черновика в требования RFP.
func (d Draft) ModelRequirements() []models.Requirement {
	out := make([]models.Requirement, 0, len(d.Requirements))
	for _, r := range d.Requirements {
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			continue
		}
		if r.Category != "" && !strings.EqualFold(r.Category, "General") {
			desc = r.Category + ": " + desc
		}
		out = append(out, models.Requirement{
			Description: desc,
			IsRequired:  true,
			Priority:    normalizePriority(r.Priority),
		})
	}
	return out
}

type DraftResult struct {
	Draft  Draft  `json:"draft"`
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

const draftPrompt = `Create a JSON object for an RFP based on this text: %q

Required JSON structure:
{
    "title": "String",
    "description": "String",
    "budget": "50000" (String, numbers only),
    "timeline": "String",
    "requirements": [
        { "category": "General", "description": "String", "priority": "medium" }
    ]
}`

// DraftRFP строит черновик RFP по произвольному тексту.
func (s *Service) DraftRFP(ctx context.Context, text string) DraftResult {
	content, err := s.complete(ctx, []Message{
		{Role: "system", Content: "You are a JSON generator."},
		{Role: "user", Content: fmt.Sprintf(draftPrompt, text)},
	})
	if err != nil {
		return s.draftFallback(text, err)
	}

	var d Draft
	if err := decodeJSON(content, &d); err != nil {
		return s.draftFallback(text, err)
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" || d.Description == "" {
		return s.draftFallback(text, errors.New("draft has empty title or description"))
	}
	if d.Timeline == "" {
		d.Timeline = "TBD"
	}
	for i := range d.Requirements {
		d.Requirements[i].Priority = normalizePriority(d.Requirements[i].Priority)
	}
	if len(d.Requirements) == 0 {
		d.Requirements = fallbackRequirements()
	}
	return DraftResult{Draft: d, Source: SourceCompletion}
}

func (s *Service) draftFallback(text string, cause error) DraftResult {
	s.logger.Printf("draft fallback: %v", cause)
	return DraftResult{Draft: FallbackDraft(text), Source: SourceFallback, Reason: cause.Error()}
}

// FallbackDraft черновик без участия модели.
func FallbackDraft(text string) Draft {
	runes := []rune(text)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	desc := text
	if strings.TrimSpace(desc) == "" {
		desc = noDescription
	}
	return Draft{
		Title:        "RFP: " + string(runes) + "...",
		Description:  desc,
		Budget:       0,
		Timeline:     "TBD",
		Requirements: fallbackRequirements(),
	}
}

func fallbackRequirements() []DraftRequirement {
	return []DraftRequirement{{
		Category:    "General",
		Description: fallbackRequirement,
		Priority:    models.PriorityMedium,
	}}
}

type AnalysisResult struct {
	Analysis models.ProposalAnalysis `json:"analysis"`
	Source   Source                  `json:"source"`
	Reason   string                  `json:"reason,omitempty"`
}

const analysisPrompt = `Evaluate this vendor proposal against the RFP requirements.

RFP: %s
Requirements:
%s

Proposal:
%s

Respond with JSON only:
{"score": 0-100, "summary": "String", "strengths": ["String"], "weaknesses": ["String"], "riskAssessment": "String"}`

// AnalyzeProposal оценивает текст предложения относительно требований RFP.
func (s *Service) AnalyzeProposal(ctx context.Context, proposalText string, rfp *models.RFP) AnalysisResult {
	content, err := s.complete(ctx, []Message{
		{Role: "system", Content: "You are a procurement analyst. You answer in JSON."},
		{Role: "user", Content: fmt.Sprintf(analysisPrompt, rfp.Title, formatRequirements(rfp.Requirements), proposalText)},
	})
	if err != nil {
		return s.analysisFallback(err)
	}

	var a models.ProposalAnalysis
	if err := decodeJSON(content, &a); err != nil {
		return s.analysisFallback(err)
	}
	if strings.TrimSpace(a.Summary) == "" {
		return s.analysisFallback(errors.New("analysis has empty summary"))
	}
	a.Score = clampScore(a.Score)
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.Weaknesses == nil {
		a.Weaknesses = []string{}
	}
	a.Source = string(SourceCompletion)
	return AnalysisResult{Analysis: a, Source: SourceCompletion}
}

func (s *Service) analysisFallback(cause error) AnalysisResult {
	s.logger.Printf("analysis fallback: %v", cause)
	return AnalysisResult{
		Analysis: models.ProposalAnalysis{
			Score:      0,
			Summary:    manualReview,
			Strengths:  []string{},
			Weaknesses: []string{},
			Source:     string(SourceFallback),
		},
		Source: SourceFallback,
		Reason: cause.Error(),
	}
}

// RankedProposal место предложения в сравнении
type RankedProposal struct {
	ProposalID string  `json:"proposalId"`
	VendorName string  `json:"vendorName"`
	Company    string  `json:"company"`
	Price      float64 `json:"price"`
	Score      float64 `json:"score"`
	Rationale  string  `json:"rationale"`
}

type Comparison struct {
	Ranking        []RankedProposal `json:"ranking"`
	Recommendation string           `json:"recommendation"`
	Summary        string           `json:"summary"`
}

type ComparisonResult struct {
	Comparison Comparison `json:"comparison"`
	Source     Source     `json:"source"`
	Reason     string     `json:"reason,omitempty"`
}

const comparisonPrompt = `Compare these vendor proposals for the RFP "%s".
Requirements:
%s

Proposals:
%s

Respond with JSON only:
{"ranking": [{"proposalId": "String", "vendorName": "String", "company": "String", "price": 0, "score": 0-100, "rationale": "String"}],
 "recommendation": "String", "summary": "String"}`

// CompareProposals ранжирует предложения по RFP.
func (s *Service) CompareProposals(ctx context.Context, rfp *models.RFP, proposals []models.Proposal) ComparisonResult {
	content, err := s.complete(ctx, []Message{
		{Role: "system", Content: "You are a procurement analyst. You answer in JSON."},
		{Role: "user", Content: fmt.Sprintf(comparisonPrompt, rfp.Title, formatRequirements(rfp.Requirements), formatProposals(proposals))},
	})
	if err != nil {
		return s.comparisonFallback(proposals, err)
	}

	var c Comparison
	if err := decodeJSON(content, &c); err != nil {
		return s.comparisonFallback(proposals, err)
	}
	if len(c.Ranking) == 0 {
		return s.comparisonFallback(proposals, errors.New("comparison has empty ranking"))
	}
	for i := range c.Ranking {
		c.Ranking[i].Score = clampScore(c.Ranking[i].Score)
	}
	return ComparisonResult{Comparison: c, Source: SourceCompletion}
}

func (s *Service) comparisonFallback(proposals []models.Proposal, cause error) ComparisonResult {
	s.logger.Printf("comparison fallback: %v", cause)
	return ComparisonResult{Comparison: RankByScore(proposals), Source: SourceFallback, Reason: cause.Error()}
}

// RankByScore сравнение без модели: по оценке анализа, при равенстве по цене.
func RankByScore(proposals []models.Proposal) Comparison {
	ranking := make([]RankedProposal, 0, len(proposals))
	for _, p := range proposals {
		rp := RankedProposal{ProposalID: p.ID, Price: p.Price.Amount, Rationale: manualReview}
		if p.Vendor != nil {
			rp.VendorName = p.Vendor.Name
			rp.Company = p.Vendor.Company
		}
		if p.Analysis != nil {
			rp.Score = p.Analysis.Score
			if p.Analysis.Summary != "" {
				rp.Rationale = p.Analysis.Summary
			}
		}
		ranking = append(ranking, rp)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].Price < ranking[j].Price
	})

	c := Comparison{
		Ranking:        ranking,
		Recommendation: "Manual comparison required",
		Summary:        fmt.Sprintf("%d proposals ranked by analysis score and price.", len(ranking)),
	}
	if len(ranking) > 0 && ranking[0].VendorName != "" {
		c.Recommendation = fmt.Sprintf("Manual comparison required. Highest ranked: %s.", ranking[0].VendorName)
	}
	return c
}

type SummaryResult struct {
	Summary string `json:"summary"`
	Source  Source `json:"source"`
	Reason  string `json:"reason,omitempty"`
}

const summaryPrompt = `Write a short executive summary (3-5 paragraphs, plain text) of the procurement for the RFP "%s".
Description: %s
Budget: %.2f %s

Proposals:
%s`

// ExecutiveSummary краткая сводка по RFP и его предложениям.
func (s *Service) ExecutiveSummary(ctx context.Context, rfp *models.RFP, proposals []models.Proposal) SummaryResult {
	content, err := s.complete(ctx, []Message{
		{Role: "system", Content: "You are a procurement analyst writing for executives."},
		{Role: "user", Content: fmt.Sprintf(summaryPrompt, rfp.Title, rfp.Description, rfp.Budget.Amount, rfp.Budget.Currency, formatProposals(proposals))},
	})
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("empty summary")
	}
	if err != nil {
		s.logger.Printf("summary fallback: %v", err)
		return SummaryResult{Summary: fallbackSummary(rfp, proposals), Source: SourceFallback, Reason: err.Error()}
	}
	return SummaryResult{Summary: content, Source: SourceCompletion}
}

func fallbackSummary(rfp *models.RFP, proposals []models.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RFP %q received %d proposal(s).", rfp.Title, len(proposals))
	var lowest *models.Proposal
	for i := range proposals {
		if lowest == nil || proposals[i].Price.Amount < lowest.Price.Amount {
			lowest = &proposals[i]
		}
	}
	if lowest != nil {
		name := lowest.VendorID
		if lowest.Vendor != nil {
			name = lowest.Vendor.Name
		}
		fmt.Fprintf(&b, " Lowest price: %.2f %s from %s.", lowest.Price.Amount, lowest.Price.Currency, name)
	}
	if rfp.Budget.Amount > 0 {
		fmt.Fprintf(&b, " Budget: %.2f %s.", rfp.Budget.Amount, rfp.Budget.Currency)
	}
	b.WriteString(" " + manualReview + ".")
	return b.String()
}

func (s *Service) complete(ctx context.Context, messages []Message) (string, error) {
	if s.llm == nil {
		return "", ErrNoAPIKey
	}
	return s.llm.Complete(ctx, messages)
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// decodeJSON разбирает ответ модели, снимая обертку ```json ... ```
func decodeJSON(content string, v interface{}) error {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); m != nil {
		content = m[1]
	}
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}

func normalizePriority(p models.Priority) models.Priority {
	switch models.Priority(strings.ToLower(strings.TrimSpace(string(p)))) {
	case models.PriorityHigh:
		return models.PriorityHigh
	case models.PriorityLow:
		return models.PriorityLow
	}
	return models.PriorityMedium
}

func clampScore(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}

func formatRequirements(reqs []models.Requirement) string {
	if len(reqs) == 0 {
		return "- none specified"
	}
	var b strings.Builder
	for _, r := range reqs {
		fmt.Fprintf(&b, "- [%s] %s\n", r.Priority, r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatProposals(proposals []models.Proposal) string {
	var b strings.Builder
	for _, p := range proposals {
		vendor := p.VendorID
		if p.Vendor != nil {
			vendor = p.Vendor.Name + " (" + p.Vendor.Company + ")"
		}
		fmt.Fprintf(&b, "- id=%s vendor=%s price=%.2f %s\n", p.ID, vendor, p.Price.Amount, p.Price.Currency)
		if p.Analysis != nil {
			fmt.Fprintf(&b, "  score=%.0f summary=%s\n", p.Analysis.Score, p.Analysis.Summary)
		}
		fmt.Fprintf(&b, "  %s\n", truncate(p.ProposalText, 1500))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
