package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/gemini"
)

// RecentInteractionLimit caps the history sent to the model.
const RecentInteractionLimit = 10

const maxTranscriptInPrompt = 4000

// AssistantResult is what the ai endpoints relay. Data is the parsed object,
// or {"raw": text} when the reply could not be parsed.
type AssistantResult struct {
	Data  map[string]any
	Raw   bool
	Lossy bool
}

type AnalyzeTranscriptInput struct {
	Transcript    string     `json:"transcript"`
	InteractionID *uuid.UUID `json:"interaction_id,omitempty"`
}

type EstimateDealValueInput struct {
	LeadID     uuid.UUID `json:"lead_id"`
	Transcript string    `json:"transcript,omitempty"`
}

type DraftInput struct {
	LeadID  uuid.UUID `json:"lead_id"`
	Context string    `json:"context,omitempty"`
}

type ResearchLeadInput struct {
	LeadID   *uuid.UUID `json:"lead_id,omitempty"`
	Company  string     `json:"company,omitempty"`
	LinkedIn string     `json:"linkedin,omitempty"`
	URL      string     `json:"url,omitempty"`
}

type DiscoverLeadsInput struct {
	ICP   string `json:"icp"`
	Limit int    `json:"limit,omitempty"`
}

type AssistantUseCase struct {
	Model        Generator
	Leads        entity.LeadRepositoryInterface
	Interactions entity.InteractionRepositoryInterface
	Logger       *zap.Logger
}

// NewAssistantUseCase accepts a nil model; every flow then fails with
// gemini.ErrNotConfigured after input validation.
func NewAssistantUseCase(model Generator, leads entity.LeadRepositoryInterface, interactions entity.InteractionRepositoryInterface, logger *zap.Logger) *AssistantUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantUseCase{
		Model:        model,
		Leads:        leads,
		Interactions: interactions,
		Logger:       logger,
	}
}

func (uc *AssistantUseCase) AnalyzeTranscript(ctx context.Context, input AnalyzeTranscriptInput) (*AssistantResult, error) {
	transcript := strings.TrimSpace(input.Transcript)
	if transcript == "" && input.InteractionID != nil {
		interaction, err := uc.Interactions.FindByID(ctx, *input.InteractionID)
		if err != nil {
			return nil, err
		}
		if interaction.Transcript != nil {
			transcript = strings.TrimSpace(*interaction.Transcript)
		}
	}
	if transcript == "" {
		return nil, ErrEmptyTranscript
	}

	return uc.run(ctx, OpAnalyzeTranscript, textSection("Transcript", transcript))
}

func (uc *AssistantUseCase) EstimateDealValue(ctx context.Context, input EstimateDealValueInput) (*AssistantResult, error) {
	sections, err := uc.leadContext(ctx, input.LeadID, RecentInteractionLimit)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(input.Transcript); t != "" {
		sections = append(sections, textSection("Latest transcript", truncate(t, maxTranscriptInPrompt)))
	}
	return uc.run(ctx, OpEstimateDealValue, sections...)
}

// RecommendNextActions sends the lead and its ten most recent interactions,
// newest first.
func (uc *AssistantUseCase) RecommendNextActions(ctx context.Context, leadID uuid.UUID) (*AssistantResult, error) {
	sections, err := uc.leadContext(ctx, leadID, RecentInteractionLimit)
	if err != nil {
		return nil, err
	}
	return uc.run(ctx, OpRecommendActions, sections...)
}

func (uc *AssistantUseCase) DraftColdEmail(ctx context.Context, input DraftInput) (*AssistantResult, error) {
	return uc.draft(ctx, OpDraftColdEmail, input, 0)
}

func (uc *AssistantUseCase) DraftLinkedIn(ctx context.Context, input DraftInput) (*AssistantResult, error) {
	return uc.draft(ctx, OpDraftLinkedIn, input, 0)
}

// DraftFollowUp includes the last interaction so the email can reference it.
func (uc *AssistantUseCase) DraftFollowUp(ctx context.Context, input DraftInput) (*AssistantResult, error) {
	return uc.draft(ctx, OpDraftFollowUp, input, 1)
}

func (uc *AssistantUseCase) draft(ctx context.Context, op Operation, input DraftInput, history int) (*AssistantResult, error) {
	sections, err := uc.leadContext(ctx, input.LeadID, history)
	if err != nil {
		return nil, err
	}
	if c := strings.TrimSpace(input.Context); c != "" {
		sections = append(sections, textSection("Additional context", c))
	}
	return uc.run(ctx, op, sections...)
}

func (uc *AssistantUseCase) ResearchLead(ctx context.Context, input ResearchLeadInput) (*AssistantResult, error) {
	var sections []section
	if input.LeadID != nil {
		lead, err := uc.lookupLead(ctx, *input.LeadID)
		if err != nil {
			return nil, err
		}
		sections = append(sections, jsonSection("Lead", promptLead(lead)))
	}

	target := map[string]string{}
	for k, v := range map[string]string{"company": input.Company, "linkedin": input.LinkedIn, "url": input.URL} {
		if v = strings.TrimSpace(v); v != "" {
			target[k] = v
		}
	}
	if len(target) == 0 && len(sections) == 0 {
		return nil, ErrMissingCompany
	}
	if len(target) > 0 {
		sections = append(sections, jsonSection("Research target", target))
	}
	return uc.run(ctx, OpResearchLead, sections...)
}

func (uc *AssistantUseCase) DiscoverLeads(ctx context.Context, input DiscoverLeadsInput) (*AssistantResult, error) {
	icp := strings.TrimSpace(input.ICP)
	if icp == "" {
		return nil, ErrMissingICP
	}
	limit := input.Limit
	if limit <= 0 || limit > 25 {
		limit = 10
	}
	return uc.run(ctx, OpDiscoverLeads,
		textSection("Ideal customer profile", icp),
		textSection("Count", fmt.Sprintf("Return at most %d leads.", limit)),
	)
}

// leadContext resolves the lead (404 before any model call) and up to
// history recent interactions.
func (uc *AssistantUseCase) leadContext(ctx context.Context, leadID uuid.UUID, history int) ([]section, error) {
	lead, err := uc.lookupLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	sections := []section{jsonSection("Lead", promptLead(lead))}
	if history <= 0 {
		return sections, nil
	}

	recent, err := uc.Interactions.ListRecentByLead(ctx, leadID, history)
	if err != nil {
		return nil, &TechnicalError{Code: "INTERACTIONS_UNAVAILABLE", Message: "load recent interactions", Err: err}
	}
	items := make([]promptInteraction, 0, len(recent))
	for _, i := range recent {
		items = append(items, toPromptInteraction(i))
	}
	return append(sections, jsonSection("Recent interactions (newest first)", items)), nil
}

func (uc *AssistantUseCase) lookupLead(ctx context.Context, leadID uuid.UUID) (*entity.Lead, error) {
	if leadID == uuid.Nil {
		return nil, ErrMissingLeadID
	}
	return uc.Leads.FindByID(ctx, leadID)
}

func (uc *AssistantUseCase) run(ctx context.Context, op Operation, sections ...section) (*AssistantResult, error) {
	if uc.Model == nil {
		return nil, gemini.ErrNotConfigured
	}

	f := formats[op]
	start := time.Now()
	text, err := uc.Model.Generate(ctx, buildPrompt(op, sections...), f.schema)
	if err != nil {
		uc.Logger.Warn("model call failed", zap.String("operation", string(op)), zap.Error(err))
		return nil, err
	}

	log := uc.Logger.With(zap.String("operation", string(op)), zap.Duration("elapsed", time.Since(start)))

	res, ok := gemini.ExtractObject(text)
	if !ok || !gemini.HasKeys(res.Object, f.required...) {
		log.Warn("model reply is not the expected JSON, relaying raw text", zap.Int("length", len(text)))
		return &AssistantResult{Data: map[string]any{"raw": text}, Raw: true}, nil
	}
	if res.Lossy {
		log.Warn("model reply parsed from surrounding text")
	}
	log.Debug("model reply parsed")
	return &AssistantResult{Data: res.Object, Lossy: res.Lossy}, nil
}

type promptLeadView struct {
	Name     string `json:"name"`
	Company  string `json:"company"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	FitScore int    `json:"fit_score"`
}

func promptLead(l *entity.Lead) promptLeadView {
	v := promptLeadView{Name: l.Name, Company: l.Company, Email: l.Email, FitScore: l.FitScore}
	if l.Phone != nil {
		v.Phone = *l.Phone
	}
	if l.LinkedIn != nil {
		v.LinkedIn = *l.LinkedIn
	}
	return v
}

type promptInteraction struct {
	Type       string   `json:"type"`
	At         string   `json:"at"`
	Summary    string   `json:"summary,omitempty"`
	Sentiment  *float64 `json:"sentiment,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
}

func toPromptInteraction(i *entity.Interaction) promptInteraction {
	p := promptInteraction{
		Type:      string(i.Type),
		At:        i.CreatedAt.UTC().Format(time.RFC3339),
		Sentiment: i.Sentiment,
	}
	if i.Summary != nil {
		p.Summary = *i.Summary
	}
	if i.Transcript != nil {
		p.Transcript = truncate(*i.Transcript, maxTranscriptInPrompt)
	}
	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
