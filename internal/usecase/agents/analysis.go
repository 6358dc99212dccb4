package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"joby/internal/domain"
)

// AnalysisInput carries the uploaded CV into the analysis agent. Either
// CVText or Document must be present.
type AnalysisInput struct {
	UserID   string
	CVText   string
	Document *domain.DocumentAttachment
}

// AnalysisOutput is the structured result of a CV analysis.
type AnalysisOutput struct {
	Profile       *domain.CandidateProfile
	Quality       domain.QualityScore
	Suggestions   []string
	Clarification string
}

const analysisSystemPrompt = `You are an expert HR analyst. Parse the attached CV and extract a deeply structured candidate profile.

Your response MUST follow this structure EXACTLY:

✅ Structured Profile
` + "```json" + `
{
  "fullname": "string",
  "contactInfo": { "email": "string | null", "phone": "string | null", "address": "string | null" },
  "experience": [ { "job_title": "string", "company": "string", "duration": "string", "responsibilities": ["string"] } ],
  "education": [ { "degree": "string", "institution": "string", "graduation_year": "string" } ],
  "skills": ["string"],
  "technical_skills_ranked": ["string"],
  "soft_skills": ["string"],
  "certifications": ["string"],
  "languages": ["string"],
  "career_level": "string",
  "primary_domain": "string",
  "secondary_domains": ["string"],
  "inferred_goals": "string",
  "years_of_experience": number,
  "career_trajectory": "string",
  "career_summary": "string"
}
` + "```" + `

📊 CV Quality Score
Score: X/100
Reasoning: [Short explanation]

🚀 Improvement Suggestions
1. [Suggestion 1]
2. [Suggestion 2]
3. [Suggestion 3]

❓ Clarification Question
[If critical information is missing, ask the user clearly here. Otherwise, state "None"]`

// AnalysisAgent extracts a structured candidate profile from an uploaded
// CV, scores its quality, and persists the resulting snapshot to the
// profile store. Decoding is lenient best-effort: a response with a
// clarification question degrades to a partial status instead of failing.
type AnalysisAgent struct {
	llm    domain.LLMProvider
	store  domain.ProfileStore
	model  string
	logger *slog.Logger
}

// NewAnalysisAgent creates the CV analysis agent. model may be empty to
// use the provider default.
func NewAnalysisAgent(llm domain.LLMProvider, store domain.ProfileStore, model string, logger *slog.Logger) *AnalysisAgent {
	return &AnalysisAgent{llm: llm, store: store, model: model, logger: logger}
}

// Invoke implements domain.Agent.
func (a *AnalysisAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(AnalysisInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("AnalysisAgent.Invoke", domain.ErrInvalidInput, "payload is not AnalysisInput")), nil
	}
	if input.UserID == "" || (input.CVText == "" && input.Document == nil) {
		return envelope.Failed(domain.NewDomainError("AnalysisAgent.Invoke", domain.ErrInvalidInput, "userId and either cvText or document are required")), nil
	}

	userPrompt := input.CVText
	if userPrompt == "" {
		userPrompt = "Analyze the attached CV document."
	}

	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:    a.model,
		System:   analysisSystemPrompt,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: userPrompt}},
		Document: input.Document,
	})
	if err != nil {
		a.logger.Warn("cv analysis llm call failed", "error", err)
		return ctxFailure(envelope, err)
	}

	output := decodeAnalysis(resp.Content)

	if output.Profile != nil {
		snapshot := domain.ProfileSnapshot{
			UserID:        input.UserID,
			FullName:      output.Profile.FullName,
			PrimaryDomain: output.Profile.PrimaryDomain,
			Profile:       output.Profile,
			Quality:       output.Quality,
			Suggestions:   output.Suggestions,
			SearchContent: snapshotSearchContent(output.Profile),
			ProcessedAt:   time.Now(),
			TaskID:        envelope.TaskID,
		}
		// Best effort: a degraded profile store must not fail the analysis.
		if err := a.store.Put(ctx, domain.IndexCandidateProfiles, input.UserID, snapshot); err != nil {
			a.logger.Warn("failed to persist candidate profile", "user", input.UserID, "error", err)
		}
	}

	status := domain.StatusSuccess
	if output.Clarification != "" {
		status = domain.StatusPartial
	}
	return domain.AgentResponse{
		TaskID:        envelope.TaskID,
		Status:        status,
		OutputPayload: output,
	}, nil
}

func snapshotSearchContent(p *domain.CandidateProfile) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s %s",
		p.FullName, p.PrimaryDomain, strings.Join(p.Skills, " "), p.CareerSummary))
}

var _ domain.Agent = (*AnalysisAgent)(nil)
