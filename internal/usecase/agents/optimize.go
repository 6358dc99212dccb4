package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"joby/internal/domain"
)

// OptimizationInput targets a tailoring run at one job.
type OptimizationInput struct {
	UserID    string
	Profile   domain.CandidateProfile
	TargetJob domain.JobMatch
}

// OptimizationOutput carries the tailored CV and its ATS assessment.
type OptimizationOutput struct {
	TailoredCV       *domain.TailoredCV
	ATSScore         int
	GapsIdentified   []string
	ImprovementsMade []string
	Ready            bool
}

// readyATSThreshold is the score at or above which a tailored CV is
// considered submission-ready.
const readyATSThreshold = 75

const optimizeSystemPrompt = `You are an expert ATS optimization specialist and CV writer.
Tailor the candidate's CV for the target job description.

PROCESS:
1. Extract job-specific keywords and required skills.
2. Identify gaps between the candidate profile and the job requirements.
3. Rewrite experience bullets to mirror job language and emphasize relevant achievements.
4. Reorder skills to front-load the most relevant ones.
5. Rewrite the career summary to align with the target role.

ATS COMPATIBILITY RULES: no tables, graphics, or columns; standard section headers; high keyword density for the target role.

OUTPUT a single JSON object with:
- "tailored_cv" (structured exactly like the candidate profile, updated)
- "ats_score" (0-100, a realistic reflection of the match)
- "gaps_identified" (list of strings)
- "improvements_made" (list of strings)
- "career_summary_updated" (string)`

// optimizeResult mirrors the model's JSON output.
type optimizeResult struct {
	TailoredCV           *domain.CandidateProfile `json:"tailored_cv"`
	ATSScore             int                      `json:"ats_score"`
	GapsIdentified       []string                 `json:"gaps_identified"`
	ImprovementsMade     []string                 `json:"improvements_made"`
	CareerSummaryUpdated string                   `json:"career_summary_updated"`
}

// OptimizeAgent tailors the candidate's CV for a specific job and
// persists the resulting artifact under a composite key.
type OptimizeAgent struct {
	llm    domain.LLMProvider
	store  domain.ProfileStore
	model  string
	logger *slog.Logger
}

// NewOptimizeAgent creates the CV optimization agent.
func NewOptimizeAgent(llm domain.LLMProvider, store domain.ProfileStore, model string, logger *slog.Logger) *OptimizeAgent {
	return &OptimizeAgent{llm: llm, store: store, model: model, logger: logger}
}

// Invoke implements domain.Agent.
func (a *OptimizeAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(OptimizationInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("OptimizeAgent.Invoke", domain.ErrInvalidInput, "payload is not OptimizationInput")), nil
	}
	if input.TargetJob.JobID == "" {
		return envelope.Failed(domain.NewDomainError("OptimizeAgent.Invoke", domain.ErrInvalidInput, "target job is required")), nil
	}

	profileJSON, err := json.MarshalIndent(input.Profile, "", "  ")
	if err != nil {
		return envelope.Failed(err), nil
	}

	userPrompt := "TARGET JOB:\nTitle: " + input.TargetJob.Title +
		"\nCompany: " + input.TargetJob.Company +
		"\nDescription: " + jobDescription(input.TargetJob) +
		"\n\nCANDIDATE PROFILE:\n" + string(profileJSON)

	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:    a.model,
		System:   optimizeSystemPrompt,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: userPrompt}},
	})
	if err != nil {
		a.logger.Warn("cv optimization llm call failed", "error", err)
		return ctxFailure(envelope, err)
	}

	raw := extractJSONBlock(resp.Content)
	if raw == nil {
		return envelope.Failed(domain.NewDomainError("OptimizeAgent.Invoke", domain.ErrProviderError, "no JSON object in model response")), nil
	}
	var result optimizeResult
	if err := json.Unmarshal(raw, &result); err != nil || result.TailoredCV == nil {
		return envelope.Failed(domain.NewDomainError("OptimizeAgent.Invoke", domain.ErrProviderError, "tailored CV JSON malformed")), nil
	}

	if result.CareerSummaryUpdated != "" {
		result.TailoredCV.CareerSummary = result.CareerSummaryUpdated
	}
	tailored := &domain.TailoredCV{
		Profile:        *result.TailoredCV,
		CareerSummary:  result.TailoredCV.CareerSummary,
		TargetJobID:    input.TargetJob.JobID,
		TargetJobTitle: input.TargetJob.Title,
	}

	artifactID := input.UserID + ":" + input.TargetJob.JobID
	artifact := map[string]any{
		"userId":       input.UserID,
		"jobId":        input.TargetJob.JobID,
		"tailoredCv":   tailored,
		"atsScore":     result.ATSScore,
		"improvements": result.ImprovementsMade,
		"timestamp":    time.Now().UTC(),
	}
	if err := a.store.Put(ctx, domain.IndexTailoredCVs, artifactID, artifact); err != nil {
		a.logger.Warn("failed to persist tailored cv", "id", artifactID, "error", err)
	}

	return envelope.Success(OptimizationOutput{
		TailoredCV:       tailored,
		ATSScore:         result.ATSScore,
		GapsIdentified:   result.GapsIdentified,
		ImprovementsMade: result.ImprovementsMade,
		Ready:            result.ATSScore >= readyATSThreshold,
	}), nil
}

func jobDescription(job domain.JobMatch) string {
	if job.Description != "" {
		return job.Description
	}
	return "Refer to title"
}

var _ domain.Agent = (*OptimizeAgent)(nil)
