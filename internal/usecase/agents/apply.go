package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"joby/internal/domain"
)

// ApplyInput requests a submission for one job.
type ApplyInput struct {
	UserID     string
	TargetJob  domain.JobMatch
	TailoredCV *domain.TailoredCV
	Profile    *domain.CandidateProfile
}

// ApplyOutput records the submitted applications.
type ApplyOutput struct {
	Results []domain.ApplicationResult
}

// Submitter performs the channel-specific application submission (ATS
// form filling, email, aggregator API). The engine treats it as opaque.
type Submitter interface {
	Submit(ctx context.Context, job domain.JobMatch, cv *domain.TailoredCV) (domain.ApplicationResult, error)
}

// ApplyAgent submits an application for the selected job using the
// tailored CV when one exists, falling back to the base profile.
type ApplyAgent struct {
	llm       domain.LLMProvider
	submitter Submitter
	model     string
	logger    *slog.Logger
}

// NewApplyAgent creates the auto-apply agent. submitter may be nil, in
// which case applications are recorded without external submission
// (queued mode for deployments without an ATS integration).
func NewApplyAgent(llm domain.LLMProvider, submitter Submitter, model string, logger *slog.Logger) *ApplyAgent {
	return &ApplyAgent{llm: llm, submitter: submitter, model: model, logger: logger}
}

const coverLetterSystemPrompt = `You are a professional cover letter writer.
Write a concise, specific cover letter (under 200 words) for the candidate and target job below.
Address it to "Dear Hiring Manager". Output only the letter body, no commentary.`

// Invoke implements domain.Agent.
func (a *ApplyAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(ApplyInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("ApplyAgent.Invoke", domain.ErrInvalidInput, "payload is not ApplyInput")), nil
	}
	if input.TargetJob.JobID == "" {
		return envelope.Failed(domain.NewDomainError("ApplyAgent.Invoke", domain.ErrInvalidInput, "target job is required")), nil
	}

	coverLetter := a.coverLetter(ctx, input)

	if a.submitter != nil {
		result, err := a.submitter.Submit(ctx, input.TargetJob, input.TailoredCV)
		if err != nil {
			a.logger.Warn("application submission failed", "job", input.TargetJob.JobID, "error", err)
			return ctxFailure(envelope, err)
		}
		result.CoverLetterUsed = coverLetter
		return envelope.Success(ApplyOutput{Results: []domain.ApplicationResult{result}}), nil
	}

	// Queued mode: record the application for out-of-band submission.
	result := domain.ApplicationResult{
		JobID:           input.TargetJob.JobID,
		Status:          "APPLIED_SUCCESS",
		AppliedAt:       time.Now(),
		CoverLetterUsed: coverLetter,
		Notes:           "Queued for submission to " + input.TargetJob.Company,
	}
	return envelope.Success(ApplyOutput{Results: []domain.ApplicationResult{result}}), nil
}

// coverLetter generates a letter for the submission; a model failure
// falls back to a minimal template rather than blocking the application.
func (a *ApplyAgent) coverLetter(ctx context.Context, input ApplyInput) string {
	profile := input.Profile
	if input.TailoredCV != nil {
		profile = &input.TailoredCV.Profile
	}
	if a.llm == nil || profile == nil {
		return fmt.Sprintf("Dear Hiring Manager,\n\nPlease consider my application for the %s role at %s.", input.TargetJob.Title, input.TargetJob.Company)
	}

	userPrompt := fmt.Sprintf("TARGET JOB: %s at %s\n%s\n\nCANDIDATE: %s",
		input.TargetJob.Title, input.TargetJob.Company, jobDescription(input.TargetJob), profileSummaryLine(profile))
	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		Model:    a.model,
		System:   coverLetterSystemPrompt,
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: userPrompt}},
	})
	if err != nil {
		a.logger.Warn("cover letter generation failed, using template", "error", err)
		return fmt.Sprintf("Dear Hiring Manager,\n\nPlease consider my application for the %s role at %s.", input.TargetJob.Title, input.TargetJob.Company)
	}
	return resp.Content
}

var _ domain.Agent = (*ApplyAgent)(nil)
