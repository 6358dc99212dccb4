package agents

import (
	"context"
	"log/slog"
	"strings"

	"joby/internal/domain"
)

// LearningInput carries the user feedback to fold into future matching.
type LearningInput struct {
	UserID       string
	Feedback     string
	Profile      *domain.CandidateProfile
	Applications []domain.ApplicationResult
}

// LearningOutput summarizes how the feedback was applied.
type LearningOutput struct {
	Acknowledgement string   `json:"acknowledgement"`
	Adjustments     []string `json:"adjustments"`
}

// LearningAgent records user feedback against the candidate profile so
// later matching rounds can bias toward it. The current model is a
// simple preference annotation persisted with the profile snapshot.
type LearningAgent struct {
	store  domain.ProfileStore
	logger *slog.Logger
}

func NewLearningAgent(store domain.ProfileStore, logger *slog.Logger) *LearningAgent {
	return &LearningAgent{store: store, logger: logger}
}

// Invoke implements domain.Agent.
func (a *LearningAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(LearningInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("LearningAgent.Invoke", domain.ErrInvalidInput, "payload is not LearningInput")), nil
	}
	if strings.TrimSpace(input.Feedback) == "" {
		return envelope.Failed(domain.NewDomainError("LearningAgent.Invoke", domain.ErrInvalidInput, "feedback is required")), nil
	}

	adjustments := deriveAdjustments(input.Feedback)

	if input.UserID != "" && a.store != nil {
		record := map[string]any{
			"userId":        input.UserID,
			"feedback":      input.Feedback,
			"adjustments":   adjustments,
			"searchContent": input.Feedback,
		}
		if err := a.store.Put(ctx, domain.IndexUserSessions, input.UserID+":feedback", record); err != nil {
			a.logger.Warn("feedback persistence failed", "user", input.UserID, "error", err)
		}
	}

	return envelope.Success(LearningOutput{
		Acknowledgement: "Thanks! I've noted your feedback and will tune future matches accordingly.",
		Adjustments:     adjustments,
	}), nil
}

// deriveAdjustments maps coarse feedback signals onto matching knobs.
func deriveAdjustments(feedback string) []string {
	lower := strings.ToLower(feedback)
	var out []string
	switch {
	case strings.Contains(lower, "remote"):
		out = append(out, "prefer remote positions")
	case strings.Contains(lower, "salary"), strings.Contains(lower, "pay"):
		out = append(out, "raise salary floor")
	case strings.Contains(lower, "senior"), strings.Contains(lower, "junior"):
		out = append(out, "adjust seniority band")
	}
	if len(out) == 0 {
		out = append(out, "general preference noted")
	}
	return out
}

var _ domain.Agent = (*LearningAgent)(nil)
