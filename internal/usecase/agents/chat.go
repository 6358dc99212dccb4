package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"joby/internal/domain"
)

// ChatInput seeds the generic conversational fallback with the session's
// current phase and context so the model can tailor tone and guidance
// without owning any transition logic.
type ChatInput struct {
	State            domain.State
	Profile          *domain.CandidateProfile
	MatchCount       int
	ApplicationCount int
	History          []domain.HistoryEntry
	UserInput        string
}

// ChatOutput carries the model's conversational reply.
type ChatOutput struct {
	Reply string
}

// ChatAgent is the generic conversational agent used whenever a state
// handler's trigger phrases do not match the inbound input.
type ChatAgent struct {
	llm     domain.LLMProvider
	counter domain.TokenCounter
	budget  int
	logger  *slog.Logger
}

// NewChatAgent creates the conversational agent. budget bounds the
// history slice handed to the model, in tokens.
func NewChatAgent(llm domain.LLMProvider, counter domain.TokenCounter, budget int, logger *slog.Logger) *ChatAgent {
	if budget <= 0 {
		budget = 4000
	}
	return &ChatAgent{llm: llm, counter: counter, budget: budget, logger: logger}
}

// Invoke implements domain.Agent.
func (a *ChatAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(ChatInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("ChatAgent.Invoke", domain.ErrInvalidInput, "payload is not ChatInput")), nil
	}

	userInput := input.UserInput
	if userInput == "" {
		userInput = "Hello"
	}

	messages := a.trimHistory(input.History)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userInput})

	resp, err := a.llm.Chat(ctx, domain.ChatRequest{
		System:   systemPrompt(input),
		Messages: messages,
	})
	if err != nil {
		a.logger.Warn("chat agent llm call failed", "error", err)
		return ctxFailure(envelope, err)
	}

	return envelope.Success(ChatOutput{Reply: resp.Content}), nil
}

// trimHistory converts session history to chat messages, dropping the
// oldest entries until the slice fits the token budget.
func (a *ChatAgent) trimHistory(history []domain.HistoryEntry) []domain.ChatMessage {
	start := 0
	if a.counter != nil {
		total := 0
		for i := len(history) - 1; i >= 0; i-- {
			total += a.counter.Count(history[i].Content)
			if total > a.budget {
				start = i + 1
				break
			}
		}
	}

	messages := make([]domain.ChatMessage, 0, len(history)-start)
	for _, h := range history[start:] {
		messages = append(messages, domain.ChatMessage{Role: h.Role, Content: h.Content})
	}
	return messages
}

func systemPrompt(input ChatInput) string {
	profileStatus := "Not yet uploaded"
	profileDetails := "N/A"
	if input.Profile != nil {
		profileStatus = "Analyzed"
		profileDetails = profileSummaryLine(input.Profile)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are Joby, a dedicated one-on-one AI career scout and the user's personal career coach.\n")
	fmt.Fprintf(&b, "You are currently in the '%s' phase of the journey.\n\n", input.State)
	fmt.Fprintf(&b, "CONTEXT:\n")
	fmt.Fprintf(&b, "- Profile: %s\n", profileStatus)
	fmt.Fprintf(&b, "- Candidate details: %s\n", profileDetails)
	fmt.Fprintf(&b, "- Recent matches: %d found.\n", input.MatchCount)
	fmt.Fprintf(&b, "- Recent applications: %d sent.\n\n", input.ApplicationCount)
	b.WriteString(`INSTRUCTIONS:
- Respond naturally to the user's message in a warm, personal, one-to-one tone ("I" and "you").
- Answer specific questions about the candidate's skills, experience, or potential career paths from the candidate details.
- Gently guide them back to the next step if they seem lost:
    * ONBOARDING -> upload a CV directly here in this chat
    * MATCHING/OPTIMIZATION -> confirm the suggested role so I can tailor the CV
    * APPLY -> confirm so I can submit the application
- Keep replies brief (chat message length).`)
	return b.String()
}

func profileSummaryLine(p *domain.CandidateProfile) string {
	parts := []string{p.FullName}
	if p.CareerLevel != "" {
		parts = append(parts, p.CareerLevel)
	}
	if p.PrimaryDomain != "" {
		parts = append(parts, p.PrimaryDomain)
	}
	if len(p.Skills) > 0 {
		parts = append(parts, "skills: "+strings.Join(p.Skills, ", "))
	}
	if p.CareerSummary != "" {
		parts = append(parts, p.CareerSummary)
	}
	return strings.Join(parts, " | ")
}

var _ domain.Agent = (*ChatAgent)(nil)
