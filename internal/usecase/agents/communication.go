package agents

import (
	"context"
	"fmt"

	"joby/internal/domain"
)

// Communication message kinds.
const (
	MessageGreeting = "GREETING"
	MessageReport   = "REPORT"
)

// CommunicationInput selects and parameterizes a user-facing message.
type CommunicationInput struct {
	Type      string
	IsNew     bool
	FirstName string

	// Report fields.
	Applications []domain.ApplicationResult
	Matches      []domain.JobMatch
}

// CommunicationOutput carries the rendered message.
type CommunicationOutput struct {
	Message string
}

// CommunicationAgent renders greetings and report summaries. It is a pure
// transform: no external I/O, deterministic for a given input.
type CommunicationAgent struct{}

// NewCommunicationAgent creates the communication agent.
func NewCommunicationAgent() *CommunicationAgent { return &CommunicationAgent{} }

// Invoke implements domain.Agent.
func (a *CommunicationAgent) Invoke(_ context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(CommunicationInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("CommunicationAgent.Invoke", domain.ErrInvalidInput, "payload is not CommunicationInput")), nil
	}

	var message string
	switch input.Type {
	case MessageGreeting:
		message = greeting(input)
	case MessageReport:
		message = report(input)
	default:
		return envelope.Failed(domain.NewDomainError("CommunicationAgent.Invoke", domain.ErrInvalidInput, "unknown message type "+input.Type)), nil
	}

	return envelope.Success(CommunicationOutput{Message: message}), nil
}

func greeting(input CommunicationInput) string {
	if input.IsNew {
		name := ""
		if input.FirstName != "" {
			name = " " + input.FirstName
		}
		return fmt.Sprintf("Hello%s! 🎯 I'm Joby, your personal career scout. "+
			"I help you find your dream job by analyzing your CV, matching you with roles, and applying on your behalf.\n\n"+
			"Please upload your CV (PDF or DOCX) to get started!", name)
	}
	return "Welcome back! 🎯 Ready to continue your job search? How can I help you today?"
}

func report(input CommunicationInput) string {
	msg := fmt.Sprintf("Hi! 🎯 Here's your Joby report:\n✅ %d application(s) sent\n🔎 %d match(es) on file",
		len(input.Applications), len(input.Matches))
	if len(input.Matches) > 0 {
		top := input.Matches[0]
		msg += fmt.Sprintf("\nYour top match is %s at %s.", top.Title, top.Company)
	}
	return msg
}

var _ domain.Agent = (*CommunicationAgent)(nil)
