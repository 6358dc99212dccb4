package domain

import (
	"context"
	"time"
)

// Priority orders task envelopes when downstream transports queue them.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ResponseStatus is the outcome classification every agent must return.
type ResponseStatus string

const (
	// StatusSuccess means the agent produced a complete output payload.
	StatusSuccess ResponseStatus = "success"
	// StatusPartial means the agent needs a clarification from the user;
	// the orchestrator surfaces the output without advancing state.
	StatusPartial ResponseStatus = "partial"
	// StatusFailed means the agent failed internally. Failures travel as
	// values, never as raised errors past the orchestrator boundary.
	StatusFailed ResponseStatus = "failed"
	// StatusRequiresHuman means a human must intervene before the flow
	// can continue.
	StatusRequiresHuman ResponseStatus = "requires_human"
	// StatusSkipped means the agent determined there was nothing to do.
	StatusSkipped ResponseStatus = "skipped"
)

// TaskEnvelope is the uniform message passed to every agent invocation.
// One envelope identifies a turn: the orchestrator mints a single task ID
// per inbound turn and reuses it across every agent call in that turn.
// Envelopes are never mutated after construction.
type TaskEnvelope struct {
	TaskID       string     `json:"task_id"`
	AgentTarget  string     `json:"agent_target"`
	InputPayload any        `json:"input_payload"`
	Priority     Priority   `json:"priority"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// AgentResponse is the uniform reply every agent returns.
type AgentResponse struct {
	TaskID        string            `json:"task_id"`
	Status        ResponseStatus    `json:"status"`
	OutputPayload any               `json:"output_payload"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope constructs a task envelope. It returns ErrInvalidInput when
// the agent target or task ID is missing instead of deferring the failure
// to the agent call.
func NewEnvelope(agentTarget string, input any, priority Priority, taskID string) (TaskEnvelope, error) {
	if agentTarget == "" {
		return TaskEnvelope{}, NewDomainError("NewEnvelope", ErrInvalidInput, "empty agent target")
	}
	if taskID == "" {
		return TaskEnvelope{}, NewDomainError("NewEnvelope", ErrInvalidInput, "empty task id")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	return TaskEnvelope{
		TaskID:       taskID,
		AgentTarget:  agentTarget,
		InputPayload: input,
		Priority:     priority,
		Timestamp:    time.Now(),
	}, nil
}

// Failed builds a failed response carrying the envelope's task ID.
func (e TaskEnvelope) Failed(err error) AgentResponse {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return AgentResponse{
		TaskID: e.TaskID,
		Status: StatusFailed,
		Error:  msg,
	}
}

// Success builds a successful response carrying the envelope's task ID.
func (e TaskEnvelope) Success(output any) AgentResponse {
	return AgentResponse{
		TaskID:        e.TaskID,
		Status:        StatusSuccess,
		OutputPayload: output,
	}
}

// Agent is the contract every specialized capability implements. An agent
// must not mutate the envelope, must echo the envelope's task ID on the
// response, and must map internal failures to StatusFailed rather than
// returning an error. The error return is reserved for context
// cancellation and deadline expiry.
//
// Agents may perform external I/O but must tolerate re-invocation with the
// same task ID: delivery upstream is at-least-once.
type Agent interface {
	Invoke(ctx context.Context, envelope TaskEnvelope) (AgentResponse, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, envelope TaskEnvelope) (AgentResponse, error)

// Invoke implements Agent.
func (f AgentFunc) Invoke(ctx context.Context, envelope TaskEnvelope) (AgentResponse, error) {
	return f(ctx, envelope)
}

// Agent target names used by the orchestrator's state handlers.
const (
	TargetCVAnalysis     = "cv-analysis-agent"
	TargetJobMatching    = "job-matching-agent"
	TargetCVOptimization = "cv-optimization-agent"
	TargetAutoApply      = "auto-apply-agent"
	TargetCommunication  = "communication-agent"
	TargetChat           = "chat-agent"
	TargetLearning       = "learning-agent"
)
