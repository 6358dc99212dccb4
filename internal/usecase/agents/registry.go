// Package agents implements the specialized capabilities invoked by the
// session orchestrator through the task envelope protocol.
package agents

import (
	"context"
	"errors"
	"sync"

	"joby/internal/domain"
)

// Registry maps agent targets to implementations so the orchestrator can
// dispatch envelopes polymorphically.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]domain.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]domain.Agent)}
}

// Register adds or replaces an agent under the given target name.
func (r *Registry) Register(target string, agent domain.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[target] = agent
}

// Get returns the agent registered under target.
func (r *Registry) Get(target string) (domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[target]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrAgentNotFound, target)
	}
	return agent, nil
}

// Invoke dispatches the envelope to its target agent. An unregistered
// target yields a failed response rather than an error: dispatch faults
// are agent failures from the orchestrator's point of view.
func (r *Registry) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	agent, err := r.Get(envelope.AgentTarget)
	if err != nil {
		return envelope.Failed(err), nil
	}
	return agent.Invoke(ctx, envelope)
}

// ctxFailure splits a post-call error into (response, error) per the
// agent contract: context cancellation and deadline expiry surface as
// errors, everything else becomes a failed response value.
func ctxFailure(envelope domain.TaskEnvelope, err error) (domain.AgentResponse, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.AgentResponse{}, err
	}
	return envelope.Failed(err), nil
}
