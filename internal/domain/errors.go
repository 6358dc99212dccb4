package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrNotFound           = fmt.Errorf("not found")
	ErrTimeout            = fmt.Errorf("operation timed out")
	ErrCacheUnavailable   = fmt.Errorf("session cache unavailable")
	ErrStoreUnavailable   = fmt.Errorf("profile store unavailable")
	ErrIdentityUnresolved = fmt.Errorf("identity resolution failed")
	ErrAgentNotFound      = fmt.Errorf("agent target not registered")
	ErrProviderError      = fmt.Errorf("llm provider error")
	ErrRateLimit          = fmt.Errorf("rate limit exceeded")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Orchestrator.Turn")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error. Returns nil if err is nil,
// enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether err is a transient fault the caller may
// retry. Identity and session-cache outages are retryable; malformed turn
// input is not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrIdentityUnresolved) ||
		errors.Is(err, ErrTimeout)
}
