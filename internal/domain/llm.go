package domain

import (
	"context"
	"time"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single message in an LLM conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DocumentAttachment carries an uploaded document into a model call.
type DocumentAttachment struct {
	Name   string
	Format DocumentFormat
	Bytes  []byte
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []ChatMessage       `json:"messages"`
	Document    *DocumentAttachment `json:"-"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is returned from an LLM provider.
type ChatResponse struct {
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	Usage     Usage     `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// LLMProvider is the language-model invocation client consumed by the
// content-generation agents.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}

// TokenCounter estimates token usage for history budgeting.
type TokenCounter interface {
	Count(text string) int
}
