package llm

import (
	"github.com/pkoukk/tiktoken-go"

	"joby/internal/domain"
)

// TiktokenCounter implements domain.TokenCounter on a tiktoken encoding.
// Bedrock models do not publish tokenizers; cl100k_base is close enough
// for history budgeting, which only needs a stable upper-bound estimate.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter returns a counter for the cl100k_base encoding. When
// the encoding data is unavailable (offline first run), a bytes/4
// heuristic is used instead.
func NewTokenCounter() *TiktokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TiktokenCounter{}
	}
	return &TiktokenCounter{enc: enc}
}

// Count implements domain.TokenCounter.
func (c *TiktokenCounter) Count(text string) int {
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

var _ domain.TokenCounter = (*TiktokenCounter)(nil)
