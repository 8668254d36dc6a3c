package ai

import (
	"context"

	"jobapplicator/internal/types"
)

// FormDescriber turns a rendered application page into a FormDescription.
// Implementations return a FormUnparseable AppError when the model output
// cannot be used; callers treat that as "no form".
type FormDescriber interface {
	Describe(ctx context.Context, page types.PageSnapshot) (*types.FormDescription, *TokenUsage, error)
	GetModelInfo() *ModelInfo
	Close() error
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Provider string         `json:"provider"`
	Name     string         `json:"name"`
	Breaker  map[string]any `json:"circuitBreaker,omitempty"`
	Healthy  bool           `json:"healthy"`
}
