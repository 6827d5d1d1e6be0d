package ai

import (
	"context"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// Score is a model's reading of one document
type Score struct {
	Value   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// Scorer scores the sentiment of a single document
type Scorer interface {
	// Score returns a value in [-1, 1] with a one-line summary
	Score(ctx context.Context, doc models.RawDocument) (Score, error)

	// GetName returns scorer name
	GetName() string
}

// CompletionOptions tunes one chat completion
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
	JSON        bool
}

// Completer sends a system and user prompt to a chat model
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error)
}
