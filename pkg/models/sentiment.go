package models

import (
	"fmt"
	"math"
	"time"
)

// SentimentResult holds the dual-source scores produced for one document.
// Either score may be absent; a result with neither is not usable for aggregation.
type SentimentResult struct {
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	DocumentID string    `json:"corpus_id" db:"corpus_id"`
	Summary    string    `json:"summary" db:"summary"`
	NewsScore  *float64  `json:"news_score_raw" db:"news_score_raw"`
	ForumScore *float64  `json:"forum_score_raw" db:"forum_score_raw"`
}

// HasScore reports whether at least one source score is present
func (r *SentimentResult) HasScore() bool {
	return r != nil && (r.NewsScore != nil || r.ForumScore != nil)
}

// WeightConfig holds the user-adjustable source weights
type WeightConfig struct {
	NewsWeight  float64 `json:"news_weight" db:"news_weight"`
	ForumWeight float64 `json:"forum_weight" db:"forum_weight"`
}

// DefaultWeights returns the weights used when a user has not saved any
func DefaultWeights() WeightConfig {
	return WeightConfig{NewsWeight: 0.7, ForumWeight: 0.3}
}

// Validate checks that both weights lie in [0, 1]
func (w WeightConfig) Validate() error {
	if math.IsNaN(w.NewsWeight) || w.NewsWeight < 0 || w.NewsWeight > 1 {
		return fmt.Errorf("news_weight must be between 0 and 1, got %v", w.NewsWeight)
	}
	if math.IsNaN(w.ForumWeight) || w.ForumWeight < 0 || w.ForumWeight > 1 {
		return fmt.Errorf("forum_weight must be between 0 and 1, got %v", w.ForumWeight)
	}
	return nil
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
