package ai

import (
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

// NewFromConfig returns the model scorer and narrator when an API key is set.
// Without a key it returns the keyword scorer and a nil narrator.
func NewFromConfig(cfg *config.AIConfig, renderer templates.Renderer) (Scorer, *IndicatorNarrator) {
	if !cfg.UseModel() {
		logger.Warn("AI API key not set, using keyword scorer")
		return NewKeywordScorer(), nil
	}

	client := NewDeepSeekClient(cfg)
	logger.Info("AI scorer initialized",
		zap.String("model", client.model),
		zap.String("base_url", cfg.BaseURL),
	)
	return NewModelScorer(client, renderer), NewIndicatorNarrator(client, renderer)
}
