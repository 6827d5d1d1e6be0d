package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

const narrativeTemplate = "indicator_narrative.tmpl"

// IndicatorNarrator writes a short technical commentary for an instrument
type IndicatorNarrator struct {
	completer Completer
	renderer  templates.Renderer
}

// NewIndicatorNarrator creates new narrator
func NewIndicatorNarrator(completer Completer, renderer templates.Renderer) *IndicatorNarrator {
	return &IndicatorNarrator{completer: completer, renderer: renderer}
}

// Narrate renders the indicator prompt and returns the model's commentary
func (n *IndicatorNarrator) Narrate(ctx context.Context, code string, values models.IndicatorValues, signals models.IndicatorSignals) (string, error) {
	data := struct {
		Code string
		models.IndicatorValues
		models.IndicatorSignals
	}{code, values, signals}

	output, err := n.renderer.ExecuteTemplate(narrativeTemplate, data)
	if err != nil {
		return "", err
	}
	systemPrompt, userPrompt := SplitPrompt(output)

	content, err := n.completer.Complete(ctx, systemPrompt, userPrompt, CompletionOptions{
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to narrate indicators: %w", err)
	}
	return strings.TrimSpace(content), nil
}
