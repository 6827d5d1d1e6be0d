package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/selivandex/sentiment-fusion/pkg/models"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

const (
	scoreTemplate    = "score_document.tmpl"
	promptSeparator  = "=== USER PROMPT ==="
	maxContentRunes  = 2000
	fallbackSummary  = "解析失败"
	rawSummaryRunes  = 50
	defaultSummaryOK = "分析完成"
)

var codeFence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ModelScorer scores documents with a chat model and the score_document prompt
type ModelScorer struct {
	completer Completer
	renderer  templates.Renderer
}

// NewModelScorer creates new model-backed scorer
func NewModelScorer(completer Completer, renderer templates.Renderer) *ModelScorer {
	return &ModelScorer{completer: completer, renderer: renderer}
}

func (s *ModelScorer) GetName() string {
	return "model"
}

// Score asks the model for {score, summary}. Transport errors are returned;
// unparsable content becomes a neutral score.
func (s *ModelScorer) Score(ctx context.Context, doc models.RawDocument) (Score, error) {
	output, err := s.renderer.ExecuteTemplate(scoreTemplate, map[string]string{
		"Title":   doc.Title,
		"Content": truncateRunes(doc.Content, maxContentRunes),
	})
	if err != nil {
		return Score{}, err
	}
	systemPrompt, userPrompt := SplitPrompt(output)

	content, err := s.completer.Complete(ctx, systemPrompt, userPrompt, CompletionOptions{
		MaxTokens:   300,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return Score{}, fmt.Errorf("failed to score document %s: %w", doc.ID, err)
	}

	return parseScore(content), nil
}

// SplitPrompt splits template output into system and user prompts
func SplitPrompt(output string) (systemPrompt string, userPrompt string) {
	idx := strings.Index(output, promptSeparator)
	if idx == -1 {
		return "", strings.TrimSpace(output)
	}

	systemPrompt = strings.TrimSpace(output[:idx])
	userPrompt = strings.TrimSpace(output[idx+len(promptSeparator):])
	return systemPrompt, userPrompt
}

// parseScore reads {score, summary} from model output, clamping the score to [-1, 1]
func parseScore(content string) Score {
	var parsed struct {
		Score   *float64 `json:"score"`
		Summary *string  `json:"summary"`
	}

	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		summary := truncateRunes(strings.TrimSpace(content), rawSummaryRunes)
		if summary == "" {
			summary = fallbackSummary
		}
		return Score{Value: 0, Summary: summary}
	}

	result := Score{Summary: defaultSummaryOK}
	if parsed.Score != nil && !math.IsNaN(*parsed.Score) {
		result.Value = math.Max(-1, math.Min(1, *parsed.Score))
	}
	if parsed.Summary != nil && strings.TrimSpace(*parsed.Summary) != "" {
		result.Summary = strings.TrimSpace(*parsed.Summary)
	}
	return result
}

// extractJSON extracts JSON from text that might contain markdown or extra content
func extractJSON(text string) string {
	if matches := codeFence.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}

	return strings.TrimSpace(text)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
