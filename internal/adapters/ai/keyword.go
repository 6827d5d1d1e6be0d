package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

var (
	bearishKeywords = []string{"跌", "空", "减持", "下调"}
	bullishKeywords = []string{"涨", "多", "牛", "买入", "增持"}
)

// KeywordScorer is the offline scorer used when no model API key is configured.
// Bearish keywords win over bullish ones; a match scores ±0.5.
type KeywordScorer struct{}

// NewKeywordScorer creates new keyword scorer
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

func (k *KeywordScorer) GetName() string {
	return "keyword"
}

func (k *KeywordScorer) Score(ctx context.Context, doc models.RawDocument) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}

	text := doc.Title + "\n" + doc.Content
	return Score{
		Value:   keywordScore(text),
		Summary: fmt.Sprintf("关键词分析: %s...", truncateRunes(doc.Title, 20)),
	}, nil
}

func keywordScore(text string) float64 {
	if containsAny(text, bearishKeywords) {
		return -0.5
	}
	if containsAny(text, bullishKeywords) {
		return 0.5
	}
	return 0
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
